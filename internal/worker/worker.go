// Package worker runs document ingestion and query handling behind a message
// boundary: commands go into a bounded queue, a single goroutine processes
// them in order, and events fan out to subscribers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/model"
)

const (
	DefaultQueueSize   = 16
	DefaultEventBuffer = 64
)

var (
	ErrClosed        = errors.New("worker closed")
	ErrNotReady      = errors.New("worker not ready")
	ErrAlreadyActive = errors.New("worker already started")
)

// LoadError means the model could not be initialized. It is fatal for the
// worker: every later command fails with ErrNotReady.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("model load failed: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusClosed  Status = "closed"
)

type Options struct {
	QueueSize   int
	EventBuffer int
	Init        InitFunc
}

type Worker struct {
	opts     Options
	logger   *zap.Logger
	handlers map[CommandType]Handler
	queue    chan Command

	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	status  Status
	loadErr error
	started bool

	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(opts Options, logger *zap.Logger) *Worker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		opts:     opts,
		logger:   logger.Named("worker"),
		handlers: make(map[CommandType]Handler),
		queue:    make(chan Command, opts.QueueSize),
		subs:     make(map[*Subscription]struct{}),
		status:   StatusLoading,
		closed:   make(chan struct{}),
	}
}

// Handle registers the handler for a command type. Call before Start.
func (w *Worker) Handle(t CommandType, h Handler) {
	w.handlers[t] = h
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyActive
	}
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()
	return nil
}

// Submit enqueues cmd and returns its request id. It blocks while the queue
// is full.
func (w *Worker) Submit(ctx context.Context, cmd Command) (string, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	select {
	case <-w.closed:
		return "", ErrClosed
	default:
	}
	select {
	case w.queue <- cmd:
		return cmd.ID, nil
	case <-w.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Call submits cmd and waits for its terminal event. ctx bounds only the
// wait; the command keeps running if ctx ends first.
func (w *Worker) Call(ctx context.Context, cmd Command) (Event, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	sub := w.Subscribe(w.opts.EventBuffer)
	defer sub.Close()

	if _, err := w.Submit(ctx, cmd); err != nil {
		return Event{}, err
	}
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return Event{}, ErrClosed
			}
			if ev.RequestID == cmd.ID && ev.Terminal() {
				return ev, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// LoadErr returns the initialization failure, if any.
func (w *Worker) LoadErr() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loadErr
}

func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.status = StatusClosed
		w.mu.Unlock()

		w.wg.Wait()

		w.mu.RLock()
		subs := make([]*Subscription, 0, len(w.subs))
		for sub := range w.subs {
			subs = append(subs, sub)
		}
		w.mu.RUnlock()
		for _, sub := range subs {
			sub.Close()
		}
	})
}

func (w *Worker) run() {
	defer w.wg.Done()

	w.initialize()

	for {
		select {
		case <-w.ctx.Done():
			return
		case cmd := <-w.queue:
			w.process(cmd)
		}
	}
}

func (w *Worker) initialize() {
	var err error
	if w.opts.Init != nil {
		err = w.safeInit()
	}

	w.mu.Lock()
	if err != nil {
		w.loadErr = &LoadError{Err: err}
		w.status = StatusFailed
	} else if w.status == StatusLoading {
		w.status = StatusReady
	}
	loadErr := w.loadErr
	w.mu.Unlock()

	if loadErr != nil {
		w.logger.Error("worker initialization failed", zap.Error(loadErr))
		w.publish(Event{Type: EventError, Error: loadErr.Error()})
		return
	}
	w.logger.Info("worker ready")
}

func (w *Worker) safeInit() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	return w.opts.Init(w.ctx, emitter{w: w})
}

func (w *Worker) process(cmd Command) {
	w.publish(Event{RequestID: cmd.ID, Type: EventLog, Data: fmt.Sprintf("received %s", cmd.Type)})

	handler, ok := w.handlers[cmd.Type]
	if !ok {
		w.logger.Warn("unknown command type", zap.String("type", string(cmd.Type)), zap.String("request_id", cmd.ID))
		w.publish(Event{RequestID: cmd.ID, Type: EventLog, Data: fmt.Sprintf("unknown message type %q", cmd.Type)})
		return
	}

	if loadErr := w.LoadErr(); loadErr != nil {
		w.fail(cmd, fmt.Errorf("%w: %v", ErrNotReady, loadErr))
		return
	}

	msg, err := w.invoke(handler, cmd)
	if err != nil {
		w.fail(cmd, err)
		return
	}
	if msg == nil {
		w.fail(cmd, errors.New("handler returned no message"))
		return
	}
	w.publish(Event{RequestID: cmd.ID, Type: EventComplete, Message: msg})
}

func (w *Worker) invoke(h Handler, cmd Command) (msg *model.ChatMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(w.ctx, cmd, emitter{w: w, requestID: cmd.ID})
}

func (w *Worker) fail(cmd Command, err error) {
	w.logger.Warn("command failed",
		zap.String("type", string(cmd.Type)),
		zap.String("request_id", cmd.ID),
		zap.Error(err),
	)
	w.publish(Event{RequestID: cmd.ID, Type: EventError, Error: err.Error()})
}

type emitter struct {
	w         *Worker
	requestID string
}

func (e emitter) Log(data any) {
	e.w.publish(Event{RequestID: e.requestID, Type: EventLog, Data: data})
}

func (e emitter) Progress(p model.ProgressEvent) {
	e.w.publish(Event{RequestID: e.requestID, Type: EventInitProgress, Progress: &p})
}
