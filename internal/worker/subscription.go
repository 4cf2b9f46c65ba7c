package worker

import (
	"sync"

	"go.uber.org/zap"
)

// Subscription receives every event published after it was created.
// Observational events are dropped when C is full; terminal events wait.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	done chan struct{}
	once sync.Once
	w    *Worker
}

func (w *Worker) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = w.opts.EventBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, done: make(chan struct{}), w: w}

	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.closed:
		sub.once.Do(func() {
			close(sub.done)
			close(sub.ch)
		})
		return sub
	default:
	}
	w.subs[sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		// done first: a publisher blocked on a terminal send holds the read lock.
		close(s.done)
		s.w.mu.Lock()
		delete(s.w.subs, s)
		close(s.ch)
		s.w.mu.Unlock()
	})
}

func (w *Worker) publish(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for sub := range w.subs {
		if ev.Terminal() {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			case <-w.closed:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			w.logger.Debug("dropped event for slow subscriber", zap.String("type", string(ev.Type)))
		}
	}
}
