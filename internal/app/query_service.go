package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/model"
	"docqa/internal/rag"
	"docqa/internal/worker"
)

type Answerer interface {
	Run(ctx context.Context, messages []model.ChatMessage, tracer rag.Tracer) (*rag.Result, error)
}

type QueryService struct {
	answerer Answerer
	logger   *zap.Logger
}

func NewQueryService(answerer Answerer, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{answerer: answerer, logger: logger.Named("query")}
}

// HandleQuery answers the conversation in cmd. With DevMode set, every stage
// transition is reported as a log event.
func (s *QueryService) HandleQuery(ctx context.Context, cmd worker.Command, emit worker.Emitter) (*model.ChatMessage, error) {
	for i, m := range cmd.Messages {
		if !model.ValidRole(m.Role) {
			return nil, fmt.Errorf("%w: message %d has role %q", ErrInvalidInput, i, m.Role)
		}
	}

	var tracer rag.Tracer
	if cmd.DevMode && emit != nil {
		tracer = func(ev rag.TraceEvent) { emit.Log(ev) }
	}

	res, err := s.answerer.Run(ctx, cmd.Messages, tracer)
	if err != nil {
		return nil, err
	}

	path := make([]string, len(res.Path))
	for i, st := range res.Path {
		path[i] = st.String()
	}
	s.logger.Info("query answered",
		zap.String("request_id", cmd.ID),
		zap.String("path", strings.Join(path, ">")),
		zap.Int("documents", len(res.State.SourceDocuments)),
	)
	reply := res.Reply
	return &reply, nil
}
