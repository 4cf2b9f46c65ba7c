package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docqa/internal/ai"
	"docqa/internal/app"
	"docqa/internal/cache"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/index"
	"docqa/internal/platform/logging"
	rabbitmqClient "docqa/internal/platform/rabbitmq"
	redisClient "docqa/internal/platform/redis"
	"docqa/internal/rag"
	"docqa/internal/worker"
)

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Index         index.Index
	Worker        *worker.Worker
	Conversations *app.ConversationService

	// Optional; nil unless configured.
	Redis     *redis.Client
	MQConn    *amqp.Connection
	consumer  *rabbitmqClient.CommandConsumer
	publisher *rabbitmqClient.EventPublisher

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	engine, err := ai.NewEngine(ctx, ai.EngineConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Pull:        cfg.LLM.Pull,
		Timeout:     cfg.LLM.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("create engine failed: %w", err)
	}

	embedder, err := ai.NewEmbedder(ctx, ai.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("create embedder failed: %w", err)
	}

	a.Index = newIndex(cfg, embedder)

	orchestrator := rag.New(engine, a.Index, rag.Options{
		TopK:    cfg.RAG.TopK,
		Lambda:  cfg.RAG.Lambda,
		FetchK:  cfg.RAG.FetchK,
		Persona: cfg.RAG.Persona,
	}, a.Logger)
	ingest := app.NewIngestService(app.FileLoader{}, a.Index, chunker.Options{
		MaxSize: cfg.Chunker.MaxSize,
		Overlap: cfg.Chunker.Overlap,
	}, a.Logger)
	query := app.NewQueryService(orchestrator, a.Logger)

	a.Worker = worker.New(worker.Options{
		QueueSize:   cfg.Worker.QueueSize,
		EventBuffer: cfg.Worker.EventBuffer,
		Init: func(ctx context.Context, emit worker.Emitter) error {
			return engine.Initialize(ctx, emit.Progress)
		},
	}, a.Logger)
	a.Worker.Handle(worker.CommandEmbed, ingest.HandleEmbed)
	a.Worker.Handle(worker.CommandQuery, query.HandleQuery)

	var history app.HistoryStore
	if cfg.Redis.Addr != "" {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		history = cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second, cfg.Redis.KeyPrefix)
	} else {
		history = cache.NewMemoryHistory(time.Duration(cfg.Redis.HistoryTTLSeconds) * time.Second)
	}
	a.Conversations = app.NewConversationService(history, a.Worker, cfg.LLM.MaxContextMessage, a.Logger)

	// Subscribers must exist before the worker starts so init progress reaches them.
	if cfg.RabbitMQ.URL != "" {
		if err := a.wireRabbitMQ(ctx); err != nil {
			return err
		}
	}

	if err := a.Worker.Start(ctx); err != nil {
		return fmt.Errorf("start worker failed: %w", err)
	}

	a.Logger.Info("app wired",
		zap.String("engine", engine.Name()),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("index", cfg.Index.Backend),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("rabbitmq", a.MQConn != nil),
		zap.Bool("auth", cfg.Auth.JWTSecret != ""),
	)
	return nil
}

func newIndex(cfg *config.Config, embedder index.Embedder) index.Index {
	if strings.EqualFold(cfg.Index.Backend, "qdrant") {
		return index.NewQdrantIndex(index.QdrantConfig{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSeconds) * time.Second,
			BatchSize:  cfg.Embedding.BatchSize,
		}, embedder)
	}
	return index.NewMemoryIndex(embedder, cfg.Embedding.BatchSize)
}

func (a *App) wireRabbitMQ(ctx context.Context) error {
	conn, err := rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL, a.Config.App.Name)
	if err != nil {
		return err
	}
	a.MQConn = conn

	a.publisher = rabbitmqClient.NewEventPublisher(conn, a.Config.RabbitMQ.EventQueue, a.Config.Worker.EventBuffer, a.Logger)
	if err := a.publisher.Start(ctx, a.Worker); err != nil {
		return fmt.Errorf("start event publisher failed: %w", err)
	}
	a.consumer = rabbitmqClient.NewCommandConsumer(conn, a.Worker, a.Config.RabbitMQ.CommandQueue, a.Logger)
	if err := a.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start command consumer failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.Worker != nil {
		a.Worker.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
