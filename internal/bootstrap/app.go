package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"studyhub/internal/ai"
	"studyhub/internal/app"
	"studyhub/internal/cache"
	"studyhub/internal/config"
	"studyhub/internal/observability"
	"studyhub/internal/platform/logger"
	mysqlClient "studyhub/internal/platform/mysql"
	rabbitmqClient "studyhub/internal/platform/rabbitmq"
	redisClient "studyhub/internal/platform/redis"
	"studyhub/internal/repository"
	"studyhub/internal/worker"
)

type App struct {
	Config  *config.Config
	Log     *logger.Logger
	MySQL   *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Model   *ai.Client
	Metrics *observability.Metrics

	*Services
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

// Services is the application layer wired over one database.
type Services struct {
	Documents *app.DocumentService
	Ingestion *app.IngestionService
	Chat      *app.ChatService
	Quizzes   *app.QuizService
	Mastery   *app.MasteryUpdater

	// background is set when ingestion runs in-process.
	background *app.GoroutineDispatcher
}

type ServiceDeps struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *logger.Logger
	Metrics      *observability.Metrics
	Embedder     app.Embedder
	Completer    app.ChatCompleter
	Generator    app.Generator
	HistoryCache app.HistoryCache
	// Dispatcher defaults to in-process goroutines when nil.
	Dispatcher app.IngestDispatcher
}

func NewServices(d ServiceDeps) *Services {
	cfg := d.Config
	docRepo := repository.NewDocumentRepository(d.DB)
	chunkRepo := repository.NewChunkRepository(d.DB)
	chatRepo := repository.NewChatRepository(d.DB)
	quizRepo := repository.NewQuizRepository(d.DB)
	masteryRepo := repository.NewTopicMasteryRepository(d.DB)

	ingestion := app.NewIngestionService(docRepo, chunkRepo, d.Embedder, app.IngestionConfig{
		ChunkSize:        cfg.Ingest.ChunkSize,
		ChunkOverlap:     cfg.Ingest.ChunkOverlap,
		EmbedConcurrency: cfg.Ingest.EmbedConcurrency,
		EmbeddingModel:   cfg.LLM.EmbeddingModel,
	}, d.Log, d.Metrics)

	s := &Services{Ingestion: ingestion}
	dispatcher := d.Dispatcher
	if dispatcher == nil {
		s.background = app.NewGoroutineDispatcher(ingestion, d.Log)
		dispatcher = s.background
	}

	retriever := app.NewRetriever(chunkRepo, app.RetrieverConfig{
		TopK:           cfg.Retrieval.TopK,
		SampleMinChars: cfg.Retrieval.SampleMinChars,
	}, d.Log, d.Metrics)
	rag := app.NewRAGService(d.Embedder, d.Completer, retriever, cfg.Retrieval.TopK, d.Log, d.Metrics)

	s.Documents = app.NewDocumentService(docRepo, chunkRepo, dispatcher, cfg.MaxUploadBytes(), d.Log)
	s.Chat = app.NewChatService(chatRepo, rag, d.HistoryCache, d.Log)
	s.Mastery = app.NewMasteryUpdater(masteryRepo, app.BlueprintTitleTopic{})
	s.Quizzes = app.NewQuizService(quizRepo, retriever, d.Generator, s.Mastery, app.RoundRobinAttribution{}, d.Log, d.Metrics)
	return s
}

// WaitBackground blocks until in-process ingestion has drained.
func (s *Services) WaitBackground() {
	if s.background != nil {
		s.background.Wait()
	}
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), log)
	if err != nil {
		return nil, err
	}
	if err := mysqlClient.Migrate(mysqlDB); err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		MySQL:     mysqlDB,
		Metrics:   observability.NewMetrics(),
		StartedAt: time.Now(),
	}

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	history := cache.NewHistoryCache(a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	a.Model = ai.NewClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLMTimeout(),
	})

	var dispatcher app.IngestDispatcher
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.Dial(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		dispatcher = rabbitmqClient.NewIngestPublisher(a.MQConn, cfg.RabbitMQ.IngestQueue)
	} else {
		log.Warn("rabbitmq disabled, ingestion runs in-process")
	}

	a.Services = NewServices(ServiceDeps{
		DB:           mysqlDB,
		Config:       cfg,
		Log:          log,
		Metrics:      a.Metrics,
		Embedder:     a.Model,
		Completer:    a.Model,
		Generator:    a.Model,
		HistoryCache: history,
		Dispatcher:   dispatcher,
	})

	if a.MQConn != nil {
		a.IngestWorker = worker.NewIngestWorker(a.MQConn, a.Ingestion, cfg.RabbitMQ.IngestQueue, cfg.Ingest.EmbedConcurrency, log)
		if err := a.IngestWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start ingest worker failed: %w", err)
		}
	}
	return a, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Services != nil {
		a.WaitBackground()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
