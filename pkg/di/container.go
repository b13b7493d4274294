package di

import (
	"context"
	"fmt"
	"time"

	chatmodels "chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	"chat-messaging-demo/backend/chat/service"
	"chat-messaging-demo/backend/chat/stream"
	"chat-messaging-demo/backend/pkg/cache"
	"chat-messaging-demo/backend/pkg/config"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/pkg/resilience"
	"chat-messaging-demo/backend/pkg/secrets"
	"chat-messaging-demo/backend/shared/observability"
	sharedredis "chat-messaging-demo/backend/shared/redis"
	"chat-messaging-demo/backend/upload"
	uploadmodels "chat-messaging-demo/backend/upload/models"

	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application.
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *gorm.DB
	Redis   *sharedredis.Client
	Feed    stream.ChangeFeed
	Cache   *cache.Cache
	Metrics *observability.Metrics

	MessageRepo      repository.MessageRepository
	ConversationRepo repository.ConversationRepository

	BlobStore     upload.BlobStore
	MetadataStore upload.MetadataStore
	Registry      *upload.Registry
	Validator     *upload.Validator
	Chain         *upload.Chain

	ConversationService *service.ConversationService
	SummaryService      *service.SummaryService
	SendService         *service.SendService
	ReactionService     *service.ReactionService
	Resolver            *service.Resolver
}

// New wires the full dependency graph from configuration. The redis
// change feed degrades to an in-process feed when redis is not
// reachable, which keeps single-node deployments working.
func New(ctx context.Context) (*Container, error) {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(log)

	if err := secrets.Init(log); err != nil {
		log.Warn("secrets manager unavailable, falling back to environment", "error", err)
	}

	db, err := config.NewDB()
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.AutoMigrate(
		&chatmodels.Conversation{},
		&chatmodels.Message{},
		&uploadmodels.AttachmentMetadata{},
		&uploadmodels.StoredBlob{},
	); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	redisClient := sharedredis.NewClient()
	var feed stream.ChangeFeed = redisClient
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, using in-process change feed", "error", err)
		feed = stream.NewMemoryFeed()
	}
	cancel()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics setup failed: %w", err)
	}

	metaCache := cache.NewCache()

	blobStore := upload.NewGormBlobStore(db)
	metadataStore := upload.NewGormMetadataStore(db)
	registry := upload.NewRegistry(metadataStore, metaCache, log, metrics)
	validator := upload.NewValidator(upload.DefaultValidatorConfig())
	avatars := upload.NewAvatarClient(metaCache, log)

	chain := upload.NewChain([]upload.Provider{
		upload.NewImageHostProvider(ctx, log),
		upload.NewBlobStorageProvider(blobStore, cfg.Providers.FileBaseURL, log),
	}, log, metrics)

	messageRepo := repository.NewGormMessageRepository(db)
	conversationRepo := repository.NewGormConversationRepository(db)

	summaries := service.NewSummaryService(conversationRepo, log)
	limiter := resilience.NewKeyedLimiter(rate.Limit(cfg.Security.RateLimit), cfg.Security.RateLimitBurst, time.Hour)

	sends := service.NewSendService(service.SendServiceDeps{
		Messages:      messageRepo,
		Conversations: conversationRepo,
		Validator:     validator,
		Chain:         chain,
		Registry:      registry,
		Summaries:     summaries,
		Feed:          feed,
		Limiter:       limiter,
		Log:           log,
		Metrics:       metrics,
		MaxFiles:      cfg.Upload.MaxAttachmentsPerMessage,
	})

	return &Container{
		Config:              cfg,
		Logger:              log,
		DB:                  db,
		Redis:               redisClient,
		Feed:                feed,
		Cache:               metaCache,
		Metrics:             metrics,
		MessageRepo:         messageRepo,
		ConversationRepo:    conversationRepo,
		BlobStore:           blobStore,
		MetadataStore:       metadataStore,
		Registry:            registry,
		Validator:           validator,
		Chain:               chain,
		ConversationService: service.NewConversationService(conversationRepo, avatars, log),
		SummaryService:      summaries,
		SendService:         sends,
		ReactionService:     service.NewReactionService(messageRepo, conversationRepo, feed, log, metrics),
		Resolver:            service.NewResolver(messageRepo),
	}, nil
}

// Close releases held connections.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return err
		}
	}
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
