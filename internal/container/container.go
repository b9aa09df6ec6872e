package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	database "github.com/FACorreiaa/go-itinerary-ai/app/db"
	"github.com/FACorreiaa/go-itinerary-ai/config"
	generativeAI "github.com/FACorreiaa/go-itinerary-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-itinerary-ai/internal/api/itinerary"
)

var _ itinerary.ImageAnalyzer = (*generativeAI.OpenRouterClient)(nil)

// Completion is what the itinerary pipeline needs from a model provider.
type Completion interface {
	generativeAI.Completer
	itinerary.HealthChecker
}

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	Mongo            *mongo.Client
	Redis            *redis.Client
	Completion       Completion
	ItineraryService *itinerary.ServiceImpl
	ItineraryHandler *itinerary.HandlerImpl
}

// NewContainer connects the configured stores and wires the itinerary feature.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	repo, err := c.initRepository(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}

	completion, err := newCompletion(ctx, cfg, logger)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	c.Completion = completion

	opts := []itinerary.Option{itinerary.WithDefaultModel(defaultModel(cfg))}
	if cfg.Repositories.Redis.Enabled {
		r := cfg.Repositories.Redis
		c.Redis, err = database.InitRedis(ctx, r.Addr, r.Password, r.DB, logger)
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
		opts = append(opts, itinerary.WithViewCache(itinerary.NewRedisViewCache(c.Redis, cfg.Storage.ViewTTL, logger)))
	}

	c.ItineraryService = itinerary.NewServiceImpl(repo, completion, logger, opts...)
	var handlerOpts []itinerary.HandlerOption
	if analyzer, ok := completion.(itinerary.ImageAnalyzer); ok {
		handlerOpts = append(handlerOpts, itinerary.WithImageAnalyzer(analyzer))
	} else {
		logger.Info("Completion provider does not analyze images, image analysis endpoint disabled")
	}
	c.ItineraryHandler = itinerary.NewHandlerImpl(c.ItineraryService, completion, logger, handlerOpts...)
	return c, nil
}

func (c *Container) initRepository(ctx context.Context) (itinerary.Repository, error) {
	cfg, logger := c.Config, c.Logger
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dbConfig, err := database.NewDatabaseConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
			return nil, err
		}
		c.Pool, err = database.Init(dbConfig.ConnectionURL, logger)
		if err != nil {
			return nil, err
		}
		if !database.WaitForDB(ctx, c.Pool, logger) {
			return nil, errors.New("database not ready")
		}
		return itinerary.NewPostgresRepository(c.Pool, logger), nil

	case config.StorageMongo:
		client, err := database.InitMongo(ctx, cfg.Repositories.Mongo.URI, logger)
		if err != nil {
			return nil, err
		}
		c.Mongo = client
		repo := itinerary.NewMongoRepository(client.Database(cfg.Repositories.Mongo.Database), logger)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.StorageMemory:
		logger.Warn("Using in-process itinerary store, data is lost on restart")
		return itinerary.NewMemoryRepository(cfg.Storage.MemoryTTL, logger), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func newCompletion(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Completion, error) {
	cc := cfg.Completion
	retry := generativeAI.RetryPolicy{
		MaxAttempts:    cc.MaxAttempts,
		BaseDelay:      cc.BaseDelay,
		AttemptTimeout: cc.AttemptTimeout,
	}
	if cc.Provider == config.ProviderGemini {
		return generativeAI.NewGeminiClient(ctx, generativeAI.GeminiConfig{
			APIKey:            cfg.Gemini.APIKey,
			DefaultModel:      cfg.Gemini.DefaultModel,
			Retry:             retry,
			RequestsPerSecond: cc.RequestsPerSecond,
		}, logger)
	}
	if cc.APIKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is not set")
	}
	return generativeAI.NewOpenRouterClient(generativeAI.OpenRouterConfig{
		BaseURL:           cc.BaseURL,
		APIKey:            cc.APIKey,
		SiteURL:           cc.SiteURL,
		SiteName:          cc.SiteName,
		DefaultModel:      cc.DefaultModel,
		Retry:             retry,
		RequestsPerSecond: cc.RequestsPerSecond,
	}, logger), nil
}

func defaultModel(cfg *config.Config) string {
	if cfg.Completion.Provider == config.ProviderGemini {
		if cfg.Gemini.DefaultModel != "" {
			return cfg.Gemini.DefaultModel
		}
		return generativeAI.DefaultGeminiModel
	}
	if cfg.Completion.DefaultModel != "" {
		return cfg.Completion.DefaultModel
	}
	return generativeAI.DefaultModel
}

// Close releases all resources held by the container
func (c *Container) Close(ctx context.Context) {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			c.Logger.Warn("Failed to disconnect from mongo", slog.Any("error", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
}
