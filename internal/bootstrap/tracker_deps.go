package bootstrap

import (
	"context"
	"fmt"
	"time"

	"tracker_server/adapter/out/llm"
	"tracker_server/adapter/out/lock"
	"tracker_server/adapter/out/memory"
	"tracker_server/adapter/out/mongodb"
	"tracker_server/adapter/out/oauth"
	"tracker_server/adapter/out/persistence"
	"tracker_server/adapter/out/provider"
	"tracker_server/adapter/out/provider/gmail"
	"tracker_server/config"
	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/core/service/application"
	"tracker_server/core/service/auth"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/emailsync"
	"tracker_server/core/service/reconcile"
	"tracker_server/infra/database"
	"tracker_server/pkg/cache"
	"tracker_server/pkg/crypto"
	"tracker_server/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// archiveTTL bounds how long classified messages stay in MongoDB.
const archiveTTL = 30 * 24 * time.Hour

// Dependencies holds every wired component shared by the API and the worker.
type Dependencies struct {
	Config *config.Config

	// Infrastructure
	DB    *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	// Outbound ports
	Store    out.Store
	Locker   out.SyncLocker
	Archive  out.MessageArchive
	OAuth    *oauth.GoogleClient
	Registry *provider.Registry

	// Services
	Orchestrator *emailsync.Orchestrator
	Applications *application.Service
	Integrations *application.IntegrationService
}

// NewDependencies connects the infrastructure and wires the services. Redis
// and MongoDB are optional; without DATABASE_URL an in-memory store is used
// outside production.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps := &Dependencies{Config: cfg}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// ===== Encryption =====

	var enc *crypto.Encryptor
	if cfg.EncryptionKey != "" {
		e, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
		if err != nil {
			return nil, nil, fmt.Errorf("encryption key: %w", err)
		}
		enc = e
	} else if cfg.IsProduction() {
		return nil, nil, fmt.Errorf("ENCRYPTION_KEY is required in production")
	} else {
		logger.Warn("ENCRYPTION_KEY not set, credentials are stored unencrypted")
	}

	// ===== PostgreSQL =====

	if cfg.DatabaseURL != "" {
		pgCfg := database.DefaultPostgresConfig()
		pgCfg.Driver = cfg.DatabaseDriver
		db, err := database.NewPostgresWithConfig(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		logger.Info("PostgreSQL connected (driver %s)", pgCfg.Driver)

		if cfg.RunMigrations {
			if err := database.Migrate(db.DB, pgCfg.Driver); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("Database migrations applied")
		}
		deps.DB = db
		deps.Store = persistence.NewStore(db, enc).Ports()
	} else if cfg.IsProduction() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required in production")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		deps.Store = memory.NewStore().Ports()
	}

	// ===== Redis =====

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL, cfg.SyncConcurrency)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		deps.Redis = rdb
		deps.Locker = lock.NewRedisLocker(rdb, "")
		logger.Info("Redis connected, sync locks are distributed")
	} else {
		deps.Locker = lock.NewLocalLocker()
		logger.Warn("REDIS_URL not set, sync locks are process-local")
	}

	// ===== MongoDB =====

	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			logger.WithError(err).Warn("MongoDB unavailable, classified messages will not be archived")
		} else {
			closers = append(closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			})
			archive := mongodb.NewMessageArchive(client.Database(cfg.MongoDBName), archiveTTL)
			if err := archive.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("MongoDB index creation failed")
			}
			deps.Mongo = client
			deps.Archive = archive
		}
	}

	// ===== OAuth and mailbox providers =====

	deps.OAuth = oauth.NewGoogleClient(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		TokenURL:     cfg.GoogleTokenURL,
		RevokeURL:    cfg.GoogleRevokeURL,
	})
	var refresher out.TokenRefresher
	if cfg.HasGoogleOAuth() {
		refresher = deps.OAuth
	} else {
		logger.Warn("Google OAuth client not configured, expired tokens cannot be refreshed")
	}
	credentials := auth.NewCredentialManager(refresher, cfg.TokenRefreshMargin)

	deps.Registry = provider.NewRegistry().Register(domain.ProviderGmail, gmail.NewFactory(gmail.Config{
		Endpoint: cfg.GmailEndpoint,
		Lookback: cfg.SyncLookback(),
		Timeout:  time.Duration(cfg.ProviderTimeoutSec) * time.Second,
	}, credentials))

	// ===== Classification =====

	var generator out.TextGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, using heuristic classification only")
	}
	var classifier classification.Judge = classification.NewClassifier(generator, cfg.ClassifierBodyCap)
	if generator != nil && deps.Redis != nil {
		judgments := cache.NewRedisCache(deps.Redis, "tracker:judgment:v1:")
		classifier = classification.NewCachedClassifier(classifier, judgments, classification.DefaultJudgmentTTL)
		logger.Info("Judgment cache enabled (ttl %s)", classification.DefaultJudgmentTTL)
	}
	reconciler := reconcile.NewReconciler(deps.Store.Applications, deps.Store.Emails, deps.Store.History)

	// ===== Services =====

	deps.Orchestrator = emailsync.NewOrchestrator(
		deps.Store.Integrations,
		deps.Registry,
		classifier,
		reconciler,
		deps.Locker,
		deps.Archive,
		emailsync.Options{
			Lookback:    cfg.SyncLookback(),
			MaxResults:  cfg.FetchMaxResults,
			Concurrency: cfg.SyncConcurrency,
		},
	)
	deps.Applications = application.NewService(deps.Store, classifier, reconciler, deps.OAuth)
	deps.Integrations = application.NewIntegrationService(deps.Store.Integrations, deps.Registry, deps.OAuth)

	return deps, cleanup, nil
}
