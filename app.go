package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/domain/repository"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/cache"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/clients/ai"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/clients/platforms"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/persistence"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/pubsub"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/realtime"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/security"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/servicebus"
	httpHandler "github.com/larry311012/ai-news-hub-sub002/interfaces/http"
	"github.com/larry311012/ai-news-hub-sub002/server"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

const janitorInterval = time.Minute

// serve runs the API and the background loops until SIGINT/SIGTERM.
func serve(parent context.Context, cfg configuration.Config) error {
	lg := logger.GetLogger()

	if err := os.MkdirAll(cfg.App.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// One process per data directory; two sweepers on one database would race.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "ai-news-hub.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is using %s", cfg.App.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := persistence.OpenDatabase(ctx, cfg.Database, cfg.App.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	repos := persistence.NewRepositories(db, dialect)

	if cfg.Database.Mongo.Host != "" {
		mongoClient, err := persistence.NewMongoDb(ctx, cfg.Database.Mongo)
		if err != nil {
			lg.WithField("error", err).Warn("MongoDB not available - publish history stays in the SQL database")
		} else {
			defer func() { _ = mongoClient.Disconnect(context.Background()) }()
			repos.PublishAudits = persistence.NewPublishAuditMongo(mongoClient, cfg.Database.Mongo.Name)
			lg.Info("Publish history goes to MongoDB")
		}
	}

	vault, err := security.NewVaultFromConfig(cfg.Vault.Key, cfg.Vault.Passphrase)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	var kv repository.IKeyValueStore
	memory := cache.NewMemoryStore()
	kv = memory
	if cfg.RedisClient.Host != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisClient)
		if err != nil {
			lg.WithField("error", err).Warn("Redis not available - OAuth transactions are kept in memory")
		} else {
			defer redisClient.Close()
			kv = cache.NewRedisStore(redisClient)
			memory = nil
		}
	}

	events, closeEvents := eventPublisher(ctx, cfg)
	defer closeEvents()

	providers, apiBase := cfg.ResolveProviders()
	providerHTTP := &http.Client{Timeout: cfg.OAuth.HTTPTimeout()}
	callback := func(p model.Platform) string { return cfg.App.CallbackURL(p.String()) }

	conns := usecase.NewConnectionUsecase(repos.Connections)
	creds := usecase.NewCredentialUsecase(repos.Credentials, vault, providers, callback)
	oauth := usecase.NewOAuthUsecase(
		providers, creds, conns,
		cache.NewTransactionStore(kv), vault,
		platforms.NewProfileFetcher(configuration.ProfileURLs(providers)),
		usecase.OAuthOptions{
			TransactionTTL: cfg.OAuth.TransactionTTL(),
			HTTPClient:     providerHTTP,
			Limiter:        cache.NewRateLimiter(kv, cfg.OAuth.ConnectPerMinute, time.Minute),
		},
	)

	hub := realtime.NewPublishHub()
	publish := usecase.NewPublishUsecase(
		repos.Posts, repos.PublishRecords, repos.PublishAudits,
		conns, oauth, creds, vault,
		platforms.NewPublishers(apiBase, providerHTTP),
		usecase.PublishOptions{
			MaxRetries:  cfg.Publish.MaxRetries,
			Backoff:     cfg.Publish.Backoff(),
			CallTimeout: cfg.Publish.CallTimeout(),
			EventTopic:  cfg.Events.Topic,
		},
	).WithBroadcaster(hub)
	if events != nil {
		publish = publish.WithEvents(events)
	}

	aiClient := ai.NewClient(ai.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		TextModel:      cfg.AI.TextModel,
		ImageModel:     cfg.AI.ImageModel,
		TimeoutSeconds: cfg.AI.TimeoutSeconds,
	})
	jobs := usecase.NewJobEngine(map[model.JobKind]usecase.JobRunner{
		model.JobContentGeneration: usecase.NewContentGenerationRunner(aiClient),
		model.JobImageGeneration:   usecase.NewImageGenerationRunner(aiClient),
	}, usecase.JobOptions{
		Timeout:       cfg.Jobs.Timeout(),
		Retention:     cfg.Jobs.Retention(),
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	})
	defer jobs.Stop()

	router := server.InitiateRouter(server.Handlers{
		Health:      httpHandler.NewHealthHandler(db),
		OAuth:       httpHandler.NewOAuthHandler(oauth, cfg.App.UIBaseURL),
		Connections: httpHandler.NewConnectionHandler(conns),
		Credentials: httpHandler.NewCredentialHandler(creds),
		Jobs:        httpHandler.NewJobHandler(jobs),
		Publish:     httpHandler.NewPublishHandler(publish),
		Stream:      hub,
	}, server.Options{
		SecretKey:    cfg.App.SecretKey,
		LocalUserID:  cfg.App.LocalUserID,
		AllowOrigins: []string{cfg.App.UIBaseURL},
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.WithFields(map[string]interface{}{"port": cfg.App.Port, "tls": cfg.App.TLSEnabled}).Info("Starting application")
		var err error
		if cfg.App.TLSEnabled && cfg.App.TLSCertFile != "" && cfg.App.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
		} else {
			if cfg.App.TLSEnabled {
				lg.Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		lg.Info("Application shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return runSweeper(ctx, conns, cfg.OAuth.SweepInterval(), cfg.OAuth.TransactionTTL())
	})
	g.Go(func() error {
		return jobs.RunJanitor(ctx, janitorInterval)
	})
	if memory != nil {
		g.Go(func() error {
			ticker := time.NewTicker(janitorInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					memory.Purge()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		lg.WithField("error", err).Error("Server returned an error")
		return err
	}
	return nil
}

func runSweeper(ctx context.Context, conns usecase.IConnectionUsecase, interval, pendingTTL time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := conns.SweepExpired(ctx, time.Now(), pendingTTL)
			if err != nil {
				logger.GetLogger().WithField("error", err).Warn("Connection sweep failed")
				continue
			}
			if report.Expired > 0 || report.Abandoned > 0 {
				logger.GetLogger().WithFields(map[string]interface{}{
					"expired":   report.Expired,
					"abandoned": report.Abandoned,
				}).Info("Connection sweep")
			}
		}
	}
}

// eventPublisher connects the configured message bus. Failures only disable events.
func eventPublisher(ctx context.Context, cfg configuration.Config) (repository.IEventPublisher, func()) {
	lg := logger.GetLogger().WithField("provider", cfg.Events.Provider)
	switch cfg.Events.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			lg.WithField("error", err).Warn("Pub/Sub not available - publish events disabled")
			return nil, func() {}
		}
		p := pubsub.NewEventPubSub(client)
		return p, func() { _ = p.Close() }
	case "servicebus":
		client, err := servicebus.NewClient(cfg.ServiceBus.Namespace)
		if err != nil {
			lg.WithField("error", err).Warn("Service Bus not available - publish events disabled")
			return nil, func() {}
		}
		s := servicebus.NewEventServiceBus(client)
		return s, func() { _ = s.Close() }
	case "":
		return nil, func() {}
	}
	lg.Warn("Unknown events provider - publish events disabled")
	return nil, func() {}
}
