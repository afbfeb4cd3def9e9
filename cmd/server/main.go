package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/api"
	"github.com/beaconcoach/beacon/internal/authapi"
	"github.com/beaconcoach/beacon/internal/catalog"
	"github.com/beaconcoach/beacon/internal/circuitbreaker"
	"github.com/beaconcoach/beacon/internal/config"
	"github.com/beaconcoach/beacon/internal/db"
	"github.com/beaconcoach/beacon/internal/email"
	"github.com/beaconcoach/beacon/internal/observ"
	"github.com/beaconcoach/beacon/internal/push"
	"github.com/beaconcoach/beacon/internal/redis"
	"github.com/beaconcoach/beacon/internal/reminder"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting beacon server",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
	)

	prefStore := db.NewPreferenceStore(database, logger)
	notifStore := db.NewNotificationStore(database, logger)
	reminderStore := db.NewReminderStore(database, logger)
	activityStore := db.NewActivityStore(database, logger)
	catalogStore := db.NewCatalogStore(database, logger)
	userStore := db.NewUserStore(database, logger)

	// Redis is optional: without it the rate limiter and banner flags
	// are disabled, everything else keeps working.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and banner flags disabled", zap.Error(err))
		redisClient = nil
	}

	var rateLimiter *redis.RateLimiter
	var banner api.BannerFlags
	if redisClient != nil {
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  100,
			Window: 1 * time.Minute,
		})
		banner = redis.NewBannerService(redisClient, logger)
		defer redisClient.Close()
	}

	provider, err := buildEmailProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var pushPub reminder.PushPublisher
	if cfg.SNSTopicARN != "" {
		pub, err := push.NewPublisher(ctx, cfg.SNSTopicARN, cfg.AWSRegion, logger)
		if err != nil {
			logger.Warn("SNS publisher unavailable, push fan-out disabled", zap.Error(err))
		} else {
			pushPub = pub
		}
	}

	gen := reminder.NewGenerator(prefStore, activityStore, notifStore, cfg.GeneratorInterval, logger)
	disp := reminder.NewDispatcher(reminderStore, notifStore, provider, pushPub, cfg.DispatcherInterval, logger)

	// The job endpoints are the primary tick; the internal loops only
	// run when an interval is configured.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.GeneratorInterval > 0 {
		go gen.Start(workerCtx)
	}
	if cfg.DispatcherInterval > 0 {
		go disp.Start(workerCtx)
	}

	var authClient *authapi.Client
	if cfg.AuthBaseURL != "" && cfg.AuthServiceKey != "" {
		authClient = authapi.New(cfg.AuthBaseURL, cfg.AuthServiceKey, cfg.AuthRedirectTo, logger)
	} else {
		logger.Warn("auth provider not configured, passwordless auth and contact import disabled")
	}

	var source catalog.ProductSource
	if cfg.KajabiClientID != "" && cfg.KajabiSecret != "" {
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("kajabi"), logger)
		source = catalog.NewKajabiClient(cfg.KajabiBaseURL, cfg.KajabiClientID, cfg.KajabiSecret, breaker, logger)
	} else {
		logger.Warn("kajabi credentials not configured, API pulls disabled")
	}

	syncCfg := catalog.SyncerConfig{
		Store:        catalogStore,
		Scraper:      catalog.NewScraper(nil, logger),
		Source:       source,
		Users:        userStore,
		ContactDelay: cfg.ContactDelay,
		ImportTag:    cfg.MastermindTag,
	}
	if authClient != nil {
		syncCfg.Auth = authClient
	}
	syncer := catalog.NewSyncer(syncCfg, logger)

	handlerCfg := api.HandlerConfig{
		Prefs:        prefStore,
		Notifs:       notifStore,
		Reminders:    reminderStore,
		Users:        userStore,
		Activity:     activityStore,
		Sessions:     catalogStore,
		Sync:         syncer,
		Generator:    gen,
		Dispatcher:   disp,
		Banner:       banner,
		ServiceToken: cfg.ServiceToken,
	}
	if authClient != nil {
		handlerCfg.MagicLinks = authClient
	}

	handler := api.NewHandler(handlerCfg, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler.Routes(rateLimiter, database.Health),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		workerCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			if closeErr := srv.Close(); closeErr != nil {
				return fmt.Errorf("forced close failed: %w", closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func buildEmailProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (email.Provider, error) {
	switch cfg.EmailProvider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
		return email.NewResendProvider(cfg.ResendAPIKey, cfg.FromEmail, cfg.FromName, logger), nil
	case "ses":
		provider, err := email.NewSESProvider(ctx, email.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.FromEmail,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return provider, nil
	case "log":
		logger.Warn("email provider set to log, reminder emails will not be delivered")
		return email.NewLogProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}
