package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"playsync/auth"
	"playsync/cache"
	"playsync/config"
	"playsync/engine"
	"playsync/publisher"
	"playsync/quota"
	"playsync/retry"
	"playsync/scheduler"
	"playsync/storage/postgres"
	"playsync/youtube"
)

// app holds the wired service graph shared by all commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	gw     *postgres.Gateway
	engine *engine.Engine
	sched  *scheduler.Scheduler
	pub    *publisher.RabbitMQ
}

// buildApp loads configuration and connects every collaborator. The
// publisher is only dialed when withPublisher is set so one-shot
// commands work without a running broker.
func buildApp(ctx context.Context, configPath string, withPublisher bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	gw, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database", "host", cfg.Database.Host)

	tokens := auth.NewManager(auth.NewOAuthProvider(
		cfg.YouTube.ClientID,
		cfg.YouTube.ClientSecret,
		cfg.YouTube.RedirectURL,
	))
	if cfg.YouTube.RefreshToken != "" {
		// Zero expiry forces a refresh on first use.
		tokens.Initialize(auth.Credentials{RefreshToken: cfg.YouTube.RefreshToken})
	}

	client, err := youtube.NewClient(ctx, tokens, youtube.WithRPS(cfg.YouTube.RequestsPerS))
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("build youtube client: %w", err)
	}

	ledger := quota.NewLedger(cfg.YouTube.DailyQuota)

	var pub *publisher.RabbitMQ
	if withPublisher && cfg.RabbitMQ.Enabled {
		pub, err = publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			gw.Close()
			return nil, err
		}
	}

	opts := engine.Options{
		Gateway: client,
		Store:   gw,
		Cache:   cache.New(cfg.Sync.CacheEntries),
		Ledger:  ledger,
		Tokens:  tokens,
		Logger:  logger,
		RetryPolicy: retry.Policy{
			MaxAttempts:    cfg.Sync.Retry.MaxAttempts,
			InitialBackoff: cfg.Sync.Retry.InitialBackoff,
			MaxBackoff:     cfg.Sync.Retry.MaxBackoff,
			Multiplier:     2.0,
		},
		MetaTTL:  cfg.Sync.MetaTTL,
		PageTTL:  cfg.Sync.PageTTL,
		BatchTTL: cfg.Sync.BatchTTL,
	}
	if pub != nil {
		opts.Publisher = pub
	}
	eng := engine.New(opts)

	if days, err := gw.LoadQuotaDays(ctx, 7); err != nil {
		logger.Warn("load quota days", "error", err)
	} else {
		eng.RestoreQuota(days)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		gw:     gw,
		engine: eng,
		sched:  scheduler.New(gw, eng, cfg.Sync.Tick, logger),
		pub:    pub,
	}, nil
}

func (a *app) close() {
	if a.pub != nil {
		a.pub.Close()
	}
	a.gw.Close()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
