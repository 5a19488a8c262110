package main

import (
	"context"
	"os"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/amirphl/financeiq/internal/backend"
	"github.com/amirphl/financeiq/internal/cache"
	"github.com/amirphl/financeiq/internal/config"
	"github.com/amirphl/financeiq/internal/db"
	"github.com/amirphl/financeiq/internal/notifier"
	"github.com/amirphl/financeiq/internal/overlay"
	"github.com/amirphl/financeiq/internal/utils"
)

var methodError = []string{"method", "error"}

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	cache    cache.Cache
	client   *backend.Client
	store    db.Storage
	notifier notifier.Notifier
	overlays overlay.Service
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	utils.InitLogger(utils.LogOptions{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Out: os.Stderr})
	logger := *utils.GetLogger()

	a := &app{cfg: cfg, logger: logger}

	if cfg.Redis.Addr != "" {
		r, err := cache.NewRedis(cache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		a.cache = r
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	} else {
		a.cache = cache.NewMemory()
	}

	a.client = backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		backend.WithCache(a.cache),
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
	)

	if cfg.DB.ConnStr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := db.Open(ctx, cfg.DB.ConnStr, cfg.DB.MaxOpen, cfg.DB.MaxIdle)
		if err != nil {
			_ = a.cache.Close()
			return nil, err
		}
		a.store = pg
		logger.Info().Msg("using postgres price-history store")
	} else {
		a.store = db.NewMemory()
		logger.Warn().Msg("no database configured, fallback history is kept in memory")
	}

	if cfg.Telegram.Enabled() {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.Retries, cfg.Telegram.Delay)
	} else {
		a.notifier = notifier.Nop{}
	}

	svc := overlay.NewService(a.client, a.store, logger.With().Str("component", "overlay").Logger())
	a.overlays = overlay.NewLoggingMiddleware(logger, svc)
	return a, nil
}

// instrument registers the overlay service metrics. Only the server exposes
// them, so other commands skip it.
func (a *app) instrument() {
	subsystem := a.cfg.Server.MetricsSubsystem
	a.overlays = overlay.NewInstrumentingMiddleware(
		kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: "financeiq",
			Subsystem: subsystem,
			Name:      "request_count",
			Help:      "Overlay service request count",
		}, methodError),
		kitprometheus.NewSummaryFrom(prometheus.SummaryOpts{
			Namespace: "financeiq",
			Subsystem: subsystem,
			Name:      "request_duration",
			Help:      "Overlay service request duration in seconds",
		}, methodError),
		kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: "financeiq",
			Subsystem: subsystem,
			Name:      "fallback_count",
			Help:      "Overlay responses served from stored history",
		}, nil),
		a.overlays,
	)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close cache")
	}
}
