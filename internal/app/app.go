package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/auth"
	"github.com/vovakirdan/babelchat-server/internal/config"
	"github.com/vovakirdan/babelchat-server/internal/core"
	"github.com/vovakirdan/babelchat-server/internal/core/redisbus"
	"github.com/vovakirdan/babelchat-server/internal/language"
	"github.com/vovakirdan/babelchat-server/internal/metrics"
	"github.com/vovakirdan/babelchat-server/internal/session"
	"github.com/vovakirdan/babelchat-server/internal/store"
	"github.com/vovakirdan/babelchat-server/internal/store/sqlite"
	"github.com/vovakirdan/babelchat-server/internal/translate"
	transporthttp "github.com/vovakirdan/babelchat-server/internal/transport/http"
)

const redisConnectTimeout = 5 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	bus             core.Bus
	store           store.Store
	redis           *goredis.Client
	cache           *language.CachedResolver
	invalidator     *language.Invalidator
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}
	if err := a.build(cfg); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	logger := a.log

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(a.store, jwtConfig)

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	hub := core.NewHub(logger, m)
	a.bus = hub
	if cfg.BusBackend == config.BusRedis {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis_url: %w", err)
		}
		a.redis = goredis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		bus, err := redisbus.New(ctx, a.redis, hub, cfg.RedisChannelPrefix, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("init redis bus: %w", err)
		}
		a.bus = bus
	}
	logger.Info().Str("backend", cfg.BusBackend).Msg("broadcast bus selected")

	storeResolver := language.NewStoreResolver(a.store, cfg.DefaultLanguage, logger)
	var resolver language.Resolver = storeResolver
	if cfg.LanguagePolicy == config.LanguageCached {
		cached, err := language.NewCachedResolver(storeResolver, cfg.LanguageCacheTTL, logger)
		if err != nil {
			return fmt.Errorf("init language cache: %w", err)
		}
		a.cache = cached
		resolver = cached
		if a.redis != nil {
			a.invalidator = language.NewInvalidator(a.redis, cfg.RedisChannelPrefix, cached, logger)
		}
	}

	gateway := translate.NewGateway(
		translate.NewLibreBackend(cfg.TranslatorURL, cfg.TranslatorAPIKey, &stdhttp.Client{}),
		translate.Options{
			Timeout:         cfg.TranslatorTimeout,
			MaxConcurrent:   cfg.TranslatorMaxConcurrent,
			RatePerSecond:   cfg.TranslatorRatePerSecond,
			Burst:           cfg.TranslatorBurst,
			BreakerFailures: cfg.TranslatorBreakerFailures,
			BreakerCooldown: cfg.TranslatorBreakerCooldown,
		},
		logger, m,
	)

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Auth:             authService,
		Store:            a.store,
		Bus:              a.bus,
		OnLanguageChange: a.languageChanged,
		Metrics:          metrics.Handler(registry),
		Session: session.Deps{
			Bus:        a.bus,
			Resolver:   resolver,
			Translator: gateway,
			Metrics:    m,
			Logger:     logger,
		},
	}, cfg, logger)
	return nil
}

// languageChanged drops cached preferences here and, with Redis, in every other process.
func (a *App) languageChanged(ctx context.Context, userID int64) {
	if a.cache != nil {
		a.cache.Invalidate(userID)
	}
	if a.invalidator != nil {
		if err := a.invalidator.Publish(ctx, userID); err != nil {
			a.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to broadcast language change")
		}
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	busErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			busErr <- err
		}
	}()
	if a.invalidator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.invalidator.Start(ctx)
		}()
	}

	// Sessions inherit ctx so shutdown closes them.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case runErr = <-busErr:
		runErr = fmt.Errorf("broadcast bus: %w", runErr)
		a.shutdown()
	case <-ctx.Done():
		runErr = a.shutdown()
		if err := <-serverErr; runErr == nil {
			runErr = err
		}
	}

	cancel()
	wg.Wait()
	a.cleanup()
	return runErr
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down http server")
	return a.server.Shutdown(shutdownCtx)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
