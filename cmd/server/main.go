package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"groupchat/internal/api"
	"groupchat/internal/chat"
	"groupchat/internal/config"
	"groupchat/internal/db"
	"groupchat/internal/history"
	"groupchat/internal/models"
	"groupchat/internal/presence"
	"groupchat/internal/repository"
	"groupchat/internal/tasks"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg.Env)
	zlog.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	list, backend, closeList := openHistoryList(ctx, cfg, logger.With().Str("component", "store").Logger())

	registry := presence.NewRegistry(models.DefaultRoster())
	store := history.NewStore(list, history.Options{
		Prefix:   cfg.HistoryPrefix,
		PageSize: cfg.HistoryPageSize,
		Timeout:  cfg.StoreTimeout,
	}, logger.With().Str("component", "history").Logger())

	hub := chat.NewHub(logger.With().Str("component", "hub").Logger())
	coord := chat.NewCoordinator(registry, store, hub, logger.With().Str("component", "coordinator").Logger())
	coord.SetMaxMessageBytes(cfg.MaxMessageBytes)

	monitor := tasks.NewLivenessMonitor(coord, registry, coord, tasks.LivenessOptions{
		PingInterval:    cfg.PingInterval,
		SweepInterval:   cfg.SweepInterval,
		InactivityLimit: cfg.InactivityLimit,
	}, logger.With().Str("component", "liveness").Logger())
	if err := monitor.Start(); err != nil {
		logger.Fatal().Err(err).Msg("liveness monitor failed to start")
	}

	ws := chat.NewServer(hub, coord, chat.ServerOptions{
		BaseContext:    ctx,
		ReadLimit:      int64(cfg.MaxMessageBytes) * 2,
		ReadTimeout:    cfg.InactivityLimit,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger.With().Str("component", "ws").Logger())

	handler := api.NewHandler(registry, store, hub, backend, []byte(cfg.AuthKey), logger.With().Str("component", "api").Logger())
	router := api.NewRouter(handler, ws, cfg.AllowedOrigins, logger.With().Str("component", "http").Logger())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("history_backend", backend).
			Msg("chat server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				<-monitor.Stop().Done()
				hub.Shutdown()
				cancel()
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	closeList()
	logger.Info().Int("code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

// openHistoryList picks the list backend. A postgres backend that cannot be
// reached at startup falls back to memory; redis reconnects on its own, so an
// unreachable redis is only logged.
func openHistoryList(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.ListStore, string, func()) {
	switch cfg.HistoryBackend {
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("postgres unavailable, falling back to in-memory history")
			return repository.NewMemoryList(), config.BackendMemory, func() {}
		}
		list := repository.NewPostgresMessageList(pool)
		if err := list.EnsureSchema(ctx); err != nil {
			pool.Close()
			logger.Error().Err(err).Msg("postgres schema setup failed, falling back to in-memory history")
			return repository.NewMemoryList(), config.BackendMemory, func() {}
		}
		logger.Info().Msg("connected to PostgreSQL")
		return list, config.BackendPostgres, pool.Close

	case config.BackendRedis:
		list, err := repository.NewRedisList(cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("bad redis url, falling back to in-memory history")
			return repository.NewMemoryList(), config.BackendMemory, func() {}
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		if err := list.Ping(pctx); err != nil {
			logger.Warn().Err(err).Msg("redis not reachable yet, history degrades until it is")
		} else {
			logger.Info().Msg("connected to Redis")
		}
		return list, config.BackendRedis, func() { _ = list.Close() }

	default:
		return repository.NewMemoryList(), config.BackendMemory, func() {}
	}
}
