package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolffbe/real-time-agents/internal/config"
	"github.com/wolffbe/real-time-agents/internal/handler"
	gatewayhandler "github.com/wolffbe/real-time-agents/internal/handler/gateway"
	"github.com/wolffbe/real-time-agents/internal/logging"
	actionsvc "github.com/wolffbe/real-time-agents/internal/service/action"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load("5000")
	if err != nil {
		logging.New(nil, "info").Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(nil, cfg.LogLevel)
	if !envLoaded {
		log.Warn().Msg("no .env file found, using system environment only")
	}

	var store sessionsvc.Store
	if cfg.Gateway.StorePath != "" {
		sqliteStore, err := sessionsvc.OpenSQLite(cfg.Gateway.StorePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open session store")
		}
		store = sqliteStore
		log.Info().Str("path", cfg.Gateway.StorePath).Msg("session store backed by sqlite")
	} else {
		store = sessionsvc.NewMemoryStore()
	}
	defer store.Close()

	sessions := sessionsvc.NewService(store, log, cfg.Gateway.SessionTTL)
	go sessions.RunJanitor(ctx)

	actions := actionsvc.NewManager(store, log)

	router := handler.NewGatewayRouter(gatewayhandler.New(sessions, actions, cfg.Gateway, log))
	startServer(ctx, cfg.Server.Addr, router, log.Sub("gateway"))
}

func startServer(ctx context.Context, addr string, router http.Handler, log *logging.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("gateway service listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
