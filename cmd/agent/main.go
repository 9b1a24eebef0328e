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
	chathandler "github.com/wolffbe/real-time-agents/internal/handler/chat"
	"github.com/wolffbe/real-time-agents/internal/logging"
	"github.com/wolffbe/real-time-agents/internal/service/ai"
	"github.com/wolffbe/real-time-agents/internal/service/history"
	"github.com/wolffbe/real-time-agents/internal/service/relay"
	"github.com/wolffbe/real-time-agents/internal/service/trace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load("5001")
	if err != nil {
		logging.New(nil, "info").Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(nil, cfg.LogLevel)
	if !envLoaded {
		log.Warn().Msg("no .env file found, using system environment only")
	}

	chatModel, err := cfg.Model.NewChatModel(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat model")
	}

	registry := ai.NewRegistry(ai.ClickButton())
	adapter, err := ai.NewAdapter(chatModel, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize model adapter")
	}

	var conversations history.Store
	if cfg.Agent.RedisAddr != "" {
		redisStore, err := history.NewRedisStore(ctx, cfg.Agent.RedisAddr, cfg.Agent.HistoryLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect conversation store")
		}
		defer redisStore.Close()
		conversations = redisStore
		log.Info().Str("addr", cfg.Agent.RedisAddr).Msg("conversation history backed by redis")
	} else {
		conversations = history.NewMemoryStore(cfg.Agent.HistoryLimit)
	}

	var sink trace.Sink = trace.NopSink{}
	if cfg.Agent.TracingEnabled {
		sink = trace.NewOTelSink()
		log.Info().Msg("turn tracing enabled")
	}

	webhook := relay.NewWebhookClient(cfg.Agent.WebhookTimeout, log)
	turns := relay.New(relay.WrapAdapter(adapter), registry, conversations, webhook, sink, log, cfg.Model.Model, cfg.Agent.EventsContextLimit)

	router := handler.NewAgentRouter(chathandler.New(turns, log))
	startServer(ctx, cfg.Server.Addr, router, log.Sub("agent"))
}

func startServer(ctx context.Context, addr string, router http.Handler, log *logging.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("agent service listening")
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
