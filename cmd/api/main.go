package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/bootstrap"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/http/handlers"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/http/httpapi"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
)

const shutdownGrace = 15 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	if !svc.Client.HasCredentials() {
		logger.Warn().Msg("XAI_API_KEY is not configured; pipeline requests will be rejected")
	}

	app := handlers.NewApp(&logger, svc.Client, svc.Controller, svc.Prompter)
	app.AllowedOrigins = cfg.CORSAllowedOrigins
	if svc.Files != nil {
		app.Media = svc.Files.Handler()
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("API listening on %s", server.Addr())
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
