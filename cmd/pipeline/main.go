package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/bootstrap"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
)

// pipeline runs one ad generation from the terminal and prints every event
// as a JSON line on stdout. Logs go to stderr.
func main() {
	var input domain.PipelineInput
	flag.StringVar(&input.Concept, "concept", "", "ad concept (required)")
	flag.IntVar(&input.Duration, "duration", domain.DefaultDuration, "seconds per scene (1-15)")
	flag.StringVar(&input.AspectRatio, "aspect", domain.DefaultAspectRatio, "aspect ratio")
	flag.StringVar(&input.Resolution, "resolution", domain.DefaultResolution, "480p or 720p")
	flag.Parse()

	_ = godotenv.Load()

	input = input.Normalize()
	if err := input.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLoggerTo(os.Stderr, cfg.AppEnv).With().Str("cmd", "pipeline").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	if !svc.Client.HasCredentials() {
		fmt.Fprintln(os.Stderr, "XAI_API_KEY is not configured")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	var last domain.Event
	for ev := range svc.Controller.Stream(ctx, input) {
		last = ev
		if err := enc.Encode(ev); err != nil {
			logger.Error().Err(err).Msg("write event")
		}
	}

	switch {
	case last.Type == domain.EventPipelineComplete:
		return
	case errors.Is(ctx.Err(), context.Canceled):
		fmt.Fprintln(os.Stderr, "cancelled")
		os.Exit(130)
	default:
		os.Exit(1)
	}
}
