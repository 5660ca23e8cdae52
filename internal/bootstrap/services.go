// Package bootstrap wires the configured clients, storage and pipeline
// components for the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra/credentials"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/pipeline"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/planner"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/prompt"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/storage"
)

type Services struct {
	Client     *xai.Client
	Controller *pipeline.Controller
	Prompter   *prompt.ClipPrompter
	// Files is set only for the local storage driver; its handler serves
	// the persisted media.
	Files *storage.FileStore
}

// Build constructs every service from cfg. A missing xAI key is not an error;
// the returned client reports HasCredentials() == false.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = infra.NopLogger()
	}

	apiKey, err := resolveKey(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	httpClient, err := infra.NewHTTPClient(cfg.XAIProxyURL, cfg.XAIRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: http client: %w", err)
	}
	client, err := xai.NewClient(xai.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.XAIBaseURL,
		ChatModel:  cfg.XAIChatModel,
		ImageModel: cfg.XAIImageModel,
		VideoModel: cfg.XAIVideoModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: xai client: %w", err)
	}

	svc := &Services{Client: client}
	var store storage.Store
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: s3 store: %w", err)
		}
		store = s3
	default:
		files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: file store: %w", err)
		}
		svc.Files = files
		store = files
	}
	persister := storage.NewPersister(store, storage.PersisterOptions{HTTPClient: httpClient, Logger: logger})

	scenePlanner, err := planner.New(client, planner.Options{Model: cfg.XAIChatModel, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: planner: %w", err)
	}

	timeouts := Timeouts(cfg)
	executor := pipeline.NewExecutor(client, persister, timeouts, logger)
	svc.Controller = pipeline.NewController(scenePlanner, executor, timeouts, logger)
	svc.Prompter = prompt.NewClipPrompter(client, prompt.Options{Model: cfg.XAIPromptModel, Logger: logger})

	logger.Info().
		Bool("xai_configured", client.HasCredentials()).
		Str("storage", cfg.StorageDriver).
		Dur("poll_ceiling", timeouts.Poll()).
		Msg("bootstrap: services ready")
	return svc, nil
}

// Timeouts maps the pipeline settings onto pipeline.Timeouts.
func Timeouts(cfg *infra.Config) pipeline.Timeouts {
	return pipeline.Timeouts{
		Step:            cfg.PipelineStepTimeout,
		PollInterval:    cfg.PipelinePollInterval,
		PollMaxAttempts: cfg.PipelinePollMaxAttempts,
		PollMargin:      cfg.PipelinePollMargin,
	}
}

// resolveKey falls back to the integration_tokens table when the environment
// has no key. Database trouble is logged, not fatal: the service still starts
// and rejects runs until a key is available.
func resolveKey(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (string, error) {
	if cfg.HasXAIKey() || cfg.DatabaseURL == "" {
		return cfg.XAIAPIKey, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: credential store unavailable")
		return "", nil
	}
	defer pool.Close()

	store := credentials.NewStore(infra.NewSQLRunner(pool, *logger))
	key, err := credentials.ResolveXAIKey(ctx, cfg.XAIAPIKey, store)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: credential lookup failed")
		return "", nil
	}
	if key != "" {
		logger.Info().Str("provider", credentials.ProviderXAI).Msg("bootstrap: using stored api key")
	}
	return key, nil
}
