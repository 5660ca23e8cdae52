package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
)

const (
	defaultPersistTimeout = 2 * time.Minute
	defaultMaxBytes       = 512 << 20
)

// PersisterOptions configures a Persister. Zero values get defaults.
type PersisterOptions struct {
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
	MaxBytes   int64
}

// Persister copies short-lived remote media into a Store.
type Persister struct {
	store    Store
	client   *http.Client
	logger   *infra.Logger
	timeout  time.Duration
	maxBytes int64
}

func NewPersister(store Store, opts PersisterOptions) *Persister {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Persister{store: store, client: client, logger: logger, timeout: timeout, maxBytes: maxBytes}
}

// Persist fetches sourceURL and uploads it to the store, returning the
// durable URL. Any failure is logged and sourceURL is returned unchanged.
func (p *Persister) Persist(ctx context.Context, sourceURL, suggestedName string) string {
	if p == nil || p.store == nil || strings.TrimSpace(sourceURL) == "" {
		return sourceURL
	}
	durable, err := p.persist(ctx, sourceURL, suggestedName)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("source_url", sourceURL).
			Str("name", suggestedName).
			Msg("storage: persist failed, keeping source url")
		return sourceURL
	}
	p.logger.Debug().Str("name", suggestedName).Str("url", durable).Msg("storage: persisted media")
	return durable
}

func (p *Persister) persist(ctx context.Context, sourceURL, suggestedName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch source: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return "", fmt.Errorf("source exceeds %d bytes", p.maxBytes)
	}
	if len(data) == 0 {
		return "", errors.New("source is empty")
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return p.store.Put(ctx, ObjectKey(suggestedName, contentType, data), data, contentType)
}
