package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/sqlinline"
)

const (
	ProviderXAI = "xai"
)

// Store reads and writes provider API keys in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the backing table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens)
	return err
}

func (s *Store) XAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderXAI)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetXAIAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("xai api key is required")
	}
	if !strings.HasPrefix(key, "xai-") {
		return errors.New("xai api key must start with \"xai-\"")
	}
	return s.upsert(ctx, ProviderXAI, key, map[string]any{
		"updated_by": "xaikey",
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Store) DeleteXAIAPIKey(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderXAI)
	return err
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// ResolveXAIKey prefers the configured key and falls back to the store. A nil
// store means no database is configured.
func ResolveXAIKey(ctx context.Context, configured string, store *Store) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if store == nil {
		return "", nil
	}
	return store.XAIAPIKey(ctx)
}
