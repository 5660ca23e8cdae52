package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queried int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried++
	return stubRow{token: s.token, err: s.err}
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestXAIAPIKey(t *testing.T) {
	store := NewStore(&stubExecutor{token: " xai-abc123 "})
	key, err := store.XAIAPIKey(context.Background())
	if err != nil {
		t.Fatalf("XAIAPIKey error: %v", err)
	}
	if key != "xai-abc123" {
		t.Fatalf("expected xai-abc123, got %q", key)
	}
}

func TestXAIAPIKey_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.XAIAPIKey(context.Background())
	if err != nil {
		t.Fatalf("XAIAPIKey error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestXAIAPIKey_QueryError(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("connection refused")})
	if _, err := store.XAIAPIKey(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetXAIAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetXAIAPIKey(context.Background(), " xai-secret "); err != nil {
		t.Fatalf("SetXAIAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderXAI {
		t.Fatalf("expected provider %q, got %v", ProviderXAI, exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "xai-secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	raw, ok := exec.exec.args[2].([]byte)
	if !ok {
		t.Fatalf("expected json properties, got %T", exec.exec.args[2])
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		t.Fatalf("properties: %v", err)
	}
	if props["updated_by"] != "xaikey" {
		t.Fatalf("unexpected properties %v", props)
	}
	if !strings.HasPrefix(exec.exec.query, "--sql ") {
		t.Fatalf("query missing marker: %q", exec.exec.query)
	}
}

func TestSetXAIAPIKeyRejectsBadInput(t *testing.T) {
	for _, key := range []string{"", " ", "sk-openai"} {
		store := NewStore(&stubExecutor{})
		if err := store.SetXAIAPIKey(context.Background(), key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestDeleteXAIAPIKey(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).DeleteXAIAPIKey(context.Background()); err != nil {
		t.Fatalf("DeleteXAIAPIKey error: %v", err)
	}
	if len(exec.exec.args) != 1 || exec.exec.args[0] != ProviderXAI {
		t.Fatalf("unexpected args %v", exec.exec.args)
	}
}

func TestResolveXAIKey(t *testing.T) {
	exec := &stubExecutor{token: "xai-from-db"}
	store := NewStore(exec)

	key, err := ResolveXAIKey(context.Background(), " xai-env ", store)
	if err != nil || key != "xai-env" {
		t.Fatalf("configured key: got %q, %v", key, err)
	}
	if exec.queried != 0 {
		t.Fatalf("store consulted despite configured key")
	}

	key, err = ResolveXAIKey(context.Background(), "", store)
	if err != nil || key != "xai-from-db" {
		t.Fatalf("fallback key: got %q, %v", key, err)
	}

	key, err = ResolveXAIKey(context.Background(), "", nil)
	if err != nil || key != "" {
		t.Fatalf("no store: got %q, %v", key, err)
	}
}
