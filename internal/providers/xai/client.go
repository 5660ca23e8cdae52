package xai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
)

const (
	DefaultBaseURL    = "https://api.x.ai/v1"
	DefaultChatModel  = "grok-4-1-fast"
	DefaultImageModel = "grok-imagine-image"
	DefaultVideoModel = "grok-imagine-video"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("xai: api key is required")

// APIError is returned for any non-2xx response. Body is the raw response
// text as the remote sent it.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xAI %s error %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures the xAI client.
type Options struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	ImageModel     string
	VideoModel     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client issues requests to the xAI chat, image and video endpoints. It holds
// no per-run state and is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	chatModel  string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with defaults for every empty option.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		chatModel:  orDefault(opts.ChatModel, DefaultChatModel),
		imageModel: orDefault(opts.ImageModel, DefaultImageModel),
		videoModel: orDefault(opts.VideoModel, DefaultVideoModel),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) ChatModel() string  { return c.chatModel }
func (c *Client) VideoModel() string { return c.videoModel }

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("xai: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("xai: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xai: %s request: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("xai: read %s response: %w", op, err)
	}
	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("xai: call finished")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("xai: decode %s response: %w", op, err)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
