package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/http/handlers"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/http/httpapi"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/pipeline"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/prompt"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

type staticCreds bool

func (c staticCreds) HasCredentials() bool { return bool(c) }

// stubRunner emits events, then either returns or blocks until cancelled.
type stubRunner struct {
	mu        sync.Mutex
	events    []domain.Event
	block     bool
	got       []domain.PipelineInput
	cancelled chan struct{}
}

func newStubRunner(events ...domain.Event) *stubRunner {
	return &stubRunner{events: events, cancelled: make(chan struct{})}
}

func (s *stubRunner) Run(ctx context.Context, input domain.PipelineInput, emit pipeline.Emitter) error {
	s.mu.Lock()
	s.got = append(s.got, input)
	s.mu.Unlock()
	for _, ev := range s.events {
		emit(ev)
	}
	if s.block {
		<-ctx.Done()
		close(s.cancelled)
		return ctx.Err()
	}
	return nil
}

func (s *stubRunner) inputs() []domain.PipelineInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PipelineInput(nil), s.got...)
}

type stubPrompter struct {
	res *prompt.ClipPrompts
	err error
}

func (s stubPrompter) Generate(ctx context.Context, req prompt.ClipRequest) (*prompt.ClipPrompts, error) {
	return s.res, s.err
}

func newServer(t *testing.T, configured bool, runner handlers.PipelineRunner, prompter handlers.ClipGenerator) *httptest.Server {
	t.Helper()
	app := handlers.NewApp(nil, staticCreds(configured), runner, prompter)
	srv := httptest.NewServer(httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readFrames(t *testing.T, resp *http.Response) []domain.Event {
	t.Helper()
	var events []domain.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)
		var ev domain.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestPipelineStreamFrames(t *testing.T) {
	runner := newStubRunner(
		domain.Event{Type: domain.EventScenePlanning, Scene: 1, Message: "Grok is planning Scene 1..."},
		domain.Event{Type: domain.EventSceneComplete, Scene: 1, Message: "Scene 1 complete.", Data: &domain.EventData{VideoURL: "https://durable/scene-1.mp4"}},
		domain.Event{Type: domain.EventPipelineComplete, Scene: 3, Message: "All 3 scenes complete!"},
	)
	srv := newServer(t, true, runner, nil)

	resp, err := http.Post(srv.URL+"/v1/pipeline", "application/json", strings.NewReader(`{"concept":" Solar lamp ","aspect_ratio":"9:16"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := readFrames(t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventScenePlanning, events[0].Type)
	assert.Equal(t, "https://durable/scene-1.mp4", events[1].Data.VideoURL)
	assert.Equal(t, domain.EventPipelineComplete, events[2].Type)

	inputs := runner.inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, domain.PipelineInput{Concept: "Solar lamp", Duration: 6, AspectRatio: "9:16", Resolution: "720p"}, inputs[0])
}

func TestPipelineAliasRoute(t *testing.T) {
	srv := newServer(t, true, newStubRunner(domain.Event{Type: domain.EventPipelineComplete, Scene: 3}), nil)
	resp, err := http.Post(srv.URL+"/api/pipeline", "application/json", strings.NewReader(`{"concept":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Len(t, readFrames(t, resp), 1)
}

func TestPipelineRejections(t *testing.T) {
	cases := []struct {
		name       string
		configured bool
		body       string
		status     int
		message    string
	}{
		{name: "missing key", configured: false, body: `{"concept":"x"}`, status: 500, message: "XAI_API_KEY is not configured"},
		{name: "bad json", configured: true, body: `{"concept":`, status: 400, message: "Invalid JSON body"},
		{name: "empty concept", configured: true, body: `{"concept":"   "}`, status: 400, message: "concept is required"},
		{name: "bad aspect", configured: true, body: `{"concept":"x","aspect_ratio":"21:9"}`, status: 400, message: "aspect_ratio must be one of: 16:9, 4:3, 3:2, 1:1, 2:3, 3:4, 9:16"},
		{name: "bad resolution", configured: true, body: `{"concept":"x","resolution":"4k"}`, status: 400, message: "resolution must be one of: 480p, 720p"},
		{name: "duration too long", configured: true, body: `{"concept":"x","duration":30}`, status: 400, message: "duration must be at most 15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := newStubRunner()
			srv := newServer(t, tc.configured, runner, nil)
			resp, err := http.Post(srv.URL+"/v1/pipeline", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tc.message, errorBody(t, resp))
			assert.Empty(t, runner.inputs())
		})
	}
}

func TestPipelineStreamClientDisconnectCancelsRun(t *testing.T) {
	runner := newStubRunner(domain.Event{Type: domain.EventScenePlanning, Scene: 1})
	runner.block = true
	srv := newServer(t, true, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/pipeline", strings.NewReader(`{"concept":"x"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "scene_planning")

	cancel()
	resp.Body.Close()
	select {
	case <-runner.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled after disconnect")
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/pipeline/ws"
}

func TestPipelineSocketStreamsEvents(t *testing.T) {
	runner := newStubRunner(
		domain.Event{Type: domain.EventScenePlanning, Scene: 1},
		domain.Event{Type: domain.EventPipelineComplete, Scene: 3},
	)
	srv := newServer(t, true, runner, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"concept": "x", "duration": 8}))

	var got []domain.EventType
	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
			break
		}
		got = append(got, ev.Type)
	}
	assert.Equal(t, []domain.EventType{domain.EventScenePlanning, domain.EventPipelineComplete}, got)
	require.Len(t, runner.inputs(), 1)
	assert.Equal(t, 8, runner.inputs()[0].Duration)
}

func TestPipelineSocketStopCancelsRun(t *testing.T) {
	runner := newStubRunner(domain.Event{Type: domain.EventScenePlanning, Scene: 1})
	runner.block = true
	srv := newServer(t, true, runner, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"concept": "x"}))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventScenePlanning, ev.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "stop"}))
	select {
	case <-runner.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("stop frame did not cancel the run")
	}
}

func TestPipelineSocketRejectsInvalidInput(t *testing.T) {
	runner := newStubRunner()
	srv := newServer(t, true, runner, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"concept": ""}))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, 0, ev.Scene)
	assert.Equal(t, "concept is required", ev.Message)
	assert.Empty(t, runner.inputs())
}

func TestGeneratePrompts(t *testing.T) {
	srv := newServer(t, true, nil, stubPrompter{res: &prompt.ClipPrompts{
		Prompts:         []string{"a", "b", "c"},
		ImageAssignment: []int{0, 0, 1},
	}})

	resp, err := http.Post(srv.URL+"/api/generate-prompts", "application/json", strings.NewReader(`{"masterPrompt":"x","images":["a","b"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []any{"a", "b", "c"}, body["prompts"])
	assert.Equal(t, []any{0.0, 0.0, 1.0}, body["imageAssignment"])
}

func TestGeneratePromptsErrors(t *testing.T) {
	cases := []struct {
		name       string
		configured bool
		body       string
		err        error
		status     int
		message    string
	}{
		{name: "missing key", body: `{"masterPrompt":"x"}`, status: 500, message: "XAI_API_KEY is not configured"},
		{name: "bad json", configured: true, body: `nope`, status: 400, message: "Invalid JSON body"},
		{name: "empty prompt", configured: true, body: `{}`, err: prompt.ErrEmptyConcept, status: 400, message: "masterPrompt is required"},
		{name: "upstream", configured: true, body: `{"masterPrompt":"x"}`, err: &xai.APIError{Op: "chat", StatusCode: 429, Body: "slow"}, status: 429, message: "xAI API error: 429"},
		{name: "bad payload", configured: true, body: `{"masterPrompt":"x"}`, err: errors.Join(prompt.ErrInvalidPayload), status: 500, message: "Invalid response format from xAI"},
		{name: "other", configured: true, body: `{"masterPrompt":"x"}`, err: errors.New("dial tcp: refused"), status: 500, message: "dial tcp: refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.configured, nil, stubPrompter{err: tc.err})
			resp, err := http.Post(srv.URL+"/v1/prompts", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.message, errorBody(t, resp))
		})
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, false, nil, nil)
	resp, err := http.Get(srv.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["xai_configured"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
