package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/pipeline"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/prompt"
)

const missingKeyMessage = "XAI_API_KEY is not configured"

// PipelineRunner runs one pipeline and reports events through emit.
type PipelineRunner interface {
	Run(ctx context.Context, input domain.PipelineInput, emit pipeline.Emitter) error
}

// ClipGenerator produces the three clip prompts for a concept.
type ClipGenerator interface {
	Generate(ctx context.Context, req prompt.ClipRequest) (*prompt.ClipPrompts, error)
}

// CredentialChecker reports whether remote calls can be made.
type CredentialChecker interface {
	HasCredentials() bool
}

type App struct {
	Logger         *infra.Logger
	Credentials    CredentialChecker
	Pipeline       PipelineRunner
	Prompter       ClipGenerator
	Media          http.Handler
	AllowedOrigins []string
	StartedAt      time.Time
}

func NewApp(logger *infra.Logger, creds CredentialChecker, runner PipelineRunner, prompter ClipGenerator) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{
		Logger:      logger,
		Credentials: creds,
		Pipeline:    runner,
		Prompter:    prompter,
		StartedAt:   time.Now(),
	}
}

// validateInput normalizes in. The returned message is empty when the input
// is acceptable and safe to send to clients otherwise.
func (a *App) validateInput(in domain.PipelineInput) (domain.PipelineInput, string) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return in, err.Error()
	}
	return in, ""
}

func (a *App) configured() bool {
	return a.Credentials != nil && a.Credentials.HasCredentials()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: message, Code: code})
}
