package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/http/handlers"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/infra"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/middleware"
)

// RouterOptions carries the cross-cutting settings the router applies.
type RouterOptions struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Runs and prompt generation hit the paid remote API.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	r.Group(func(r chi.Router) {
		r.Use(limited)
		r.Post("/v1/pipeline", app.PipelineStream)
		r.Get("/v1/pipeline/ws", app.PipelineSocket)
		r.Post("/v1/prompts", app.GeneratePrompts)

		// Paths kept for existing browser clients.
		r.Post("/api/pipeline", app.PipelineStream)
		r.Post("/api/generate-prompts", app.GeneratePrompts)
	})

	if app.Media != nil {
		r.Handle("/media/*", app.Media)
	}

	return r
}
