package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/middleware"
)

const maxInputBytes = 64 << 10

// decodePipelineInput writes the synchronous rejection and returns false when
// the request cannot start a run.
func (a *App) decodePipelineInput(w http.ResponseWriter, r *http.Request) (domain.PipelineInput, bool) {
	if !a.configured() {
		a.error(w, http.StatusInternalServerError, "not_configured", missingKeyMessage)
		return domain.PipelineInput{}, false
	}
	var in domain.PipelineInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxInputBytes)).Decode(&in); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return in, false
	}
	in, msg := a.validateInput(in)
	if msg != "" {
		a.error(w, http.StatusBadRequest, "bad_request", msg)
		return in, false
	}
	return in, true
}

// PipelineStream runs the pipeline and streams its events as server-sent
// events. The run is tied to the request context, so a client disconnect
// cancels it.
func (a *App) PipelineStream(w http.ResponseWriter, r *http.Request) {
	input, ok := a.decodePipelineInput(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// Runs outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	stream := &sseWriter{w: w, rc: rc}
	err := a.Pipeline.Run(r.Context(), input, func(ev domain.Event) {
		if werr := stream.send(ev); werr != nil {
			logger.Debug().Err(werr).Msg("sse: write failed")
		}
	})
	if err != nil {
		logger.Info().Err(err).Msg("sse: run ended with error")
	}
}

type sseWriter struct {
	mu     sync.Mutex
	w      io.Writer
	rc     *http.ResponseController
	broken bool
}

func (s *sseWriter) send(ev domain.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		s.broken = true
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.broken = true
		return err
	}
	return nil
}
