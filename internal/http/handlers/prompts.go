package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/prompt"
	"github.com/AppleLamps/Grok-Imagine-FAL/internal/providers/xai"
)

// Images arrive as data URIs, so the body limit is far above the pipeline's.
const maxPromptBytes = 32 << 20

// GeneratePrompts turns a master concept (and optional reference images) into
// three clip prompts.
func (a *App) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	if !a.configured() {
		a.error(w, http.StatusInternalServerError, "not_configured", missingKeyMessage)
		return
	}
	var req prompt.ClipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPromptBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	res, err := a.Prompter.Generate(r.Context(), req)
	if err != nil {
		var apiErr *xai.APIError
		switch {
		case errors.Is(err, prompt.ErrEmptyConcept), errors.Is(err, prompt.ErrTooManyImages):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.As(err, &apiErr):
			a.Logger.Error().Int("status", apiErr.StatusCode).Str("body", apiErr.Body).Msg("prompts: xAI call failed")
			a.error(w, upstreamStatus(apiErr.StatusCode), "upstream", fmt.Sprintf("xAI API error: %d", apiErr.StatusCode))
		case errors.Is(err, prompt.ErrInvalidPayload):
			a.error(w, http.StatusInternalServerError, "upstream", "Invalid response format from xAI")
		default:
			a.Logger.Error().Err(err).Msg("prompts: generation failed")
			a.error(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}
	a.json(w, http.StatusOK, res)
}

// upstreamStatus mirrors the remote error status. Anything outside the error
// range becomes a 502.
func upstreamStatus(code int) int {
	if code >= 400 && code < 600 {
		return code
	}
	return http.StatusBadGateway
}
