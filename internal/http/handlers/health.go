package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status     string `json:"status"`
	Configured bool   `json:"xai_configured"`
	Uptime     string `json:"uptime"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Configured: a.configured(),
		Uptime:     time.Since(a.StartedAt).Round(time.Second).String(),
	})
}
