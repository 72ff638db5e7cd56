package handlers

import (
	"net/http"
	"time"

	"github.com/thushan/ngsiproxy/internal/version"
)

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Resources int    `json:"resources"`
	Sessions  int    `json:"sessions"`
}

func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Uptime: time.Since(a.StartTime).Round(time.Second).String(),
	}

	n, err := a.catalog.Count(r.Context())
	if err != nil {
		resp.Status = "degraded"
	}
	resp.Resources = n
	if a.sessions != nil {
		resp.Sessions = a.sessions.Size()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, resp)
}

func (a *Application) versionHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, version.Current())
}
