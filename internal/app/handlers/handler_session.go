package handlers

import (
	"net/http"

	"github.com/thushan/ngsiproxy/internal/adapter/credentials"
	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// putSessionHandler is how the catalog hands over a user's tokens after login
func (a *Application) putSessionHandler(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		a.writeError(w, r, domain.NewAppError(http.StatusNotImplemented, "Token sessions are not enabled", nil))
		return
	}

	var session credentials.Session
	if err := a.decodeJSON(r, &session); err != nil {
		a.writeError(w, r, err)
		return
	}

	user := r.PathValue(constants.PathParamUser)
	if err := a.sessions.Put(user, session); err != nil {
		a.writeError(w, r, domain.NewAppError(http.StatusBadRequest, err.Error(), err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Application) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if a.sessions != nil {
		a.sessions.Remove(r.PathValue(constants.PathParamUser))
	}
	w.WriteHeader(http.StatusNoContent)
}
