package handlers

import (
	"errors"
	"net/http"

	"github.com/thushan/ngsiproxy/internal/adapter/ngsi"
	"github.com/thushan/ngsiproxy/internal/app/middleware"
	"github.com/thushan/ngsiproxy/internal/core/constants"
)

// proxyHandler relays the resource's broker query. Errors before the relay
// starts become JSON error bodies; a stream cut halfway can only be logged.
func (a *Application) proxyHandler(w http.ResponseWriter, r *http.Request) {
	err := a.proxy.ProxyResource(r.Context(), w, ngsi.Request{
		ResourceID: r.PathValue(constants.PathParamResource),
		User:       a.catalogUser(r),
		RequestID:  middleware.GetRequestID(r.Context()),
	})
	if err == nil || errors.Is(err, ngsi.ErrStreamInterrupted) {
		return
	}
	a.writeError(w, r, err)
}
