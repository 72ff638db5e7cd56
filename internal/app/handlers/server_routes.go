package handlers

import (
	"net/http"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/router"
)

const (
	resourcesRoute   = "/api/resources"
	resourceRoute    = "/api/resources/{" + constants.PathParamResource + "}"
	authMethodsRoute = "/api/auth_methods"
	sessionRoute     = "/internal/session/{" + constants.PathParamUser + "}"
)

func (a *Application) registerRoutes() {
	r := a.routeRegistry

	r.Register(http.MethodGet, constants.DefaultProxyRoute, a.proxyHandler, "Proxy resource to its context broker", router.GroupProxy)
	r.Register(http.MethodGet, constants.DefaultViewRoute, a.viewHandler, "Viewer setup for a resource", router.GroupProxy)

	r.Register(http.MethodPost, resourcesRoute, a.createResourceHandler, "Create resource", router.GroupCatalog)
	r.Register(http.MethodPut, resourceRoute, a.updateResourceHandler, "Update resource", router.GroupCatalog)
	r.Register(http.MethodGet, resourceRoute, a.showResourceHandler, "Show resource", router.GroupCatalog)
	r.Register(http.MethodGet, authMethodsRoute, a.authMethodsHandler, "Available auth methods", router.GroupCatalog)
	r.Register(http.MethodPut, sessionRoute, a.putSessionHandler, "Register user tokens", router.GroupCatalog)
	r.Register(http.MethodDelete, sessionRoute, a.deleteSessionHandler, "Forget user tokens", router.GroupCatalog)

	r.Register(http.MethodGet, constants.DefaultHealthCheckEndpoint, a.healthHandler, "Health check endpoint", router.GroupInternal)
	r.Register(http.MethodGet, constants.DefaultVersionEndpoint, a.versionHandler, "Version information", router.GroupInternal)
	if a.recorder != nil {
		r.Register(http.MethodGet, constants.DefaultMetricsEndpoint, a.recorder.Handler().ServeHTTP, "Prometheus metrics", router.GroupInternal)
	}
}
