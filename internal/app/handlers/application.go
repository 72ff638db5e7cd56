package handlers

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/thushan/ngsiproxy/internal/adapter/catalog"
	"github.com/thushan/ngsiproxy/internal/adapter/credentials"
	"github.com/thushan/ngsiproxy/internal/adapter/metrics"
	"github.com/thushan/ngsiproxy/internal/adapter/ngsi"
	"github.com/thushan/ngsiproxy/internal/adapter/security"
	"github.com/thushan/ngsiproxy/internal/adapter/view"
	"github.com/thushan/ngsiproxy/internal/app/middleware"
	"github.com/thushan/ngsiproxy/internal/config"
	"github.com/thushan/ngsiproxy/internal/logger"
	"github.com/thushan/ngsiproxy/internal/router"
)

// Options are the collaborators the HTTP surface is built from
type Options struct {
	Config   *config.Config
	Proxy    *ngsi.Service
	Catalog  *catalog.Repository
	Sessions *credentials.Store
	Viewer   *view.Viewer
	Recorder *metrics.Recorder
	Logger   logger.StyledLogger
}

// Application holds all the dependencies needed for the HTTP handlers
type Application struct {
	Config        *config.Config
	logger        logger.StyledLogger
	proxy         *ngsi.Service
	catalog       *catalog.Repository
	sessions      *credentials.Store
	viewer        atomic.Pointer[view.Viewer]
	recorder      *metrics.Recorder
	rateLimiter   *security.RateLimiter
	sizeLimiter   *security.SizeLimiter
	routeRegistry *router.RouteRegistry
	server        *http.Server
	StartTime     time.Time
}

func NewApplication(opts Options) (*Application, error) {
	if opts.Config == nil || opts.Proxy == nil || opts.Catalog == nil || opts.Logger == nil {
		return nil, errors.New("handlers: config, proxy, catalog and logger are required")
	}
	if opts.Viewer == nil {
		opts.Viewer = view.New(ViewConfig(opts.Config))
	}

	cfg := opts.Config
	limits := cfg.Server.RateLimits

	var rejections security.RejectionRecorder
	if opts.Recorder != nil {
		rejections = opts.Recorder
	}

	a := &Application{
		Config:   cfg,
		logger:   opts.Logger,
		proxy:    opts.Proxy,
		catalog:  opts.Catalog,
		sessions: opts.Sessions,
		recorder: opts.Recorder,
		rateLimiter: security.NewRateLimiter(security.RateLimits{
			RequestsPerMinute: limits.ProxyRequestsPerMinute,
			BurstSize:         limits.BurstSize,
			CleanupInterval:   limits.CleanupInterval,
			TrustProxyHeaders: limits.TrustProxyHeaders,
			TrustedCIDRs:      limits.TrustedProxyCIDRsParsed,
		}, rejections, opts.Logger),
		sizeLimiter:   security.NewSizeLimiter(cfg.Server.RequestLimits.MaxBodySize, opts.Logger),
		routeRegistry: router.NewRouteRegistry(opts.Logger),
		server: &http.Server{
			Addr:         cfg.Server.GetAddress(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		StartTime: time.Now(),
	}
	a.viewer.Store(opts.Viewer)
	return a, nil
}

// ViewConfig maps the view section onto the viewer's settings
func ViewConfig(cfg *config.Config) view.Config {
	return view.Config{
		SiteURL:       cfg.View.SiteURL,
		ProxyEnabled:  cfg.View.ProxyEnabled,
		OAuth2Enabled: cfg.View.OAuth2Enabled,
	}
}

// UpdateView swaps viewer settings after a config reload
func (a *Application) UpdateView(cfg *config.Config) {
	a.viewer.Store(view.New(ViewConfig(cfg)))
}

func (a *Application) GetRouteRegistry() *router.RouteRegistry {
	return a.routeRegistry
}

func (a *Application) GetServer() *http.Server {
	return a.server
}

// Handler builds the complete http handler: routes, their group middleware
// and request logging around everything
func (a *Application) Handler() http.Handler {
	mux := http.NewServeMux()

	a.routeRegistry.Use(router.GroupProxy, a.rateLimiter.Middleware(string(router.GroupProxy)))
	a.routeRegistry.Use(router.GroupCatalog, a.sizeLimiter.Middleware)
	a.registerRoutes()
	a.routeRegistry.WireUp(mux)

	if !a.Config.Server.RequestLogging {
		return mux
	}
	return middleware.Chain(mux,
		middleware.EnhancedLoggingMiddleware(a.logger),
		middleware.AccessLoggingMiddleware(a.logger))
}

// Close stops background work owned by the handlers
func (a *Application) Close() {
	a.rateLimiter.Stop()
}
