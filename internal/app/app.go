package app

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/thushan/ngsiproxy/internal/adapter/catalog"
	"github.com/thushan/ngsiproxy/internal/adapter/credentials"
	"github.com/thushan/ngsiproxy/internal/adapter/metrics"
	"github.com/thushan/ngsiproxy/internal/adapter/ngsi"
	"github.com/thushan/ngsiproxy/internal/app/handlers"
	"github.com/thushan/ngsiproxy/internal/config"
	"github.com/thushan/ngsiproxy/internal/logger"
)

// Application wires configuration, the catalog, the token store and the
// proxy service behind the HTTP surface and owns their lifecycle.
type Application struct {
	config   *config.Manager
	logger   logger.StyledLogger
	catalog  *catalog.Repository
	sessions *credentials.Store
	recorder *metrics.Recorder
	proxy    *ngsi.Service
	http     *handlers.Application
}

func New(ctx context.Context, manager *config.Manager, log logger.StyledLogger) (*Application, error) {
	cfg := manager.Config()
	recorder := metrics.New("")

	repo, err := OpenCatalog(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sessions, err := credentials.NewStore(CredentialsConfig(cfg), log)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	proxy, err := ngsi.NewService(ProxyConfig(cfg), ngsi.Dependencies{
		Repository:  repo,
		Credentials: metrics.InstrumentCredentials(sessions, recorder),
		Settings:    manager,
		Environment: ngsi.OSEnvironment{},
		Recorder:    recorder,
		Logger:      log,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create proxy service: %w", err)
	}

	httpApp, err := handlers.NewApplication(handlers.Options{
		Config:   cfg,
		Proxy:    proxy,
		Catalog:  repo,
		Sessions: sessions,
		Recorder: recorder,
		Logger:   log,
	})
	if err != nil {
		proxy.Close()
		repo.Close()
		return nil, err
	}

	if n, err := repo.Count(ctx); err == nil {
		recorder.SetCatalogResources(n)
	}

	return &Application{
		config:   manager,
		logger:   log,
		catalog:  repo,
		sessions: sessions,
		recorder: recorder,
		proxy:    proxy,
		http:     httpApp,
	}, nil
}

// OpenCatalog opens the configured store and applies the seed file, if any
func OpenCatalog(ctx context.Context, cfg *config.Config, log logger.StyledLogger) (*catalog.Repository, error) {
	backend, err := catalog.NewBackend(ctx, cfg.Catalog.Type, cfg.Catalog.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	repo := catalog.NewRepository(backend, log)
	log.Info("Catalog store ready", "type", cfg.Catalog.Type)

	if cfg.Catalog.SeedFile == "" {
		return repo, nil
	}

	resources, err := catalog.LoadSeed(cfg.Catalog.SeedFile)
	if err == nil {
		var n int
		if n, err = repo.Seed(ctx, resources); err == nil {
			log.InfoWithCount("Seeded catalog resources", n, "file", cfg.Catalog.SeedFile)
		}
	}
	if err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// ProxyConfig maps the proxy section onto the ngsi service settings
func ProxyConfig(cfg *config.Config) ngsi.Config {
	return ngsi.Config{
		RegistrationPath:      cfg.Proxy.RegistrationPath,
		ChunkSize:             cfg.Proxy.ChunkSize,
		ConnectionTimeout:     cfg.Proxy.ConnectionTimeout,
		ResponseHeaderTimeout: cfg.Proxy.ResponseHeaderTimeout,
	}
}

func CredentialsConfig(cfg *config.Config) credentials.Config {
	return credentials.Config{
		TokenURL:         cfg.Credentials.TokenURL,
		ClientID:         cfg.Credentials.ClientID,
		ClientSecret:     cfg.Credentials.ClientSecret,
		AccessTokenPath:  cfg.Credentials.AccessTokenPath,
		RefreshTokenPath: cfg.Credentials.RefreshTokenPath,
		Timeout:          cfg.Credentials.Timeout,
	}
}

// Run serves until ctx is cancelled or the server fails, then shuts down
// within server.shutdown_timeout and releases the catalog.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	stopWatch := make(chan struct{})
	if err := a.config.Watch(stopWatch, a.onConfigChange); err != nil {
		a.logger.Warn("Config hot reload disabled", "error", err)
	}

	g.Go(a.http.Serve)

	g.Go(func() error {
		<-gctx.Done()
		close(stopWatch)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Config().Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down ngsiproxy server")
		return a.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *Application) onConfigChange(event fsnotify.Event, cfg *config.Config, err error) {
	if err != nil {
		a.logger.Error("Config reload rejected, keeping previous", "file", event.Name, "error", err)
		return
	}
	a.http.UpdateView(cfg)
	a.logger.Info("Config reloaded", "file", event.Name, "op", event.Op.String())
}

func (a *Application) close() {
	a.proxy.Close()
	if err := a.catalog.Close(); err != nil {
		a.logger.Error("Failed to close catalog", "error", err)
	}
}
