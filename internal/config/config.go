package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/thushan/ngsiproxy/internal/adapter/catalog"
	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/util"
)

const (
	DefaultPort = 19850
	DefaultHost = "localhost"

	EnvPrefix     = "NGSIPROXY"
	EnvConfigFile = "NGSIPROXY_CONFIG_FILE"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // relays stream for as long as the broker does
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RequestLogging:  true,
			RateLimits: ServerRateLimits{
				ProxyRequestsPerMinute: 120,
				BurstSize:              20,
				CleanupInterval:        5 * time.Minute,
			},
			RequestLimits: ServerRequestLimits{
				MaxBodySize: 1 << 20,
			},
		},
		Proxy: ProxyConfig{
			RegistrationPath:      constants.DefaultRegistrationQueryPath,
			ConnectionTimeout:     30 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			ChunkSize:             constants.DefaultChunkSize,
		},
		Catalog: CatalogConfig{
			Type:       catalog.BackendMemory,
			SQLitePath: "./data/catalog.db",
		},
		Credentials: CredentialsConfig{
			UserHeader:       constants.HeaderDefaultCatalogUser,
			AccessTokenPath:  "$.access_token",
			RefreshTokenPath: "$.refresh_token",
			Timeout:          15 * time.Second,
		},
		View: ViewConfig{
			ProxyEnabled: true,
		},
	}
}

// Manager owns the viper instance. Typed config is swapped atomically on
// reload and raw key lookups go through the same lock as the reload.
type Manager struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	mu      sync.RWMutex
}

// Load reads configuration from file and environment variables. An explicit
// file (argument or NGSIPROXY_CONFIG_FILE) must exist, otherwise config.yaml
// is looked up in . and ./config and may be absent.
func Load(file string) (*Manager, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	m := &Manager{v: v}
	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)
	return m, nil
}

func (m *Manager) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := m.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Filename = m.v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the latest successfully loaded configuration
func (m *Manager) Config() *Config {
	return m.current.Load()
}

// Get answers host app-config lookups such as ckan.verify_requests. It is
// read at request time so a reloaded file applies to the next request.
func (m *Manager) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key)
}

// Reload re-reads the config file. A file that fails to parse or validate
// leaves the previous configuration in place.
func (m *Manager) Reload() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.v.ConfigFileUsed() == "" {
		return m.Config(), nil
	}
	if err := m.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reloading config file: %w", err)
	}
	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}
	m.current.Store(cfg)
	return cfg, nil
}

// Watch reloads on writes to the config file until stop is closed. onChange
// sees every reload attempt, err is set when the new file was rejected.
func (m *Manager) Watch(stop <-chan struct{}, onChange func(fsnotify.Event, *Config, error)) error {
	file := m.v.ConfigFileUsed()
	if file == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch config: %w", err)
	}

	// editors replace files, so watch the directory rather than the file
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch config directory: %w", err)
	}

	target := filepath.Clean(file)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := m.Reload()
				if onChange != nil {
					onChange(event, cfg, err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Validate checks values that would otherwise fail late, and parses CIDRs
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &domain.ConfigValidationError{Field: "server.port", Value: c.Server.Port, Reason: "must be between 0 and 65535"}
	}
	if c.Proxy.ChunkSize <= 0 {
		return &domain.ConfigValidationError{Field: "proxy.chunk_size", Value: c.Proxy.ChunkSize, Reason: "must be positive"}
	}
	if !strings.HasPrefix(c.Proxy.RegistrationPath, "/") {
		return &domain.ConfigValidationError{Field: "proxy.registration_path", Value: c.Proxy.RegistrationPath, Reason: "must start with /"}
	}
	switch c.Catalog.Type {
	case catalog.BackendMemory:
	case catalog.BackendSQLite:
		if c.Catalog.SQLitePath == "" {
			return &domain.ConfigValidationError{Field: "catalog.sqlite_path", Value: c.Catalog.SQLitePath, Reason: "required for sqlite catalogs"}
		}
	default:
		return &domain.ConfigValidationError{Field: "catalog.type", Value: c.Catalog.Type, Reason: "must be memory or sqlite"}
	}
	if c.Credentials.UserHeader == "" {
		return &domain.ConfigValidationError{Field: "credentials.user_header", Value: "", Reason: "must not be empty"}
	}

	cidrs, err := util.ParseTrustedCIDRs(c.Server.RateLimits.TrustedProxyCIDRs)
	if err != nil {
		return &domain.ConfigValidationError{Field: "server.rate_limits.trusted_proxy_cidrs", Value: c.Server.RateLimits.TrustedProxyCIDRs, Reason: err.Error()}
	}
	c.Server.RateLimits.TrustedProxyCIDRsParsed = cidrs
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal, viper only consults the environment for keys it knows about.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.request_logging", d.Server.RequestLogging)
	v.SetDefault("server.request_limits.max_body_size", d.Server.RequestLimits.MaxBodySize)
	v.SetDefault("server.rate_limits.proxy_requests_per_minute", d.Server.RateLimits.ProxyRequestsPerMinute)
	v.SetDefault("server.rate_limits.burst_size", d.Server.RateLimits.BurstSize)
	v.SetDefault("server.rate_limits.cleanup_interval", d.Server.RateLimits.CleanupInterval)
	v.SetDefault("server.rate_limits.trust_proxy_headers", d.Server.RateLimits.TrustProxyHeaders)
	v.SetDefault("server.rate_limits.trusted_proxy_cidrs", d.Server.RateLimits.TrustedProxyCIDRs)

	v.SetDefault("proxy.registration_path", d.Proxy.RegistrationPath)
	v.SetDefault("proxy.connection_timeout", d.Proxy.ConnectionTimeout)
	v.SetDefault("proxy.response_header_timeout", d.Proxy.ResponseHeaderTimeout)
	v.SetDefault("proxy.chunk_size", d.Proxy.ChunkSize)

	v.SetDefault("catalog.type", d.Catalog.Type)
	v.SetDefault("catalog.sqlite_path", d.Catalog.SQLitePath)
	v.SetDefault("catalog.seed_file", d.Catalog.SeedFile)

	v.SetDefault("credentials.user_header", d.Credentials.UserHeader)
	v.SetDefault("credentials.token_url", d.Credentials.TokenURL)
	v.SetDefault("credentials.client_id", d.Credentials.ClientID)
	v.SetDefault("credentials.client_secret", d.Credentials.ClientSecret)
	v.SetDefault("credentials.access_token_path", d.Credentials.AccessTokenPath)
	v.SetDefault("credentials.refresh_token_path", d.Credentials.RefreshTokenPath)
	v.SetDefault("credentials.timeout", d.Credentials.Timeout)

	v.SetDefault("view.site_url", d.View.SiteURL)
	v.SetDefault("view.proxy_enabled", d.View.ProxyEnabled)
	v.SetDefault("view.oauth2_enabled", d.View.OAuth2Enabled)
}
