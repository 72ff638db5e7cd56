package config

import (
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Filename    string            `mapstructure:"-"`
	Server      ServerConfig      `mapstructure:"server"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	View        ViewConfig        `mapstructure:"view"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string              `mapstructure:"host"`
	RateLimits      ServerRateLimits    `mapstructure:"rate_limits"`
	RequestLimits   ServerRequestLimits `mapstructure:"request_limits"`
	Port            int                 `mapstructure:"port"`
	ReadTimeout     time.Duration       `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration       `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration       `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration       `mapstructure:"shutdown_timeout"`
	RequestLogging  bool                `mapstructure:"request_logging"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// ServerRequestLimits caps catalog write bodies
type ServerRequestLimits struct {
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// ServerRateLimits configures the per-client limiter on the proxy route
type ServerRateLimits struct {
	TrustedProxyCIDRs       []string       `mapstructure:"trusted_proxy_cidrs"`
	TrustedProxyCIDRsParsed []netip.Prefix `mapstructure:"-"`
	ProxyRequestsPerMinute  int            `mapstructure:"proxy_requests_per_minute"`
	BurstSize               int            `mapstructure:"burst_size"`
	CleanupInterval         time.Duration  `mapstructure:"cleanup_interval"`
	TrustProxyHeaders       bool           `mapstructure:"trust_proxy_headers"`
}

// ProxyConfig controls the outbound broker call. There is no total timeout,
// a relay lasts until the broker or the browser ends it.
type ProxyConfig struct {
	RegistrationPath      string        `mapstructure:"registration_path"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	ChunkSize             int           `mapstructure:"chunk_size"`
}

// CatalogConfig selects where resources are kept
type CatalogConfig struct {
	Type       string `mapstructure:"type"`
	SQLitePath string `mapstructure:"sqlite_path"`
	SeedFile   string `mapstructure:"seed_file"`
}

// CredentialsConfig describes the identity manager used for token refresh
type CredentialsConfig struct {
	UserHeader       string        `mapstructure:"user_header"`
	TokenURL         string        `mapstructure:"token_url"`
	ClientID         string        `mapstructure:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret"`
	AccessTokenPath  string        `mapstructure:"access_token_path"`
	RefreshTokenPath string        `mapstructure:"refresh_token_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ViewConfig mirrors the catalog settings the embedded viewer depends on
type ViewConfig struct {
	SiteURL       string `mapstructure:"site_url"`
	ProxyEnabled  bool   `mapstructure:"proxy_enabled"`
	OAuth2Enabled bool   `mapstructure:"oauth2_enabled"`
}
