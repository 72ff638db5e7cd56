package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/docker/go-units"
)

// Serve listens until Shutdown is called. A clean shutdown returns nil.
func (a *Application) Serve() error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	return a.ServeListener(listener)
}

func (a *Application) ServeListener(listener net.Listener) error {
	configServer := a.Config.Server

	a.logger.Info("Starting ngsiproxy server...", "host", configServer.Host, "port", configServer.Port,
		"read_timeout", configServer.ReadTimeout, "write_timeout", configServer.WriteTimeout)

	if configServer.WriteTimeout > 0 {
		a.logger.Warn("Write timeout is set, long broker streams will be cut off. (default: 0s)", "write_timeout", configServer.WriteTimeout)
	}
	if configServer.RequestLimits.MaxBodySize > 0 {
		a.logger.Info("Request size limits enabled", "max_body_size", units.HumanSize(float64(configServer.RequestLimits.MaxBodySize)))
	}

	limits := configServer.RateLimits
	if limits.ProxyRequestsPerMinute > 0 {
		a.logger.Info("Rate limiting enabled",
			"proxy_limit", limits.ProxyRequestsPerMinute,
			"burst_size", limits.BurstSize,
			"trust_proxy", limits.TrustProxyHeaders)
	}
	if limits.TrustProxyHeaders && len(limits.TrustedProxyCIDRs) > 0 {
		a.logger.Info("Configured Trusted Proxy CIDRS", "cidrs", strings.Join(limits.TrustedProxyCIDRs, ", "))
	}

	a.server.Handler = a.Handler()
	a.logger.InfoWithEndpoint("Started ngsiproxy server", listener.Addr().String())

	if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the limiter's sweeper
func (a *Application) Shutdown(ctx context.Context) error {
	defer a.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}
