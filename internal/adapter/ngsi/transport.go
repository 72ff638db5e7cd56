package ngsi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

const (
	DefaultConnectionTimeout     = 30 * time.Second
	DefaultResponseHeaderTimeout = 60 * time.Second
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultKeepAlive             = 60 * time.Second
	DefaultMaxIdleConns          = 50
	DefaultMaxIdleConnsPerHost   = 10
)

// ClientFactory keeps one http.Client per verify policy so connection pools
// are shared between requests resolving to the same TLS settings.
type ClientFactory struct {
	clients               *xsync.Map[domain.VerifyPolicy, *http.Client]
	connectionTimeout     time.Duration
	responseHeaderTimeout time.Duration
}

func NewClientFactory(connectionTimeout, responseHeaderTimeout time.Duration) *ClientFactory {
	if connectionTimeout <= 0 {
		connectionTimeout = DefaultConnectionTimeout
	}
	if responseHeaderTimeout <= 0 {
		responseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	return &ClientFactory{
		clients:               xsync.NewMap[domain.VerifyPolicy, *http.Client](),
		connectionTimeout:     connectionTimeout,
		responseHeaderTimeout: responseHeaderTimeout,
	}
}

// Client returns the client for policy, building it on first use. A CA bundle
// that can't be read fails with 500 and is not cached so a fixed file is
// picked up on the next request.
func (f *ClientFactory) Client(policy domain.VerifyPolicy) (*http.Client, error) {
	if client, ok := f.clients.Load(policy); ok {
		return client, nil
	}

	tlsConfig, err := tlsConfigFor(policy)
	if err != nil {
		return nil, domain.NewAppError(http.StatusInternalServerError, constants.MsgInvalidCABundle, err)
	}

	client, _ := f.clients.LoadOrStore(policy, &http.Client{
		Transport: f.newTransport(tlsConfig),
		// redirects are followed like any http client would, no total timeout
		// so long streaming responses aren't cut off
	})
	return client, nil
}

// Size reports how many distinct clients have been built
func (f *ClientFactory) Size() int {
	return f.clients.Size()
}

// Close drops idle connections of every cached client
func (f *ClientFactory) Close() {
	f.clients.Range(func(_ domain.VerifyPolicy, client *http.Client) bool {
		client.CloseIdleConnections()
		return true
	})
	f.clients.Clear()
}

func (f *ClientFactory) newTransport(tlsConfig *tls.Config) *http.Transport {
	dialTimeout := f.connectionTimeout
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: f.responseHeaderTimeout,
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: DefaultKeepAlive,
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}
}

func tlsConfigFor(policy domain.VerifyPolicy) (*tls.Config, error) {
	if policy.CABundle != "" {
		pem, err := os.ReadFile(policy.CABundle)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle %q: %w", policy.CABundle, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %q holds no PEM certificates", policy.CABundle)
		}
		return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
	}

	if !policy.Verify {
		//nolint:gosec // operator explicitly turned verification off
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}, nil
}
