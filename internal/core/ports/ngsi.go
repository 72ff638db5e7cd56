package ports

import (
	"context"
	"time"

	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// ResourceRepository is the catalog lookup the proxy depends on ("resource_show")
type ResourceRepository interface {
	Show(ctx context.Context, id string) (*domain.Resource, error)
	Create(ctx context.Context, resource *domain.Resource) (*domain.Resource, error)
	Update(ctx context.Context, resource *domain.Resource) (*domain.Resource, error)
	Close() error
}

// CredentialProvider hands out the current user's access token and lets the
// proxy ask for a refresh when the broker rejects it.
type CredentialProvider interface {
	AccessToken(ctx context.Context, user string) (string, error)
	RefreshToken(ctx context.Context, user string) error
}

// Settings is the host application's configuration lookup. Values are
// usually strings or bools but may be anything the config file holds.
type Settings interface {
	Get(key string) any
}

// Environment looks up process environment variables
type Environment interface {
	LookupEnv(key string) (string, bool)
}

// ProxyRecorder receives one observation per proxied request
type ProxyRecorder interface {
	RecordProxy(mode string, status int, bytes int64, duration time.Duration)
}
