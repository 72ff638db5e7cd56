package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/logger"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Backend persists flat resource records by id. Load returns
// domain.ErrResourceNotFound for unknown ids.
type Backend interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, id string, record Record) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Repository runs the resource hooks around a flat Backend, so callers only
// ever see resources with their entity list rebuilt.
type Repository struct {
	backend Backend
	logger  logger.StyledLogger
}

func NewRepository(backend Backend, log logger.StyledLogger) *Repository {
	return &Repository{backend: backend, logger: log}
}

// NewBackend picks the storage by name, sqlitePath is only used for sqlite
func NewBackend(ctx context.Context, kind, sqlitePath string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", BackendMemory:
		return NewMemoryBackend(), nil
	case BackendSQLite:
		return NewSQLiteBackend(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unknown catalog type %q, expected %s or %s", kind, BackendMemory, BackendSQLite)
	}
}

func (r *Repository) Show(ctx context.Context, id string) (*domain.Resource, error) {
	record, err := r.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	resource := FromRecord(id, record)
	BeforeShow(resource)
	return resource, nil
}

func (r *Repository) Create(ctx context.Context, resource *domain.Resource) (*domain.Resource, error) {
	pending := resource.Clone()
	if pending.ID == "" {
		pending.ID = uuid.NewString()
	}

	if err := BeforeCreate(pending); err != nil {
		return nil, err
	}
	if err := r.backend.Save(ctx, pending.ID, ToRecord(pending)); err != nil {
		return nil, fmt.Errorf("saving resource %s: %w", pending.ID, err)
	}

	r.logger.InfoWithResource("Resource created", pending.ID, "format", pending.Format)
	return r.Show(ctx, pending.ID)
}

func (r *Repository) Update(ctx context.Context, resource *domain.Resource) (*domain.Resource, error) {
	current, err := r.Show(ctx, resource.ID)
	if err != nil {
		return nil, err
	}

	pending := resource.Clone()
	if err = BeforeUpdate(current, pending); err != nil {
		return nil, err
	}
	if err = r.backend.Save(ctx, pending.ID, ToRecord(pending)); err != nil {
		return nil, fmt.Errorf("saving resource %s: %w", pending.ID, err)
	}

	r.logger.InfoWithResource("Resource updated", pending.ID, "format", pending.Format)
	return r.Show(ctx, pending.ID)
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.backend.Count(ctx)
}

func (r *Repository) Close() error {
	return r.backend.Close()
}
