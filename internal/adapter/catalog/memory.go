package catalog

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// MemoryBackend keeps records in process, copies go in and out so callers
// can't mutate stored state
type MemoryBackend struct {
	records *xsync.Map[string, Record]
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: xsync.NewMap[string, Record]()}
}

func (m *MemoryBackend) Load(_ context.Context, id string) (Record, error) {
	record, ok := m.records.Load(id)
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return copyRecord(record), nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, record Record) error {
	m.records.Store(id, copyRecord(record))
	return nil
}

func (m *MemoryBackend) Count(context.Context) (int, error) {
	return m.records.Size(), nil
}

func (m *MemoryBackend) Close() error {
	m.records.Clear()
	return nil
}

func copyRecord(record Record) Record {
	c := make(Record, len(record))
	for k, v := range record {
		c[k] = v
	}
	return c
}
