package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
)

// Memory is a volatile Store. Records are lost when the process exits.
// Safe for concurrent use; callers only ever see clones.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*connection.Connection
	order []string

	clock connection.Clock
	ids   connection.IDGenerator
}

// NewMemory creates an empty volatile store.
func NewMemory(clock connection.Clock, ids connection.IDGenerator) *Memory {
	return &Memory{
		byID:  make(map[string]*connection.Connection),
		clock: clock,
		ids:   ids,
	}
}

func (m *Memory) Create(_ context.Context, in connection.NewInput) (*connection.Connection, error) {
	c, err := connection.New(m.ids.New(), m.clock.Now(), in)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[c.ID]; exists {
		return nil, errors.NewStorage(fmt.Errorf("duplicate connection id %s", c.ID))
	}
	m.byID[c.ID] = c
	m.order = append(m.order, c.ID)
	return c.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (*connection.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	return c.Clone(), nil
}

func (m *Memory) GetAll(_ context.Context) ([]*connection.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*connection.Connection, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id].Clone())
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, id string, p connection.Patch) (*connection.Connection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	c.Apply(p, m.clock.Now())
	return c.Clone(), nil
}

// Close is a no-op; the records are simply dropped with the process.
func (m *Memory) Close() error {
	return nil
}
