// Package store persists connections behind one interface with two backends: a
// durable SQL database and a volatile in-process map used when no durable target
// is usable. The backend is chosen once, at startup, by Open.
package store

import (
	"context"

	"github.com/hpungsan/tether/internal/connection"
)

// Store is the connection persistence contract shared by every backend.
// Get and Update report an unknown id as a NOT_FOUND error.
type Store interface {
	Create(ctx context.Context, in connection.NewInput) (*connection.Connection, error)
	Get(ctx context.Context, id string) (*connection.Connection, error)
	// GetAll returns every connection in creation order.
	GetAll(ctx context.Context) ([]*connection.Connection, error)
	// Update merges p over the stored record and returns the result.
	Update(ctx context.Context, id string, p connection.Patch) (*connection.Connection, error)
	Close() error
}

// BackendMemory names the volatile backend in a Selection.
const BackendMemory = "memory"

// Selection describes the backend picked at startup.
type Selection struct {
	Backend  string `json:"backend"`
	Durable  bool   `json:"durable"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}
