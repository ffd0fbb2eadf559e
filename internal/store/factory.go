package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hpungsan/tether/internal/connection"
)

// Options configures Open.
type Options struct {
	// DSN is the durable-store connection string, usually DATABASE_URL.
	DSN string
	// Production enables the internal-host refusal in Classify.
	Production    bool
	InternalHosts []string
	DataDir       string
	Pool          PoolOptions

	Clock  connection.Clock
	IDs    connection.IDGenerator
	Logger *slog.Logger
}

// Open picks the backend once for the life of the process.
// Any reason the durable store cannot be used (unset, malformed, internal host in
// production, unreachable, migration failure) selects the volatile backend and logs a
// warning; startup never fails on storage. Only a cancelled ctx returns an error.
func Open(ctx context.Context, opts Options) (Store, Selection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = connection.RealClock{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = connection.NewULIDGenerator()
	}

	d := Classify(opts.DSN, opts.Production, opts.InternalHosts)
	if !d.Durable() {
		return volatile(logger, clock, ids, d.Reason), degraded(d.Reason), nil
	}

	s, err := OpenSQL(ctx, d, opts.DataDir, opts.Pool, clock, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Selection{}, ctxErr
		}
		reason := fmt.Sprintf("durable %s backend unavailable: %v", d.Dialect, err)
		return volatile(logger, clock, ids, reason), degraded(reason), nil
	}

	logger.Info("storage backend selected", "backend", string(d.Dialect), "durable", true)
	return s, Selection{Backend: string(d.Dialect), Durable: true}, nil
}

func degraded(reason string) Selection {
	return Selection{Backend: BackendMemory, Degraded: true, Reason: reason}
}

func volatile(logger *slog.Logger, clock connection.Clock, ids connection.IDGenerator, reason string) *Memory {
	logger.Warn("storage degraded to in-memory backend; connections will be lost on restart",
		"backend", BackendMemory,
		"reason", reason,
	)
	return NewMemory(clock, ids)
}
