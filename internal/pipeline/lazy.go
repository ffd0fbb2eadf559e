package pipeline

import (
	"context"
	"sync"

	"github.com/hpungsan/tether/internal/errors"
)

// stepConfigure names the failure when the pipeline itself cannot be built.
const stepConfigure = "configure"

// Lazy builds a Pipeline on first use so surfaces that also serve plain record
// operations can start without generation credentials. A failed build is retried
// on the next call. Safe for concurrent use.
type Lazy struct {
	build func(context.Context) (*Pipeline, error)

	mu sync.Mutex
	p  *Pipeline
}

// NewLazy wraps build, which runs until it first succeeds.
func NewLazy(build func(context.Context) (*Pipeline, error)) *Lazy {
	return &Lazy{build: build}
}

// Ready wraps an already built Pipeline.
func Ready(p *Pipeline) *Lazy {
	return &Lazy{p: p}
}

// Get returns the Pipeline for stage, building it if needed. A build failure is
// reported as a retriable enrichment error for stage.
func (l *Lazy) Get(ctx context.Context, stage string) (*Pipeline, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.p != nil {
		return l.p, nil
	}
	if l.build == nil {
		return nil, errors.NewEnrichment(stage, stepConfigure, nil)
	}
	p, err := l.build(ctx)
	if err != nil {
		return nil, errors.NewEnrichment(stage, stepConfigure, err)
	}
	l.p = p
	return p, nil
}

// Drain waits for background jobs of the built Pipeline. Nothing to wait for if
// it was never built.
func (l *Lazy) Drain(ctx context.Context) error {
	l.mu.Lock()
	p := l.p
	l.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Drain(ctx)
}
