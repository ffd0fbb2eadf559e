package pipeline

import (
	"context"
	"time"

	"github.com/hpungsan/tether/internal/connection"
)

// StartPoster checks the poster precondition and then generates the poster in the
// background. The returned record is the pre-generation state; callers poll Get
// until PosterImageURL is set. Failures are logged and leave the record untouched.
//
// The job outlives ctx (e.g. the HTTP request) but is bounded by twice the stage
// timeout, covering generation plus storage. Drain waits for it on shutdown.
func (p *Pipeline) StartPoster(ctx context.Context, id string) (*connection.Connection, error) {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connection.RequirePosterPrompt(c); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*p.timeout)
	p.jobs.Add(1)
	go func() {
		defer p.jobs.Done()
		defer cancel()

		start := time.Now()
		if _, err := p.paint(jobCtx, c); err != nil {
			p.logger.Error("background poster generation failed", "id", id, "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return
		}
		p.logger.Info("background poster generation complete", "id", id, "duration_ms", time.Since(start).Milliseconds())
	}()

	p.logger.Info("background poster generation started", "id", id)
	return c, nil
}

// Drain waits for in-flight background jobs, or until ctx is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
