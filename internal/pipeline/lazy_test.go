package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
)

func TestLazy_BuildFailureIsRetriable(t *testing.T) {
	f := newFixture(t)
	builds := 0
	l := NewLazy(func(context.Context) (*Pipeline, error) {
		builds++
		if builds == 1 {
			return nil, fmt.Errorf("Gemini API key required")
		}
		return f.pipeline, nil
	})

	_, err := l.Get(context.Background(), connection.StepAnalyze)
	tErr := assertCode(t, err, errors.ErrEnrichment)
	assert.Equal(t, connection.StepAnalyze, tErr.Details["stage"])
	assert.Equal(t, "configure", tErr.Details["step"])
	assert.Equal(t, true, tErr.Details["retriable"])
	assert.Contains(t, tErr.Message, "API key")

	p, err := l.Get(context.Background(), connection.StepPoster)
	require.NoError(t, err)
	assert.Same(t, f.pipeline, p)

	p, err = l.Get(context.Background(), connection.StepFollowUp)
	require.NoError(t, err)
	assert.Same(t, f.pipeline, p)
	assert.Equal(t, 2, builds)
}

func TestLazy_Ready(t *testing.T) {
	f := newFixture(t)
	l := Ready(f.pipeline)

	p, err := l.Get(context.Background(), connection.StepAnalyze)
	require.NoError(t, err)
	assert.Same(t, f.pipeline, p)
	assert.NoError(t, l.Drain(context.Background()))
}

func TestLazy_DrainBeforeBuild(t *testing.T) {
	l := NewLazy(func(context.Context) (*Pipeline, error) {
		return nil, fmt.Errorf("not configured")
	})
	assert.NoError(t, l.Drain(context.Background()))

	var zero Lazy
	_, err := zero.Get(context.Background(), connection.StepAnalyze)
	assertCode(t, err, errors.ErrEnrichment)
}
