package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpungsan/tether/internal/errors"
)

func TestStageOf(t *testing.T) {
	tests := []struct {
		name string
		c    Connection
		want Stage
	}{
		{"fresh", Connection{}, StageCreated},
		{"consented", Connection{GuestConsented: true}, StageConsented},
		{"audio", Connection{GuestConsented: true, AudioData: strPtr("data:audio/webm;base64,AAAA")}, StageAudioAttached},
		{"blank audio", Connection{AudioData: strPtr("  ")}, StageCreated},
		{"analyzed", Connection{AudioData: strPtr("x"), Transcript: strPtr("t"), PosterPrompt: strPtr("p")}, StageAnalyzed},
		{"poster", Connection{Transcript: strPtr("t"), PosterPrompt: strPtr("p"), PosterImageURL: strPtr("data:image/png;base64,AA")}, StagePosterGenerated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StageOf(&tt.c))
		})
	}
}

func TestRequirements(t *testing.T) {
	empty := &Connection{}

	err := RequireAudio(empty)
	assert.True(t, errors.Is(err, errors.ErrPrecondition))
	assert.Contains(t, err.Error(), "no audio to analyze")

	assert.True(t, errors.Is(RequirePosterPrompt(empty), errors.ErrPrecondition))
	assert.True(t, errors.Is(RequireTranscript(empty), errors.ErrPrecondition))

	full := &Connection{AudioData: strPtr("a"), PosterPrompt: strPtr("p"), Transcript: strPtr("t")}
	assert.NoError(t, RequireAudio(full))
	assert.NoError(t, RequirePosterPrompt(full))
	assert.NoError(t, RequireTranscript(full))
}
