package connection

import (
	"strings"

	"github.com/hpungsan/tether/internal/errors"
)

// Stage is the position of a connection in its lifecycle, derived from its fields.
type Stage string

const (
	StageCreated         Stage = "created"
	StageConsented       Stage = "consented"
	StageAudioAttached   Stage = "audio_attached"
	StageAnalyzed        Stage = "analyzed"
	StagePosterGenerated Stage = "poster_generated"
)

// Pipeline stage names, used in error details and logs.
const (
	StepAnalyze  = "analyze"
	StepPoster   = "poster"
	StepFollowUp = "followup"
)

// StageOf derives the furthest lifecycle stage c has reached.
// Follow-up availability is not a stage of its own: it opens together with StageAnalyzed.
func StageOf(c *Connection) Stage {
	switch {
	case present(c.PosterImageURL):
		return StagePosterGenerated
	case present(c.Transcript) && present(c.PosterPrompt):
		return StageAnalyzed
	case present(c.AudioData):
		return StageAudioAttached
	case c.GuestConsented:
		return StageConsented
	default:
		return StageCreated
	}
}

// RequireAudio gates the analyze stage.
func RequireAudio(c *Connection) error {
	if !present(c.AudioData) {
		return errors.NewPrecondition(StepAnalyze, "no audio to analyze")
	}
	return nil
}

// RequirePosterPrompt gates poster generation on a prior analyze run.
func RequirePosterPrompt(c *Connection) error {
	if !present(c.PosterPrompt) {
		return errors.NewPrecondition(StepPoster, "no poster prompt; run analyze first")
	}
	return nil
}

// RequireTranscript gates follow-up generation on a prior analyze run.
func RequireTranscript(c *Connection) error {
	if !present(c.Transcript) {
		return errors.NewPrecondition(StepFollowUp, "no transcript; run analyze first")
	}
	return nil
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
