package connection

import (
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/tether/internal/errors"
)

// Patch is a partial update. A nil field means "not mentioned" and is left untouched.
type Patch struct {
	IntentionText    *string
	IntentionSummary *string

	GuestEmail  *string
	HostEmail   *string
	LocationLat *float64
	LocationLng *float64

	VibeDepth *int
	VibeHeart *int

	GuestConsented *bool

	AudioData            *string
	AudioDurationSeconds *int
	QuestionsAsked       *[]string

	NPSScore     *int
	FeedbackText *string

	Transcript     *string
	AIInsights     *string
	PosterPrompt   *string
	PosterImageURL *string

	ReminderSent *bool
}

// MaxNPSScore is the top of the satisfaction scale.
const MaxNPSScore = 10

// Validate rejects values that would break record invariants.
func (p Patch) Validate() error {
	if p.IntentionText != nil && strings.TrimSpace(*p.IntentionText) == "" {
		return errors.NewValidation("intentionText must not be empty")
	}
	if p.NPSScore != nil && (*p.NPSScore < 0 || *p.NPSScore > MaxNPSScore) {
		return errors.NewValidation("npsScore must be between 0 and 10")
	}
	if p.AudioDurationSeconds != nil && *p.AudioDurationSeconds < 0 {
		return errors.NewValidation("audioDurationSeconds must not be negative")
	}
	return nil
}

// IsEmpty reports whether the patch mentions no field at all.
func (p Patch) IsEmpty() bool {
	return p == (Patch{})
}

// Apply merges p over c. Mentioned fields overwrite, the rest keep their value.
// ConsentTimestamp and ReminderSentAt are stamped with now the first time their
// flag becomes true and are never overwritten afterwards.
func (c *Connection) Apply(p Patch, now time.Time) {
	now = Timestamp(now)

	setIf(&c.IntentionText, p.IntentionText)
	setPtrIf(&c.IntentionSummary, p.IntentionSummary)
	setPtrIf(&c.GuestEmail, p.GuestEmail)
	setPtrIf(&c.HostEmail, p.HostEmail)
	setPtrIf(&c.LocationLat, p.LocationLat)
	setPtrIf(&c.LocationLng, p.LocationLng)
	setIf(&c.VibeDepth, p.VibeDepth)
	setPtrIf(&c.VibeHeart, p.VibeHeart)
	setPtrIf(&c.AudioData, p.AudioData)
	setPtrIf(&c.AudioDurationSeconds, p.AudioDurationSeconds)
	if p.QuestionsAsked != nil {
		c.QuestionsAsked = slices.Clone(*p.QuestionsAsked)
	}
	setPtrIf(&c.NPSScore, p.NPSScore)
	setPtrIf(&c.FeedbackText, p.FeedbackText)
	setPtrIf(&c.Transcript, p.Transcript)
	setPtrIf(&c.AIInsights, p.AIInsights)
	setPtrIf(&c.PosterPrompt, p.PosterPrompt)
	setPtrIf(&c.PosterImageURL, p.PosterImageURL)

	if p.GuestConsented != nil {
		c.GuestConsented = *p.GuestConsented
		if c.GuestConsented && c.ConsentTimestamp == nil {
			ts := now
			c.ConsentTimestamp = &ts
		}
	}
	if p.ReminderSent != nil {
		c.ReminderSent = *p.ReminderSent
		if c.ReminderSent && c.ReminderSentAt == nil {
			ts := now
			c.ReminderSentAt = &ts
		}
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setPtrIf[T any](dst **T, v *T) {
	if v != nil {
		val := *v
		*dst = &val
	}
}
