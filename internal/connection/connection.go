// Package connection defines the Connection record, its defaults, and the
// partial-update rules every storage backend applies.
package connection

import (
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/tether/internal/errors"
)

// DefaultVibeDepth is assigned when a connection is created without a vibe depth.
const DefaultVibeDepth = 50

// Connection is the single persisted record for one guided-conversation session.
type Connection struct {
	// ID is a ULID assigned at creation; never reassigned or reused.
	ID string `json:"id"`

	HostID              string    `json:"hostId"`
	IntentionText       string    `json:"intentionText"`
	IntentionSummary    *string   `json:"intentionSummary"`
	IntentionCapturedAt time.Time `json:"intentionCapturedAt"`
	CreatedAt           time.Time `json:"createdAt"`

	GuestEmail  *string  `json:"guestEmail"`
	HostEmail   *string  `json:"hostEmail"`
	LocationLat *float64 `json:"locationLat"`
	LocationLng *float64 `json:"locationLng"`

	// VibeDepth and VibeHeart are presentation-only tone parameters; stored as-is.
	VibeDepth int  `json:"vibeDepth"`
	VibeHeart *int `json:"vibeHeart"`

	GuestConsented bool `json:"guestConsented"`
	// ConsentTimestamp is stamped the first time GuestConsented becomes true.
	ConsentTimestamp *time.Time `json:"consentTimestamp"`

	// AudioData is an opaque encoded blob, usually a base64 data URL carrying its mime type.
	AudioData            *string  `json:"audioData"`
	AudioDurationSeconds *int     `json:"audioDurationSeconds"`
	QuestionsAsked       []string `json:"questionsAsked"`

	NPSScore     *int    `json:"npsScore"`
	FeedbackText *string `json:"feedbackText"`

	// Enrichment results, written only by pipeline stages.
	Transcript     *string `json:"transcript"`
	AIInsights     *string `json:"aiInsights"`
	PosterPrompt   *string `json:"posterPrompt"`
	PosterImageURL *string `json:"posterImageUrl"`

	ReminderSent   bool       `json:"reminderSent"`
	ReminderSentAt *time.Time `json:"reminderSentAt"`
}

// NewInput carries the fields accepted when a connection is created.
// HostID and IntentionText are required; everything else is optional.
type NewInput struct {
	HostID        string
	IntentionText string
	Patch
}

// New validates input and builds a fully defaulted Connection.
// now is truncated to milliseconds so every backend round-trips it exactly.
func New(id string, now time.Time, in NewInput) (*Connection, error) {
	if strings.TrimSpace(in.HostID) == "" {
		return nil, errors.NewValidation("hostId is required")
	}
	if strings.TrimSpace(in.IntentionText) == "" {
		return nil, errors.NewValidation("intentionText is required")
	}
	if err := in.Patch.Validate(); err != nil {
		return nil, err
	}

	now = Timestamp(now)
	c := &Connection{
		ID:                  id,
		HostID:              in.HostID,
		IntentionText:       in.IntentionText,
		IntentionCapturedAt: now,
		CreatedAt:           now,
		VibeDepth:           DefaultVibeDepth,
	}
	c.Apply(in.Patch, now)
	return c, nil
}

// Timestamp normalizes t to UTC with millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Clone returns a deep copy of c.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	out.IntentionSummary = clonePtr(c.IntentionSummary)
	out.GuestEmail = clonePtr(c.GuestEmail)
	out.HostEmail = clonePtr(c.HostEmail)
	out.LocationLat = clonePtr(c.LocationLat)
	out.LocationLng = clonePtr(c.LocationLng)
	out.VibeHeart = clonePtr(c.VibeHeart)
	out.ConsentTimestamp = clonePtr(c.ConsentTimestamp)
	out.AudioData = clonePtr(c.AudioData)
	out.AudioDurationSeconds = clonePtr(c.AudioDurationSeconds)
	out.QuestionsAsked = slices.Clone(c.QuestionsAsked)
	out.NPSScore = clonePtr(c.NPSScore)
	out.FeedbackText = clonePtr(c.FeedbackText)
	out.Transcript = clonePtr(c.Transcript)
	out.AIInsights = clonePtr(c.AIInsights)
	out.PosterPrompt = clonePtr(c.PosterPrompt)
	out.PosterImageURL = clonePtr(c.PosterImageURL)
	out.ReminderSentAt = clonePtr(c.ReminderSentAt)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
