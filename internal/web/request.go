package web

import "github.com/hpungsan/tether/internal/connection"

// updateRequest lists the fields a caller may edit. Enrichment results and
// server-stamped timestamps are absent so that DisallowUnknownFields rejects them.
// A JSON null is treated the same as an omitted field.
type updateRequest struct {
	IntentionText *string `json:"intentionText"`

	GuestEmail  *string  `json:"guestEmail"`
	HostEmail   *string  `json:"hostEmail"`
	LocationLat *float64 `json:"locationLat"`
	LocationLng *float64 `json:"locationLng"`

	VibeDepth *int `json:"vibeDepth"`
	VibeHeart *int `json:"vibeHeart"`

	GuestConsented *bool `json:"guestConsented"`

	AudioData            *string   `json:"audioData"`
	AudioDurationSeconds *int      `json:"audioDurationSeconds"`
	QuestionsAsked       *[]string `json:"questionsAsked"`

	NPSScore     *int    `json:"npsScore"`
	FeedbackText *string `json:"feedbackText"`

	ReminderSent *bool `json:"reminderSent"`
}

type createRequest struct {
	HostID *string `json:"hostId"`
	updateRequest
}

func (u updateRequest) patch() connection.Patch {
	return connection.Patch{
		IntentionText:        u.IntentionText,
		GuestEmail:           u.GuestEmail,
		HostEmail:            u.HostEmail,
		LocationLat:          u.LocationLat,
		LocationLng:          u.LocationLng,
		VibeDepth:            u.VibeDepth,
		VibeHeart:            u.VibeHeart,
		GuestConsented:       u.GuestConsented,
		AudioData:            u.AudioData,
		AudioDurationSeconds: u.AudioDurationSeconds,
		QuestionsAsked:       u.QuestionsAsked,
		NPSScore:             u.NPSScore,
		FeedbackText:         u.FeedbackText,
		ReminderSent:         u.ReminderSent,
	}
}

func (c createRequest) input() connection.NewInput {
	p := c.patch()
	in := connection.NewInput{HostID: deref(c.HostID), Patch: p}
	in.IntentionText = deref(p.IntentionText)
	in.Patch.IntentionText = nil
	return in
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
