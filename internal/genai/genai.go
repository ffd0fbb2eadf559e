// Package genai adapts external generation services (speech-to-text, text and
// image models) to the narrow capabilities the enrichment pipeline calls.
package genai

import "context"

// Audio is a decoded recording ready to send to a transcription model.
type Audio struct {
	MimeType string
	Data     []byte
}

// TranscriptionContext tells the model what the conversation was about.
type TranscriptionContext struct {
	IntentionText  string
	QuestionsAsked []string
}

// Image is a generated picture. Data may be empty when the model returned nothing usable.
type Image struct {
	MimeType string
	Data     []byte
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, tc TranscriptionContext) (string, error)
}

// TextGenerator completes a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator paints an image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}
