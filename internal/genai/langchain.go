package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported text model providers.
const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ModelOptions selects and authenticates a text model.
type ModelOptions struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	OllamaHost string
}

// Model wraps a langchaingo model as both Transcriber and TextGenerator.
// Transcription needs a multimodal provider; googleai is the default for that reason.
type Model struct {
	llm       llms.Model
	modelName string
	prompts   *Prompts
}

// NewModel creates a model based on configuration.
func NewModel(ctx context.Context, opts ModelOptions, prompts *Prompts) (*Model, error) {
	var model llms.Model
	var err error

	switch opts.Provider {
	case ProviderGoogleAI, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key required")
		}
		googleOpts := []googleai.Option{
			googleai.WithAPIKey(opts.APIKey),
			googleai.WithDefaultModel(opts.Model),
		}
		if opts.BaseURL != "" {
			client, err := newEndpointClient(opts.BaseURL, opts.APIKey)
			if err != nil {
				return nil, err
			}
			googleOpts = append(googleOpts, googleai.WithHTTPClient(client))
		}
		model, err = googleai.New(ctx, googleOpts...)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		openaiOpts := []openai.Option{
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			openaiOpts = append(openaiOpts, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(openaiOpts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		anthropicOpts := []anthropic.Option{
			anthropic.WithToken(opts.APIKey),
			anthropic.WithModel(opts.Model),
		}
		if opts.BaseURL != "" {
			anthropicOpts = append(anthropicOpts, anthropic.WithBaseURL(opts.BaseURL))
		}
		model, err = anthropic.New(anthropicOpts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		if opts.BaseURL != "" {
			return nil, fmt.Errorf("ollama takes its endpoint from the ollama host, not a base URL")
		}
		model, err = ollama.New(
			ollama.WithModel(opts.Model),
			ollama.WithServerURL(opts.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}

	return NewModelFromLLM(model, opts.Model, prompts), nil
}

// NewModelFromLLM wraps an existing langchaingo model.
func NewModelFromLLM(llm llms.Model, modelName string, prompts *Prompts) *Model {
	return &Model{llm: llm, modelName: modelName, prompts: prompts}
}

// Generate generates text based on a prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		slog.Warn("generation failed", "model", m.modelName, "prompt_len", len(prompt), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", err)
	}
	slog.Debug("generation complete", "model", m.modelName, "prompt_len", len(prompt), "duration_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(response), nil
}

// Transcribe sends the audio inline together with the transcription instruction.
func (m *Model) Transcribe(ctx context.Context, audio Audio, tc TranscriptionContext) (string, error) {
	instruction, err := m.prompts.Render(PromptTranscribe, PromptData{
		IntentionText:  tc.IntentionText,
		QuestionsAsked: tc.QuestionsAsked,
	})
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(audio.MimeType, audio.Data),
				llms.TextPart(instruction),
			},
		},
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		slog.Warn("transcription failed", "model", m.modelName, "audio_bytes", len(audio.Data), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	slog.Debug("transcription complete", "model", m.modelName, "audio_bytes", len(audio.Data), "duration_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}
