// Package pipeline runs the enrichment stages that turn a recorded connection into
// a transcript, summary, insights, poster and follow-up suggestions.
//
// Stage A (Analyze) needs audio. Stages B (Poster) and C (FollowUp) both need A's
// output and are independent of each other. Every precondition is checked before
// any generation call, and every generation call is bounded by the stage timeout.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/tether/internal/connection"
	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/genai"
	"github.com/hpungsan/tether/internal/poster"
	"github.com/hpungsan/tether/internal/store"
)

// DefaultTimeout bounds each outbound generation call.
const DefaultTimeout = 90 * time.Second

// Sub-step names reported in enrichment errors.
const (
	stepTranscribe    = "transcribe"
	stepSummarize     = "summarize"
	stepInsights      = "insights"
	stepPosterPrompt  = "poster_prompt"
	stepGenerateImage = "generate_image"
	stepStoreImage    = "store_image"
	stepGenerate      = "generate"
)

// Options wires a Pipeline. Store, Transcriber, Writer and Painter are required.
type Options struct {
	Store       store.Store
	Transcriber genai.Transcriber
	Writer      genai.TextGenerator
	Painter     genai.ImageGenerator
	// Sink defaults to poster.DataURISink.
	Sink poster.Sink
	// Prompts defaults to the embedded catalogue.
	Prompts *genai.Prompts
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Pipeline orchestrates the enrichment stages. Safe for concurrent use.
type Pipeline struct {
	store       store.Store
	transcriber genai.Transcriber
	writer      genai.TextGenerator
	painter     genai.ImageGenerator
	sink        poster.Sink
	prompts     *genai.Prompts
	timeout     time.Duration
	logger      *slog.Logger

	jobs sync.WaitGroup
}

// New builds a Pipeline, filling defaults for optional collaborators.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil || opts.Transcriber == nil || opts.Writer == nil || opts.Painter == nil {
		return nil, fmt.Errorf("pipeline: store, transcriber, writer and painter are required")
	}
	p := &Pipeline{
		store:       opts.Store,
		transcriber: opts.Transcriber,
		writer:      opts.Writer,
		painter:     opts.Painter,
		sink:        opts.Sink,
		prompts:     opts.Prompts,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
	if p.sink == nil {
		p.sink = poster.DataURISink{}
	}
	if p.prompts == nil {
		prompts, err := genai.DefaultPrompts()
		if err != nil {
			return nil, err
		}
		p.prompts = prompts
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// AnalyzeResult is the output of Stage A.
type AnalyzeResult struct {
	Transcript       string                 `json:"transcript"`
	IntentionSummary string                 `json:"intentionSummary"`
	Insights         string                 `json:"insights"`
	PosterPrompt     string                 `json:"posterPrompt"`
	Connection       *connection.Connection `json:"connection"`
}

// PosterResult is the output of Stage B.
type PosterResult struct {
	PosterImageURL string                 `json:"posterImageUrl"`
	Connection     *connection.Connection `json:"connection"`
}

// FollowUpResult is the output of Stage C. Lists are never nil and hold at most
// MaxFollowUpItems entries each.
type FollowUpResult struct {
	DeeperQuestions []string `json:"deeperQuestions"`
	TopicsToExplore []string `json:"topicsToExplore"`
	ActionItems     []string `json:"actionItems"`
}

// Analyze transcribes the audio and derives summary, insights and poster prompt.
// The four results are persisted in one update only after every step succeeded;
// re-running overwrites them.
func (p *Pipeline) Analyze(ctx context.Context, id string) (*AnalyzeResult, error) {
	stage := connection.StepAnalyze
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connection.RequireAudio(c); err != nil {
		return nil, err
	}
	audio, err := genai.DecodeAudio(*c.AudioData)
	if err != nil {
		return nil, errors.NewPrecondition(stage, err.Error())
	}

	transcript, err := p.call(ctx, stage, stepTranscribe, func(ctx context.Context) (string, error) {
		return p.transcriber.Transcribe(ctx, audio, genai.TranscriptionContext{
			IntentionText:  c.IntentionText,
			QuestionsAsked: c.QuestionsAsked,
		})
	})
	if err != nil {
		return nil, err
	}
	if transcript == "" {
		return nil, errors.NewEnrichment(stage, stepTranscribe, fmt.Errorf("empty transcript"))
	}

	data := genai.PromptData{
		IntentionText:  c.IntentionText,
		Transcript:     transcript,
		QuestionsAsked: c.QuestionsAsked,
	}

	rawSummary, err := p.generate(ctx, stage, stepSummarize, genai.PromptIntentionSummary, data)
	if err != nil {
		return nil, err
	}
	summary := Summarize(rawSummary, MaxSummaryRunes)
	if summary == "" {
		return nil, errors.NewEnrichment(stage, stepSummarize, fmt.Errorf("summary has no plain text"))
	}
	data.IntentionSummary = summary

	insights, err := p.generate(ctx, stage, stepInsights, genai.PromptInsights, data)
	if err != nil {
		return nil, err
	}
	data.Insights = insights

	posterPrompt, err := p.generate(ctx, stage, stepPosterPrompt, genai.PromptPosterPrompt, data)
	if err != nil {
		return nil, err
	}

	updated, err := p.store.Update(ctx, id, connection.Patch{
		Transcript:       &transcript,
		IntentionSummary: &summary,
		AIInsights:       &insights,
		PosterPrompt:     &posterPrompt,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("connection analyzed", "id", id, "transcript_len", len(transcript))
	return &AnalyzeResult{
		Transcript:       transcript,
		IntentionSummary: summary,
		Insights:         insights,
		PosterPrompt:     posterPrompt,
		Connection:       updated,
	}, nil
}

// Poster paints the stored poster prompt and persists the image reference.
func (p *Pipeline) Poster(ctx context.Context, id string) (*PosterResult, error) {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connection.RequirePosterPrompt(c); err != nil {
		return nil, err
	}
	return p.paint(ctx, c)
}

func (p *Pipeline) paint(ctx context.Context, c *connection.Connection) (*PosterResult, error) {
	stage := connection.StepPoster

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	start := time.Now()
	img, err := p.painter.GenerateImage(genCtx, *c.PosterPrompt)
	cancel()
	if err != nil {
		p.logger.Warn("enrichment step failed", "stage", stage, "step", stepGenerateImage, "id", c.ID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, errors.NewEnrichment(stage, stepGenerateImage, timeoutAware(genCtx, err, p.timeout))
	}
	if img == nil || len(img.Data) == 0 {
		return nil, errors.NewEnrichment(stage, stepGenerateImage, fmt.Errorf("no image data in response"))
	}
	if img.MimeType == "" {
		img.MimeType = "image/png"
	}

	ref, err := p.sink.Put(ctx, c.ID, img)
	if err != nil {
		var tErr *errors.TetherError
		if stderrors.As(err, &tErr) {
			return nil, err
		}
		return nil, errors.NewEnrichment(stage, stepStoreImage, err)
	}

	updated, err := p.store.Update(ctx, c.ID, connection.Patch{PosterImageURL: &ref})
	if err != nil {
		return nil, err
	}

	p.logger.Info("poster generated", "id", c.ID, "mime", img.MimeType, "bytes", len(img.Data))
	return &PosterResult{PosterImageURL: ref, Connection: updated}, nil
}

// FollowUp generates suggestions from the transcript. Nothing is persisted.
// Text that does not follow the requested layout yields empty lists, not an error.
func (p *Pipeline) FollowUp(ctx context.Context, id string) (*FollowUpResult, error) {
	stage := connection.StepFollowUp
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := connection.RequireTranscript(c); err != nil {
		return nil, err
	}

	prompt, err := p.prompts.Render(genai.PromptFollowUp, genai.PromptData{
		IntentionText:    c.IntentionText,
		IntentionSummary: deref(c.IntentionSummary),
		Transcript:       deref(c.Transcript),
		Insights:         deref(c.AIInsights),
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	text, err := p.call(ctx, stage, stepGenerate, func(ctx context.Context) (string, error) {
		return p.writer.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	result := ParseFollowUp(text)
	return &result, nil
}

// generate renders a prompt and requires a non-empty completion.
func (p *Pipeline) generate(ctx context.Context, stage, step, promptName string, data genai.PromptData) (string, error) {
	prompt, err := p.prompts.Render(promptName, data)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	out, err := p.call(ctx, stage, step, func(ctx context.Context) (string, error) {
		return p.writer.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.NewEnrichment(stage, step, fmt.Errorf("empty response"))
	}
	return out, nil
}

// call runs one generation call under the stage timeout and returns its trimmed output.
func (p *Pipeline) call(ctx context.Context, stage, step string, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(ctx)
	duration := time.Since(start)
	if err != nil {
		p.logger.Warn("enrichment step failed", "stage", stage, "step", step, "duration_ms", duration.Milliseconds(), "error", err)
		return "", errors.NewEnrichment(stage, step, timeoutAware(ctx, err, p.timeout))
	}
	p.logger.Debug("enrichment step complete", "stage", stage, "step", step, "duration_ms", duration.Milliseconds())
	return strings.TrimSpace(out), nil
}

func timeoutAware(ctx context.Context, err error, timeout time.Duration) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
