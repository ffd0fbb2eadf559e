package testutil

import (
	"context"
	"sync"

	"github.com/hpungsan/tether/internal/genai"
)

// FakeTranscriber returns a fixed transcript.
type FakeTranscriber struct {
	mu         sync.Mutex
	Transcript string
	Err        error
	// Block makes calls wait for ctx to be done.
	Block bool

	calls int
	last  genai.Audio
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audio genai.Audio, _ genai.TranscriptionContext) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = audio
	f.mu.Unlock()

	if f.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Transcript, nil
}

// Calls returns how many times Transcribe ran.
func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastAudio returns the audio passed to the latest call.
func (f *FakeTranscriber) LastAudio() genai.Audio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// FakeWriter returns scripted completions in order; the last one repeats.
type FakeWriter struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// FailOn is the 1-based call that returns Err. Zero fails every call when Err is set.
	FailOn int

	prompts []string
}

func (f *FakeWriter) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	n := len(f.prompts)

	if f.Err != nil && (f.FailOn == 0 || f.FailOn == n) {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	if n > len(f.Responses) {
		return f.Responses[len(f.Responses)-1], nil
	}
	return f.Responses[n-1], nil
}

// Calls returns how many times Generate ran.
func (f *FakeWriter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// Prompts returns every prompt received, in order.
func (f *FakeWriter) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// FakePainter returns a fixed image.
type FakePainter struct {
	mu    sync.Mutex
	Image *genai.Image
	Err   error
	Block bool
	// Release, when set, delays the response until it is closed.
	Release chan struct{}

	calls int
}

func (f *FakePainter) GenerateImage(ctx context.Context, _ string) (*genai.Image, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.Release != nil {
		select {
		case <-f.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Image == nil {
		return nil, nil
	}
	img := *f.Image
	return &img, nil
}

// Calls returns how many times GenerateImage ran.
func (f *FakePainter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
