package genai

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt names.
const (
	PromptTranscribe       = "transcribe"
	PromptIntentionSummary = "intention_summary"
	PromptInsights         = "insights"
	PromptPosterPrompt     = "poster_prompt"
	PromptFollowUp         = "follow_up"
)

var requiredPrompts = []string{
	PromptTranscribe,
	PromptIntentionSummary,
	PromptInsights,
	PromptPosterPrompt,
	PromptFollowUp,
}

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptData is the value every prompt template is rendered against.
type PromptData struct {
	IntentionText    string
	IntentionSummary string
	Transcript       string
	Insights         string
	QuestionsAsked   []string
}

// Prompts is a parsed, validated prompt catalogue.
type Prompts struct {
	templates map[string]*template.Template
}

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

// DefaultPrompts returns the embedded catalogue.
func DefaultPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPromptsYAML, nil)
}

// LoadPrompts reads a YAML file whose entries override the embedded catalogue.
// An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	base, err := DefaultPrompts()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	return ParsePrompts(data, base)
}

// ParsePrompts decodes a name-to-template YAML mapping. Entries missing from data
// are taken from base; the result must define every required prompt.
func ParsePrompts(data []byte, base *Prompts) (*Prompts, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}

	p := &Prompts{templates: make(map[string]*template.Template)}
	if base != nil {
		for name, tmpl := range base.templates {
			p.templates[name] = tmpl
		}
	}
	for name, text := range raw {
		tmpl, err := template.New(name).Funcs(promptFuncs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	for _, name := range requiredPrompts {
		if _, ok := p.templates[name]; !ok {
			return nil, fmt.Errorf("prompt %q is not defined", name)
		}
	}
	return p, nil
}

// Render executes the named prompt against data.
func (p *Prompts) Render(name string, data PromptData) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
