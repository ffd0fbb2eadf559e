package pipeline

import (
	"regexp"
	"strings"
)

// MaxFollowUpItems caps each follow-up list.
const MaxFollowUpItems = 3

// headerPattern matches a section label on its own line, tolerating markdown
// heading marks, emphasis, numbering and a trailing colon. Text after the colon
// is the section's first item. A lone "*" counts only when it hugs the label;
// "* label" is a bullet, not a header.
var headerPattern = regexp.MustCompile(`(?i)^(?:\s|#|>|_|\*\*)*(?:\d+[.)]\s*)?(?:\*\*|_)*\s*\*?(deeper questions|topics to explore|action items)\s*[*_]*\s*(?::[\s*_]*(.*))?$`)

// bulletPattern matches a leading list marker.
var bulletPattern = regexp.MustCompile(`^(?:[-*+]\s+|•\s*|\d+[.)]\s+)`)

// ParseFollowUp extracts the three suggestion lists from free-form model output.
// It never fails: a missing section is an empty list.
func ParseFollowUp(text string) FollowUpResult {
	result := FollowUpResult{
		DeeperQuestions: []string{},
		TopicsToExplore: []string{},
		ActionItems:     []string{},
	}
	sections := map[string]*[]string{
		"deeper questions":  &result.DeeperQuestions,
		"topics to explore": &result.TopicsToExplore,
		"action items":      &result.ActionItems,
	}

	var current *[]string
	add := func(line string) {
		if current == nil || len(*current) >= MaxFollowUpItems {
			return
		}
		if item := cleanItem(line); item != "" {
			*current = append(*current, item)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			current = sections[strings.ToLower(m[1])]
			add(m[2])
			continue
		}
		add(line)
	}
	return result
}

// cleanItem strips list markers, emphasis wrapping and surrounding whitespace.
func cleanItem(line string) string {
	item := strings.TrimSpace(line)
	for i := 0; i < 2; i++ {
		stripped := bulletPattern.ReplaceAllString(item, "")
		if stripped == item {
			break
		}
		item = strings.TrimSpace(stripped)
	}
	if strings.HasPrefix(item, "**") && strings.HasSuffix(item, "**") && len(item) > 4 {
		item = strings.TrimSpace(item[2 : len(item)-2])
	}
	return item
}
