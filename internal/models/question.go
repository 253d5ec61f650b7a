package models

import (
	"encoding/json"
	"strings"
)

// Question is a single practice question as delivered by the question bank.
//
// Answers carries the answer key exactly as received: numeric option indices
// for multiple-choice questions, free-text strings for free-response
// questions. It is kept as raw JSON so that normalization and persistence
// round-trips never alter it.
type Question struct {
	ID            string            `json:"id,omitempty"`
	Text          string            `json:"question"`
	Options       []string          `json:"options,omitempty"`
	Answers       []json.RawMessage `json:"answers"`
	Difficulty    *float64          `json:"difficulty,omitempty"`
	Division      string            `json:"division,omitempty"`
	Event         string            `json:"event,omitempty"`
	Subtopics     []string          `json:"subtopics,omitempty"`
	ImageData     string            `json:"imageData,omitempty"`
	Media         string            `json:"media,omitempty"`
	Tournament    string            `json:"tournament,omitempty"`
	PartialCredit bool              `json:"partialCredit,omitempty"`
	OriginalIndex *int              `json:"originalIndex,omitempty"`
}

// IsMultipleChoice reports whether the question has a fixed option list.
// Everything else is graded as free-response.
func (q *Question) IsMultipleChoice() bool {
	return len(q.Options) > 0
}

// HasAnswerKey reports whether the question carries a usable answer key.
func (q *Question) HasAnswerKey() bool {
	if len(q.Answers) == 0 {
		return false
	}
	for _, raw := range q.Answers {
		if len(raw) == 0 || string(raw) == "null" {
			return false
		}
	}
	return true
}

// Phrases that mark a multiple-choice question as multi-select. Checked
// case-insensitively against the question text.
var multiSelectPhrases = []string{
	"choose all",
	"select all",
	"all that apply",
	"multi select",
	"multiple select",
	"multiple answers",
	"check all",
	"mark all",
}

// IsMultiSelect reports whether more than one selection is expected: either
// the question text asks for it, or the answer key holds multiple entries.
func (q *Question) IsMultiSelect() bool {
	if !q.IsMultipleChoice() {
		return false
	}
	if len(q.Answers) > 1 {
		return true
	}
	text := strings.ToLower(q.Text)
	for _, phrase := range multiSelectPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// CorrectOptionTexts resolves the answer key to option strings. Numeric
// entries index into Options; string entries are taken verbatim. Entries
// that cannot be resolved are skipped.
func (q *Question) CorrectOptionTexts() []string {
	out := make([]string, 0, len(q.Answers))
	for _, raw := range q.Answers {
		var idx int
		if err := json.Unmarshal(raw, &idx); err == nil {
			if idx >= 0 && idx < len(q.Options) {
				out = append(out, q.Options[idx])
			}
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AcceptedResponses returns the free-response answer key as strings.
func (q *Question) AcceptedResponses() []string {
	out := make([]string, 0, len(q.Answers))
	for _, raw := range q.Answers {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}
