package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scio-practice/session-service/internal/models"
)

func rawAnswers(t *testing.T, values ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = raw
	}
	return out
}

func TestScoreMultipleChoice_SingleSelect(t *testing.T) {
	q := models.Question{
		Text:    "What phase follows metaphase?",
		Options: []string{"Prophase", "Anaphase", "Telophase"},
		Answers: rawAnswers(t, 1),
	}

	tests := []struct {
		name     string
		selected []string
		want     float64
	}{
		{"correct option", []string{"Anaphase"}, 1},
		{"wrong option", []string{"Prophase"}, 0},
		{"no selection", nil, 0},
		{"empty selection", []string{}, 0},
		{"correct plus extra", []string{"Anaphase", "Prophase"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreMultipleChoice(q, tt.selected))
		})
	}
}

func TestScoreMultipleChoice_MultiSelect(t *testing.T) {
	q := models.Question{
		Text:    "Select all that apply: which are bones of the arm?",
		Options: []string{"Humerus", "Femur", "Radius", "Tibia"},
		Answers: rawAnswers(t, 0, 2),
	}

	tests := []struct {
		name     string
		selected []string
		want     float64
	}{
		{"exact match", []string{"Humerus", "Radius"}, 1},
		{"exact match reordered", []string{"Radius", "Humerus"}, 1},
		{"partial overlap", []string{"Humerus"}, 0},
		{"correct plus incorrect", []string{"Humerus", "Radius", "Femur"}, 0},
		{"all wrong", []string{"Femur", "Tibia"}, 0},
		{"nothing selected", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreMultipleChoice(q, tt.selected))
		})
	}
}

func TestScoreMultipleChoice_MultiSelectPartialCredit(t *testing.T) {
	q := models.Question{
		Text:          "Check all correct statements",
		Options:       []string{"a", "b", "c"},
		Answers:       rawAnswers(t, 0, 1),
		PartialCredit: true,
	}

	assert.Equal(t, 1.0, ScoreMultipleChoice(q, []string{"a", "b"}))
	assert.Equal(t, 0.5, ScoreMultipleChoice(q, []string{"a"}))
	assert.Equal(t, 0.5, ScoreMultipleChoice(q, []string{"a", "c"}))
	assert.Equal(t, 0.0, ScoreMultipleChoice(q, []string{"c"}))
}

func TestScoreMultipleChoice_StringAnswerKey(t *testing.T) {
	// Some sources store the option text instead of its index.
	q := models.Question{
		Text:    "Largest organ?",
		Options: []string{"Skin", "Liver"},
		Answers: rawAnswers(t, "Skin"),
	}
	assert.Equal(t, 1.0, ScoreMultipleChoice(q, []string{"Skin"}))
	assert.Equal(t, 0.0, ScoreMultipleChoice(q, []string{"Liver"}))
}

func TestIsMultiSelect_KeywordDetection(t *testing.T) {
	keywords := []string{
		"Choose all that are true",
		"Select ALL correct options",
		"Which apply? Mark all correct answers",
	}
	for _, text := range keywords {
		q := models.Question{Text: text, Options: []string{"a", "b"}, Answers: rawAnswers(t, 0)}
		assert.True(t, q.IsMultiSelect(), "text %q must be multi-select", text)
	}

	single := models.Question{Text: "Pick the best answer", Options: []string{"a", "b"}, Answers: rawAnswers(t, 0)}
	assert.False(t, single.IsMultiSelect())

	multiKey := models.Question{Text: "Pick the best answer", Options: []string{"a", "b"}, Answers: rawAnswers(t, 0, 1)}
	assert.True(t, multiKey.IsMultiSelect(), "multiple key entries imply multi-select")
}

func TestComputeTotals(t *testing.T) {
	questions := []models.Question{
		{Text: "m1", Options: []string{"a", "b"}, Answers: rawAnswers(t, 0)},
		{Text: "m2", Options: []string{"a", "b"}, Answers: rawAnswers(t, 1)},
		{Text: "f1", Answers: rawAnswers(t, "mitochondria")},
		{Text: "f2", Answers: rawAnswers(t, "ribosome")},
	}
	answers := models.AnswerRecord{
		0: {"a"},            // correct
		1: {"a"},            // wrong
		2: {"mitochondria"}, // answered FRQ
		// 3 unanswered
	}

	totals := ComputeTotals(questions, answers)
	assert.Equal(t, 2, totals.MCQTotal)
	assert.Equal(t, 1.0, totals.MCQScore)
	assert.Len(t, totals.FRQs, 1)
	assert.Equal(t, 2, totals.FRQs[0].Index)
}
