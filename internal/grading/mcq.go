package grading

import (
	"github.com/scio-practice/session-service/internal/models"
)

// ScoreMultipleChoice grades one multiple-choice selection against the
// question's answer key.
//
// Single-select: exactly one selection matching the key scores 1. Anything
// else, including selecting the right option together with a wrong one,
// scores 0.
//
// Multi-select: all correct options and nothing else scores 1. A partially
// correct selection scores 0.5 only when the question opts into partial
// credit; the default is all-or-nothing.
func ScoreMultipleChoice(q models.Question, selected []string) float64 {
	correct := q.CorrectOptionTexts()
	if len(correct) == 0 || len(selected) == 0 {
		return 0
	}

	correctSet := make(map[string]bool, len(correct))
	for _, c := range correct {
		correctSet[c] = true
	}

	matched := 0
	wrong := 0
	for _, sel := range selected {
		if correctSet[sel] {
			matched++
		} else {
			wrong++
		}
	}

	if q.IsMultiSelect() {
		if matched == len(correct) && wrong == 0 && len(selected) == matched {
			return 1
		}
		if q.PartialCredit && matched > 0 {
			return 0.5
		}
		return 0
	}

	if len(selected) == 1 && matched == 1 {
		return 1
	}
	return 0
}

// FRQItem is one free-response answer waiting for a grade.
type FRQItem struct {
	Index    int
	Question models.Question
	Response string
}

// Totals is the multiple-choice portion of a session summed up, plus the
// free-response items still to grade.
type Totals struct {
	MCQScore float64
	MCQTotal int
	FRQs     []FRQItem
}

// ComputeTotals recomputes every multiple-choice score from scratch and
// collects answered free-response questions for batch grading. Unanswered
// questions of either kind score 0 and count toward the total.
func ComputeTotals(questions []models.Question, answers models.AnswerRecord) Totals {
	var t Totals
	for i, q := range questions {
		if q.IsMultipleChoice() {
			t.MCQTotal++
			t.MCQScore += ScoreMultipleChoice(q, answers[i])
			continue
		}
		sel := answers[i]
		if len(sel) > 0 && sel[0] != "" {
			t.FRQs = append(t.FRQs, FRQItem{Index: i, Question: q, Response: sel[0]})
		}
	}
	return t
}
