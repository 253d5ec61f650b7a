package loader

import (
	"context"
	"fmt"

	"github.com/scio-practice/session-service/internal/models"
)

// QuestionQuery is what the question bank is asked for.
type QuestionQuery struct {
	Event    string
	Division string
	Count    int
	// Types narrows the fetch, e.g. "id" for identification questions.
	Types string
}

// QuestionSource fetches questions from the question bank.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, query QuestionQuery) ([]models.Question, error)
}

// fetchForParams builds a fresh question set: identification questions are
// blended in at the requested percentage, duplicates are dropped by ID, the
// set is topped up from the regular pool, and the result is shuffled.
func (l *Loader) fetchForParams(ctx context.Context, params models.RouterParams) ([]models.Question, error) {
	count := params.Count()
	idCount := count * params.IDPercent() / 100

	var idQuestions []models.Question
	if idCount > 0 {
		var err error
		idQuestions, err = l.questions.FetchQuestions(ctx, QuestionQuery{
			Event:    params.EventOrDefault(),
			Division: params.Division,
			Count:    idCount,
			Types:    "id",
		})
		if err != nil {
			// Fall back to a regular-only set rather than failing the
			// whole session.
			l.logger.Warn("identification question fetch failed, using regular pool only",
				"event", params.EventName, "error", err)
			idQuestions = nil
		}
	}

	regular, err := l.questions.FetchQuestions(ctx, QuestionQuery{
		Event:    params.EventOrDefault(),
		Division: params.Division,
		Count:    count,
		Types:    params.Types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}

	combined := dedupeByID(append(idQuestions, regular...))
	if len(combined) > count {
		combined = combined[:count]
	}
	if len(combined) == 0 {
		return nil, ErrNoQuestions
	}

	l.shuffle(combined)
	return NormalizeQuestions(combined), nil
}

// FetchReplacement fetches a single question not already present in the
// set, for swapping out a reported question mid-session.
func (l *Loader) FetchReplacement(ctx context.Context, params models.RouterParams, current []models.Question) (*models.Question, error) {
	exclude := make(map[string]bool, len(current))
	for _, q := range current {
		if q.ID != "" {
			exclude[q.ID] = true
		}
	}

	// Over-fetch a little so an exclusion still leaves a candidate.
	pool, err := l.questions.FetchQuestions(ctx, QuestionQuery{
		Event:    params.EventOrDefault(),
		Division: params.Division,
		Count:    len(current) + 1,
		Types:    params.Types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replacement question: %w", err)
	}

	for _, q := range dedupeByID(pool) {
		if q.ID != "" && exclude[q.ID] {
			continue
		}
		replacement := NormalizeQuestions([]models.Question{q})[0]
		return &replacement, nil
	}
	return nil, ErrNoQuestions
}

// dedupeByID drops repeat IDs, keeping first occurrence. Questions without
// an ID cannot collide and always survive.
func dedupeByID(qs []models.Question) []models.Question {
	seen := make(map[string]bool, len(qs))
	out := qs[:0]
	for _, q := range qs {
		if q.ID != "" {
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
		}
		out = append(out, q)
	}
	return out
}

func (l *Loader) shuffle(qs []models.Question) {
	l.rng.Shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})
}
