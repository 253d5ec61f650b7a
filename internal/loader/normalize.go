package loader

import (
	"strings"

	"github.com/scio-practice/session-service/internal/models"
)

// NormalizeQuestions prepares a raw question set for a session: whitespace
// is trimmed, legacy media fields are folded into imageData, and each
// question gets its original position stamped on it so shuffled sets can
// still report stable indices. Answer keys pass through untouched; grading
// depends on seeing them exactly as the source sent them.
func NormalizeQuestions(qs []models.Question) []models.Question {
	out := make([]models.Question, len(qs))
	for i, q := range qs {
		q.Text = strings.TrimSpace(q.Text)
		if len(q.Options) > 0 {
			opts := make([]string, len(q.Options))
			for j, opt := range q.Options {
				opts[j] = strings.TrimSpace(opt)
			}
			q.Options = opts
		}
		if q.ImageData == "" && q.Media != "" {
			q.ImageData = q.Media
			q.Media = ""
		}
		if q.OriginalIndex == nil {
			idx := i
			q.OriginalIndex = &idx
		}
		out[i] = q
	}
	return out
}
