package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

func newTestAdapter(t *testing.T) (*Adapter, *MemoryStore) {
	t.Helper()
	mem := NewMemoryStore()
	return NewAdapter(mem, NewMemoryRecords(), utils.NewDevelopmentLogger()), mem
}

func TestAdapter_JSONRoundTrip(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	adapter.SetJSON(ctx, KeyAnswers, models.AnswerRecord{0: {"Skin"}})

	var got models.AnswerRecord
	require.True(t, adapter.GetJSON(ctx, KeyAnswers, &got))
	assert.Equal(t, []string{"Skin"}, got[0])
}

func TestAdapter_CorruptValuePurgedOnRead(t *testing.T) {
	adapter, mem := newTestAdapter(t)
	ctx := context.Background()

	adapter.SetString(ctx, KeyGrading, "{not json")

	var got models.GradingResults
	assert.False(t, adapter.GetJSON(ctx, KeyGrading, &got))

	// The bad value is gone so callers fall through to the next source
	// instead of tripping on it again.
	_, ok := mem.Get(ctx, KeyGrading)
	assert.False(t, ok)
}

func TestAdapter_WritesDegradeSilently(t *testing.T) {
	mem := NewMemoryStore()
	mem.FailWrites = true
	adapter := NewAdapter(mem, nil, utils.NewDevelopmentLogger())
	ctx := context.Background()

	adapter.SetJSON(ctx, KeyQuestions, []string{"q"})
	adapter.SetString(ctx, KeySubmitted, "true")

	_, ok := adapter.GetString(ctx, KeySubmitted)
	assert.False(t, ok)
	assert.Equal(t, 0, mem.Len())
}

func TestAdapter_NilRecordsFallsBackToNoop(t *testing.T) {
	adapter := NewAdapter(NewMemoryStore(), nil, utils.NewDevelopmentLogger())
	ctx := context.Background()

	require.NoError(t, adapter.Records().SaveTimeRecord(ctx, &models.AssignmentTimeRecord{
		AssignmentID: "a1",
		UserID:       "u1",
	}))
	_, err := adapter.Records().LoadTimeRecord(ctx, "a1", "u1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRecords_RoundTrip(t *testing.T) {
	records := NewMemoryRecords()
	ctx := context.Background()

	require.NoError(t, records.SaveTimeRecord(ctx, &models.AssignmentTimeRecord{
		AssignmentID:     "a1",
		UserID:           "u1",
		TimeLeftSeconds:  300,
		TimeLimitSeconds: 3600,
	}))

	rec, err := records.LoadTimeRecord(ctx, "a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 300, rec.TimeLeftSeconds)

	_, err = records.LoadTimeRecord(ctx, "a1", "someone-else")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
