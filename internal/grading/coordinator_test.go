package grading

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scio-practice/session-service/internal/events"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
)

// ===== MOCKS =====

type MockRemoteGrader struct {
	mock.Mock
}

func (m *MockRemoteGrader) GradeBatch(ctx context.Context, items []FRQItem) ([]float64, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockMetricsSink struct {
	mock.Mock
}

func (m *MockMetricsSink) RecordPractice(ctx context.Context, userID string, update models.MetricsUpdate) error {
	args := m.Called(ctx, userID, update)
	return args.Error(0)
}

type MockResultSubmitter struct {
	mock.Mock
}

func (m *MockResultSubmitter) SubmitAssignment(ctx context.Context, assignmentID string, sub models.EnhancedSubmission) error {
	args := m.Called(ctx, assignmentID, sub)
	return args.Error(0)
}

func (m *MockResultSubmitter) SubmitLegacy(ctx context.Context, sub models.LegacySubmission) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

// ===== FIXTURE =====

type coordFixture struct {
	coord     *Coordinator
	adapter   *store.Adapter
	records   *store.MemoryRecords
	grader    *MockRemoteGrader
	metrics   *MockMetricsSink
	submitter *MockResultSubmitter
	publisher *events.MockPublisher
}

func newCoordFixture(t *testing.T) *coordFixture {
	t.Helper()
	logger := utils.NewDevelopmentLogger()
	records := store.NewMemoryRecords()
	adapter := store.NewAdapter(store.NewMemoryStore(), records, logger)
	grader := new(MockRemoteGrader)
	metrics := new(MockMetricsSink)
	submitter := new(MockResultSubmitter)
	publisher := events.NewMockPublisher(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	coord := NewCoordinator(adapter, grader, metrics, submitter, publisher, logger)
	return &coordFixture{
		coord:     coord,
		adapter:   adapter,
		records:   records,
		grader:    grader,
		metrics:   metrics,
		submitter: submitter,
		publisher: publisher,
	}
}

func mcqWithKey(t *testing.T, text string, answer int, options ...string) models.Question {
	t.Helper()
	raw, err := json.Marshal(answer)
	require.NoError(t, err)
	return models.Question{Text: text, Options: options, Answers: []json.RawMessage{raw}}
}

func frqWithKey(t *testing.T, text string, accepted ...string) models.Question {
	t.Helper()
	raws := make([]json.RawMessage, len(accepted))
	for i, a := range accepted {
		raw, err := json.Marshal(a)
		require.NoError(t, err)
		raws[i] = raw
	}
	return models.Question{Text: text, Answers: raws}
}

// ===== TESTS =====

func TestSubmit_AllMultipleChoice(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, "u1", mock.Anything).Return(nil)

	questions := []models.Question{
		mcqWithKey(t, "q0", 0, "a", "b"),
		mcqWithKey(t, "q1", 1, "a", "b"),
		mcqWithKey(t, "q2", 0, "a", "b"),
	}
	answers := models.AnswerRecord{0: {"a"}, 1: {"b"}, 2: {"b"}}

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID:        "s1",
		Params:           models.RouterParams{EventName: "Anatomy"},
		Questions:        questions,
		Answers:          answers,
		UserID:           "u1",
		TimeLimitMinutes: 30,
		TimeLeftSeconds:  1500,
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, outcome.Score)
	assert.Equal(t, 3.0, outcome.TotalPoints)

	submitted, _ := f.adapter.GetString(context.Background(), store.KeySubmitted)
	assert.Equal(t, "true", submitted)
}

func TestSubmit_UnansweredQuestionsScoreZero(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, "u1", mock.MatchedBy(func(u models.MetricsUpdate) bool {
		// The attempted count covers the whole set, not just answered ones.
		return u.QuestionsAttempted == 10
	})).Return(nil)

	questions := make([]models.Question, 10)
	answers := models.AnswerRecord{}
	for i := range questions {
		questions[i] = mcqWithKey(t, "q", 0, "a", "b")
		if i < 7 {
			answers[i] = []string{"a"}
		}
	}

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy"},
		Questions: questions,
		Answers:   answers,
		UserID:    "u1",
		Expired:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 7.0, outcome.Score)
	assert.Equal(t, 10.0, outcome.TotalPoints)
	f.metrics.AssertExpectations(t)
}

func TestSubmit_CorrectsDriftedStoredScores(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	questions := []models.Question{mcqWithKey(t, "q0", 0, "a", "b")}
	answers := models.AnswerRecord{0: {"b"}}

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy"},
		Questions: questions,
		Answers:   answers,
		Grades:    models.GradingResults{0: 1}, // drifted: the answer is wrong
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, outcome.Grades[0])

	corrected := f.publisher.EventsOfType(events.EventGradingCorrected)
	require.Len(t, corrected, 1)
}

func TestSubmit_StoredScoreWithinToleranceUntouchedSilently(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	questions := []models.Question{mcqWithKey(t, "q0", 0, "a", "b")}
	answers := models.AnswerRecord{0: {"a"}}

	_, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy"},
		Questions: questions,
		Answers:   answers,
		Grades:    models.GradingResults{0: 1.005},
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.Empty(t, f.publisher.EventsOfType(events.EventGradingCorrected))
}

func TestSubmit_FreeResponseFallsBackToLocalGrading(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.grader.On("GradeBatch", mock.Anything, mock.Anything).Return(nil, errors.New("grader down"))

	questions := []models.Question{frqWithKey(t, "name the phase", "Anaphase")}
	answers := models.AnswerRecord{0: {"anaphase "}}

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Bio"},
		Questions: questions,
		Answers:   answers,
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(FreeResponseMax), outcome.Grades[0],
		"normalized exact match must earn full marks offline")
}

func TestSubmit_RemoteGraderScoresWin(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.grader.On("GradeBatch", mock.Anything, mock.Anything).Return([]float64{2}, nil)

	questions := []models.Question{frqWithKey(t, "explain", "a very specific phrase")}
	answers := models.AnswerRecord{0: {"something loosely right"}}

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Bio"},
		Questions: questions,
		Answers:   answers,
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, outcome.Grades[0])
}

func TestSubmit_SecondSubmitReturnsStoredOutcome(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	questions := []models.Question{mcqWithKey(t, "q0", 0, "a", "b")}
	in := SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy"},
		Questions: questions,
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
	}

	first, err := f.coord.Submit(context.Background(), in)
	require.NoError(t, err)

	second, err := f.coord.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Grades, second.Grades)

	// Only the first submit reports outward.
	f.metrics.AssertExpectations(t)
	assert.Len(t, f.publisher.EventsOfType(events.EventSessionSubmitted), 1)
}

func TestSubmit_AssignmentDeliversEnhancedPayload(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	q := mcqWithKey(t, "q0", 0, "a", "b")
	q.ID = "q-abc"
	f.submitter.On("SubmitAssignment", mock.Anything, "a1", mock.MatchedBy(func(sub models.EnhancedSubmission) bool {
		return sub.Score == 1 && sub.TimeSpentSeconds == 600 && len(sub.Answers["q-abc"]) == 1
	})).Return(nil)

	outcome, err := f.coord.Submit(context.Background(), SubmitInput{
		SessionID:        "s1",
		Params:           models.RouterParams{EventName: "Anatomy", AssignmentID: "a1", AssignmentMode: true},
		Questions:        []models.Question{q},
		Answers:          models.AnswerRecord{0: {"a"}},
		UserID:           "u1",
		TimeLimitMinutes: 60,
		TimeLeftSeconds:  3000,
	})
	require.NoError(t, err)
	assert.True(t, outcome.RemoteDelivered)
	f.submitter.AssertExpectations(t)
}

func TestSubmit_StaleGenericFlagDoesNotMaskAssignmentSubmit(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()

	// A finished practice session left its submitted marker under the
	// generic key. The assignment's first submit must still grade and
	// deliver.
	f.adapter.SetString(ctx, store.KeySubmitted, "true")
	f.metrics.On("RecordPractice", mock.Anything, "u1", mock.Anything).Return(nil).Once()
	f.submitter.On("SubmitAssignment", mock.Anything, "a1", mock.Anything).Return(nil).Once()

	outcome, err := f.coord.Submit(ctx, SubmitInput{
		SessionID:        "s1",
		Params:           models.RouterParams{EventName: "Anatomy", AssignmentID: "a1", AssignmentMode: true},
		Questions:        []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:          models.AnswerRecord{0: {"a"}},
		UserID:           "u1",
		TimeLimitMinutes: 60,
		TimeLeftSeconds:  3000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, outcome.Score)
	assert.True(t, outcome.RemoteDelivered)
	f.submitter.AssertExpectations(t)

	var state models.AssignmentSessionState
	require.True(t, f.adapter.GetJSON(ctx, store.AssignmentSessionKey("a1"), &state))
	assert.True(t, state.Submitted)
	assert.Equal(t, 3000, state.TimeLeftSeconds)
}

func TestSubmit_AssignmentSecondSubmitReturnsStoredOutcome(t *testing.T) {
	f := newCoordFixture(t)
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.submitter.On("SubmitAssignment", mock.Anything, "a1", mock.Anything).Return(nil).Once()

	in := SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy", AssignmentID: "a1", AssignmentMode: true},
		Questions: []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
	}

	first, err := f.coord.Submit(context.Background(), in)
	require.NoError(t, err)

	second, err := f.coord.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	f.submitter.AssertExpectations(t)
}

func TestSubmit_LegacyTeamsUsesPointerAndClearsIt(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.adapter.SetString(ctx, store.KeyAssignmentID, "12345")
	f.submitter.On("SubmitLegacy", mock.Anything, mock.MatchedBy(func(sub models.LegacySubmission) bool {
		return sub.AssignmentID == "12345" && sub.UserID == "u1" && sub.Name == "Ada"
	})).Return(nil)

	outcome, err := f.coord.Submit(ctx, SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy", LegacyTeams: true},
		Questions: []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
		UserName:  "Ada",
	})
	require.NoError(t, err)
	assert.True(t, outcome.RemoteDelivered)

	_, ok := f.adapter.GetString(ctx, store.KeyAssignmentID)
	assert.False(t, ok, "legacy pointer must be cleared after delivery")
}

func TestSubmit_LegacyPointerMustBeNumeric(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.adapter.SetString(ctx, store.KeyAssignmentID, "not-a-number")

	outcome, err := f.coord.Submit(ctx, SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy", LegacyTeams: true},
		Questions: []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.False(t, outcome.RemoteDelivered)
	f.submitter.AssertNotCalled(t, "SubmitLegacy")
}

func TestSubmit_RemoteFailureKeepsLocalResult(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.submitter.On("SubmitAssignment", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("backend down"))

	outcome, err := f.coord.Submit(ctx, SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy", AssignmentID: "a1", AssignmentMode: true},
		Questions: []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
	})
	require.NoError(t, err, "a dead backend must not fail the submission")
	assert.False(t, outcome.RemoteDelivered)
	assert.Equal(t, 1.0, outcome.Score)

	var stored models.GradingResults
	assert.True(t, f.adapter.GetJSON(ctx, store.AssignmentGradingKey("a1"), &stored))
	assert.Equal(t, 1.0, stored[0])
}

func TestSubmit_SavesResultSnapshot(t *testing.T) {
	f := newCoordFixture(t)
	ctx := context.Background()
	f.metrics.On("RecordPractice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.submitter.On("SubmitAssignment", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.coord.Submit(ctx, SubmitInput{
		SessionID: "s1",
		Params:    models.RouterParams{EventName: "Anatomy", AssignmentID: "a1", AssignmentMode: true},
		Questions: []models.Question{mcqWithKey(t, "q0", 0, "a", "b")},
		Answers:   models.AnswerRecord{0: {"a"}},
		UserID:    "u1",
	})
	require.NoError(t, err)

	snap, err := f.records.LoadSnapshot(ctx, "a1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Score)
	assert.Equal(t, "Anatomy", snap.EventName)
}
