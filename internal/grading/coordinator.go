package grading

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/scio-practice/session-service/internal/events"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
)

// Stored multiple-choice scores are recomputed at submit; differences
// beyond this tolerance are corrected.
const scoreTolerance = 0.01

var (
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// RemoteGrader grades free-response batches against the online grader.
// Scores come back in item order on the 0..3 scale.
type RemoteGrader interface {
	GradeBatch(ctx context.Context, items []FRQItem) ([]float64, error)
}

// MetricsSink reports per-session practice statistics.
type MetricsSink interface {
	RecordPractice(ctx context.Context, userID string, update models.MetricsUpdate) error
}

// ResultSubmitter delivers finished sessions to the assignment backends.
type ResultSubmitter interface {
	SubmitAssignment(ctx context.Context, assignmentID string, sub models.EnhancedSubmission) error
	SubmitLegacy(ctx context.Context, sub models.LegacySubmission) error
}

// SubmitInput is everything the coordinator needs to finalize one session.
type SubmitInput struct {
	SessionID        string
	Params           models.RouterParams
	Questions        []models.Question
	Answers          models.AnswerRecord
	Grades           models.GradingResults
	UserID           string
	UserName         string
	TimeLimitMinutes int
	TimeLeftSeconds  int
	Expired          bool
}

// Outcome is the finalized grading result.
type Outcome struct {
	Grades          models.GradingResults
	Score           float64
	TotalPoints     float64
	Corrected       int
	RemoteDelivered bool
}

// Coordinator runs the submission pipeline: recompute and validate every
// multiple-choice score, batch-grade free responses, persist the validated
// result, then report outward. Local persistence always happens before any
// network delivery, so a dead backend cannot lose the student's result.
type Coordinator struct {
	store     *store.Adapter
	grader    RemoteGrader
	metrics   MetricsSink
	submitter ResultSubmitter
	publisher events.Publisher
	logger    utils.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight bool
}

type Option func(*Coordinator)

func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the pipeline. grader, metrics, and submitter may be
// nil: free responses then grade locally and outward reporting is skipped.
func NewCoordinator(
	st *store.Adapter,
	grader RemoteGrader,
	metrics MetricsSink,
	submitter ResultSubmitter,
	publisher events.Publisher,
	logger utils.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		store:     st,
		grader:    grader,
		metrics:   metrics,
		submitter: submitter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit finalizes the session. It is single-flight: a concurrent call
// fails with ErrSubmitInProgress, and a session that already submitted gets
// its stored outcome back instead of being regraded.
func (c *Coordinator) Submit(ctx context.Context, in SubmitInput) (*Outcome, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	gradingKey := c.gradingKey(in.Params)
	if c.alreadySubmitted(ctx, in.Params) {
		return c.storedOutcome(ctx, gradingKey, in), nil
	}

	totals := ComputeTotals(in.Questions, in.Answers)
	grades := c.validateGrades(ctx, in)
	outcome := &Outcome{Grades: grades}

	c.gradeFreeResponses(ctx, in, totals.FRQs, grades, gradingKey)

	for _, score := range grades {
		outcome.Score += score
	}
	outcome.TotalPoints = float64(totals.MCQTotal) + float64(len(in.Questions)-totals.MCQTotal)*FreeResponseMax

	// The validated result is durable from this point on.
	c.store.SetJSON(ctx, gradingKey, grades)
	c.markSubmitted(ctx, in)
	c.saveSnapshot(ctx, in, outcome)

	c.reportMetrics(ctx, in, totals)
	outcome.RemoteDelivered = c.deliverRemote(ctx, in, outcome)

	c.publish(ctx, events.NewSessionSubmittedEvent(events.SessionSubmittedEvent{
		SessionID:        in.SessionID,
		EventName:        in.Params.EventOrDefault(),
		Score:            outcome.Score,
		TotalPoints:      outcome.TotalPoints,
		TimeSpentSeconds: c.timeSpent(in),
		Expired:          in.Expired,
		AssignmentID:     in.Params.AssignmentID,
		UserID:           in.UserID,
	}))

	return outcome, nil
}

// validateGrades recomputes every multiple-choice score and corrects stored
// grades that drifted from the answer key.
func (c *Coordinator) validateGrades(ctx context.Context, in SubmitInput) models.GradingResults {
	grades := make(models.GradingResults, len(in.Questions))
	for idx, score := range in.Grades {
		grades[idx] = score
	}

	for i, q := range in.Questions {
		if !q.IsMultipleChoice() {
			continue
		}
		computed := ScoreMultipleChoice(q, in.Answers[i])
		stored, had := grades[i]
		if had && math.Abs(stored-computed) > scoreTolerance {
			c.logger.Warn("corrected stored score on submit",
				"question_index", i, "old", stored, "new", computed)
			c.publish(ctx, events.NewGradingCorrectedEvent(events.GradingCorrectedEvent{
				SessionID:     in.SessionID,
				QuestionIndex: i,
				OldScore:      stored,
				NewScore:      computed,
			}))
		}
		grades[i] = computed
	}
	return grades
}

// gradeFreeResponses grades the batch remotely when a grader is wired,
// falling back to the local fuzzy matcher per item. Scores are merged and
// persisted as they resolve so a crash mid-batch keeps what was graded.
func (c *Coordinator) gradeFreeResponses(ctx context.Context, in SubmitInput, frqs []FRQItem, grades models.GradingResults, gradingKey string) {
	if len(frqs) == 0 {
		return
	}

	var remote []float64
	if c.grader != nil {
		scores, err := c.grader.GradeBatch(ctx, frqs)
		if err != nil {
			c.logger.Warn("remote free-response grading failed, grading locally", "error", err)
		} else {
			remote = scores
		}
	}

	for i, item := range frqs {
		var score float64
		if remote != nil && i < len(remote) && remote[i] >= 0 && remote[i] <= FreeResponseMax {
			score = remote[i]
		} else {
			score = ScoreFreeResponse(item.Response, item.Question.AcceptedResponses())
		}
		grades[item.Index] = score
		c.store.SetJSON(ctx, gradingKey, grades)
	}
}

// alreadySubmitted checks the submitted marker for the session's own key
// scope. Assignment sessions never consult the generic flag; a stale
// testSubmitted from an earlier practice run must not swallow the first
// real submission of an assignment.
func (c *Coordinator) alreadySubmitted(ctx context.Context, params models.RouterParams) bool {
	if params.IsAssignment() {
		var state models.AssignmentSessionState
		return c.store.GetJSON(ctx, store.AssignmentSessionKey(params.AssignmentID), &state) && state.Submitted
	}
	submitted, _ := c.store.GetString(ctx, store.KeySubmitted)
	return submitted == "true"
}

// markSubmitted records the submission under the scope it belongs to.
func (c *Coordinator) markSubmitted(ctx context.Context, in SubmitInput) {
	if in.Params.IsAssignment() {
		id := in.Params.AssignmentID
		var state models.AssignmentSessionState
		c.store.GetJSON(ctx, store.AssignmentSessionKey(id), &state)
		state.Submitted = true
		state.TimeLeftSeconds = in.TimeLeftSeconds
		c.store.SetJSON(ctx, store.AssignmentSessionKey(id), state)
		return
	}
	c.store.SetString(ctx, store.KeySubmitted, "true")
}

// storedOutcome rebuilds the outcome of a previous submission.
func (c *Coordinator) storedOutcome(ctx context.Context, gradingKey string, in SubmitInput) *Outcome {
	c.logger.Info("session already submitted, returning stored result", "session_id", in.SessionID)
	outcome := &Outcome{Grades: models.GradingResults{}}
	c.store.GetJSON(ctx, gradingKey, &outcome.Grades)
	for _, score := range outcome.Grades {
		outcome.Score += score
	}
	mcqTotal := 0
	for _, q := range in.Questions {
		if q.IsMultipleChoice() {
			mcqTotal++
		}
	}
	outcome.TotalPoints = float64(mcqTotal) + float64(len(in.Questions)-mcqTotal)*FreeResponseMax
	return outcome
}

func (c *Coordinator) saveSnapshot(ctx context.Context, in SubmitInput, outcome *Outcome) {
	questions, _ := json.Marshal(in.Questions)
	answers, _ := json.Marshal(in.Answers)
	grades, _ := json.Marshal(outcome.Grades)

	err := c.store.Records().SaveSnapshot(ctx, &models.ResultSnapshot{
		ID:               in.SessionID,
		AssignmentID:     in.Params.AssignmentID,
		UserID:           in.UserID,
		EventName:        in.Params.EventOrDefault(),
		Questions:        questions,
		Answers:          answers,
		Grades:           grades,
		Score:            outcome.Score,
		TotalPoints:      outcome.TotalPoints,
		TimeSpentSeconds: c.timeSpent(in),
		SubmittedAt:      c.now(),
	})
	if err != nil {
		c.logger.Warn("failed to save result snapshot", "session_id", in.SessionID, "error", err)
	}
}

func (c *Coordinator) reportMetrics(ctx context.Context, in SubmitInput, totals Totals) {
	if c.metrics == nil || in.UserID == "" {
		return
	}
	err := c.metrics.RecordPractice(ctx, in.UserID, models.MetricsUpdate{
		QuestionsAttempted: totals.MCQTotal,
		CorrectAnswers:     int(math.Round(totals.MCQScore)),
		EventName:          in.Params.EventOrDefault(),
	})
	if err != nil {
		c.logger.Warn("failed to record practice metrics", "user_id", in.UserID, "error", err)
	}
}

// deliverRemote hands the result to whichever assignment backend owns the
// session. Delivery failures are reported but never undo the local result.
func (c *Coordinator) deliverRemote(ctx context.Context, in SubmitInput, outcome *Outcome) bool {
	if c.submitter == nil {
		return false
	}

	if in.Params.IsAssignment() {
		sub := models.EnhancedSubmission{
			Answers:          c.answersByQuestionID(in),
			Score:            outcome.Score,
			TotalPoints:      outcome.TotalPoints,
			TimeSpentSeconds: c.timeSpent(in),
			SubmittedAt:      c.now().UTC().Format(time.RFC3339),
		}
		if err := c.submitter.SubmitAssignment(ctx, in.Params.AssignmentID, sub); err != nil {
			c.logger.Error("assignment submission failed, result kept locally",
				"assignment_id", in.Params.AssignmentID, "error", err)
			return false
		}
		return true
	}

	if in.Params.LegacyTeams {
		pointer, _ := c.store.GetString(ctx, store.KeyAssignmentID)
		if pointer == "" {
			return false
		}
		if _, err := strconv.Atoi(pointer); err != nil {
			c.logger.Warn("legacy assignment pointer is not numeric, skipping submit", "pointer", pointer)
			return false
		}
		sub := models.LegacySubmission{
			AssignmentID: pointer,
			UserID:       in.UserID,
			Name:         in.UserName,
			EventName:    in.Params.EventOrDefault(),
			Score:        outcome.Score,
			Detail:       models.LegacySubmissionSum{Total: outcome.TotalPoints},
		}
		if err := c.submitter.SubmitLegacy(ctx, sub); err != nil {
			c.logger.Error("legacy assignment submission failed, result kept locally",
				"assignment_id", pointer, "error", err)
			return false
		}
		c.store.Remove(ctx, store.KeyAssignmentID)
		return true
	}

	return false
}

// answersByQuestionID rekeys answers from list position to question ID,
// which is what the scoped submit endpoint wants. Questions without an ID
// fall back to their original index.
func (c *Coordinator) answersByQuestionID(in SubmitInput) map[string][]string {
	out := make(map[string][]string, len(in.Answers))
	for idx, sel := range in.Answers {
		if idx < 0 || idx >= len(in.Questions) {
			continue
		}
		key := in.Questions[idx].ID
		if key == "" {
			key = strconv.Itoa(idx)
		}
		out[key] = sel
	}
	return out
}

func (c *Coordinator) timeSpent(in SubmitInput) int {
	spent := in.TimeLimitMinutes*60 - in.TimeLeftSeconds
	if spent < 0 {
		return 0
	}
	return spent
}

func (c *Coordinator) gradingKey(params models.RouterParams) string {
	if params.IsAssignment() {
		return store.AssignmentGradingKey(params.AssignmentID)
	}
	return store.KeyGrading
}

func (c *Coordinator) publish(ctx context.Context, event *events.SessionEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishSessionEvent(ctx, event); err != nil {
		c.logger.Warn("failed to publish event", "event_type", event.Type, "error", err)
	}
}
