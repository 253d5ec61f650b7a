package session

import (
	"context"
	"sync"
	"time"

	"github.com/scio-practice/session-service/internal/clock"
	"github.com/scio-practice/session-service/internal/events"
	"github.com/scio-practice/session-service/internal/grading"
	"github.com/scio-practice/session-service/internal/loader"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
)

// State is where a session sits in its lifecycle.
type State string

const (
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

// Explanation requests fan out to an external model, so they are throttled
// per session.
const explainCooldown = 2 * time.Second

// ExplanationSource produces an explanation for one answered question.
type ExplanationSource interface {
	Explain(ctx context.Context, q models.Question, studentAnswer []string) (string, error)
}

// BookmarkSaver persists a single bookmark toggle.
type BookmarkSaver interface {
	SaveBookmark(ctx context.Context, userID, eventName string, q models.Question, bookmarked bool) error
}

// Controller owns one running test session: the resolved question set, the
// student's answers and running grades, and the countdown. All methods are
// safe for concurrent use.
type Controller struct {
	id       string
	userID   string
	userName string

	store     *store.Adapter
	loader    *loader.Loader
	clock     *clock.Clock
	grader    *grading.Coordinator
	publisher events.Publisher
	explain   ExplanationSource
	bookmarks BookmarkSaver
	logger    utils.Logger
	now       func() time.Time

	mu           sync.Mutex
	state        State
	params       models.RouterParams
	questions    []models.Question
	answers      models.AnswerRecord
	grades       models.GradingResults
	source       loader.Source
	title        string
	limitMinutes int
	outcome      *grading.Outcome
	lastExplain  time.Time
}

// Snapshot is the controller's state flattened for transport.
type Snapshot struct {
	ID               string                `json:"id"`
	State            State                 `json:"state"`
	EventName        string                `json:"eventName"`
	Source           loader.Source         `json:"source"`
	Questions        []models.Question     `json:"questions"`
	Answers          models.AnswerRecord   `json:"answers"`
	Grades           models.GradingResults `json:"grades,omitempty"`
	TimeLeftSeconds  int                   `json:"timeLeftSeconds"`
	TimeLeftDisplay  string                `json:"timeLeftDisplay"`
	TimeLimitMinutes int                   `json:"timeLimitMinutes"`
	Paused           bool                  `json:"paused"`
	AssignmentID     string                `json:"assignmentId,omitempty"`
	AssignmentTitle  string                `json:"assignmentTitle,omitempty"`
	Outcome          *grading.Outcome      `json:"outcome,omitempty"`
}

func newController(
	id, userID, userName string,
	params models.RouterParams,
	st *store.Adapter,
	ld *loader.Loader,
	grader *grading.Coordinator,
	publisher events.Publisher,
	explain ExplanationSource,
	bookmarks BookmarkSaver,
	logger utils.Logger,
) *Controller {
	return &Controller{
		id:        id,
		userID:    userID,
		userName:  userName,
		params:    params,
		store:     st,
		loader:    ld,
		grader:    grader,
		publisher: publisher,
		explain:   explain,
		bookmarks: bookmarks,
		logger:    logger,
		now:       time.Now,
		state:     StateActive,
		answers:   make(models.AnswerRecord),
		grades:    make(models.GradingResults),
	}
}

// start resolves the question set and brings the countdown up. The server
// payload, when present, is only honored on this first load.
func (c *Controller) start(ctx context.Context, serverPayload []models.Question) error {
	res, err := c.loader.Load(ctx, loader.Request{
		Params:        c.params,
		ServerPayload: serverPayload,
		UserID:        c.userID,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.adoptResultLocked(res)

	limit := c.limitMinutes
	c.clock = c.newClock()
	timeLeft := c.clock.Initialize(ctx, c.id, c.params.EventOrDefault(), limit)

	if c.params.Preview {
		c.fillPreviewAnswersLocked()
	}

	submitted := c.state == StateSubmitted
	c.mu.Unlock()

	if submitted {
		return nil
	}

	c.publishEvent(ctx, events.NewSessionStartedEvent(events.SessionStartedEvent{
		SessionID:        c.id,
		EventName:        c.params.EventOrDefault(),
		QuestionSource:   string(res.Source),
		QuestionCount:    len(res.Questions),
		TimeLimitMinutes: limit,
		AssignmentID:     c.params.AssignmentID,
		UserID:           c.userID,
	}))
	c.logger.InfoContext(ctx, "session started",
		"session_id", c.id,
		"event", c.params.EventOrDefault(),
		"source", res.Source,
		"questions", len(res.Questions),
		"time_left", timeLeft)
	return nil
}

func (c *Controller) adoptResultLocked(res *loader.Result) {
	c.questions = res.Questions
	c.source = res.Source
	c.title = res.AssignmentTitle

	c.answers = res.Answers
	if c.answers == nil {
		c.answers = make(models.AnswerRecord)
	}
	c.grades = res.Grades
	if c.grades == nil {
		c.grades = make(models.GradingResults)
	}

	c.limitMinutes = c.params.TimeLimitMinutes()
	if res.TimeLimitMinutes > 0 {
		c.limitMinutes = res.TimeLimitMinutes
	}

	if res.Submitted || c.params.ViewResults {
		c.state = StateSubmitted
	} else {
		c.state = StateActive
	}
	c.outcome = nil
}

func (c *Controller) newClock() *clock.Clock {
	opts := []clock.Option{clock.WithNow(c.now)}
	if c.params.IsAssignment() {
		opts = append(opts, clock.WithAssignment(c.params.AssignmentID, c.userID))
	}
	return clock.New(c.store, c.logger, opts...)
}

// fillPreviewAnswersLocked stamps every question with its correct answer
// and marks the session submitted, so an instructor pages through the set
// exactly as a student would see it graded.
func (c *Controller) fillPreviewAnswersLocked() {
	c.state = StateSubmitted
	for i := range c.questions {
		q := c.questions[i]
		if !q.HasAnswerKey() {
			continue
		}
		if q.IsMultipleChoice() {
			c.answers[i] = q.CorrectOptionTexts()
			c.grades[i] = grading.ScoreMultipleChoice(q, c.answers[i])
		} else if accepted := q.AcceptedResponses(); len(accepted) > 0 {
			c.answers[i] = []string{accepted[0]}
			c.grades[i] = grading.FreeResponseMax
		}
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Snapshot captures the current state for transport.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ID:               c.id,
		State:            c.state,
		EventName:        c.params.EventOrDefault(),
		Source:           c.source,
		Questions:        c.questions,
		Answers:          c.answers,
		TimeLimitMinutes: c.limitMinutes,
		AssignmentID:     c.params.AssignmentID,
		AssignmentTitle:  c.title,
		Outcome:          c.outcome,
	}
	if c.clock != nil {
		snap.TimeLeftSeconds = c.clock.TimeLeft()
		snap.Paused = c.clock.IsPaused()
	}
	snap.TimeLeftDisplay = clock.FormatSeconds(snap.TimeLeftSeconds)
	if c.state == StateSubmitted || c.params.Preview {
		snap.Grades = c.grades
	}
	return snap
}

// Tick advances the countdown, emitting warning and expiry events for any
// thresholds the elapsed wall time crossed. Expiry submits the session with
// whatever answers are in place.
func (c *Controller) Tick(ctx context.Context) clock.TickResult {
	c.mu.Lock()
	if c.state != StateActive {
		res := clock.TickResult{Running: false}
		if c.clock != nil {
			res.TimeLeft = c.clock.TimeLeft()
		}
		c.mu.Unlock()
		return res
	}
	// Reset swaps the clock under the lock, so grab it before releasing.
	ck := c.clock
	c.mu.Unlock()

	res := ck.Tick(ctx)

	for _, threshold := range res.Warnings {
		c.publishEvent(ctx, events.NewTimeWarningEvent(events.TimeWarningEvent{
			SessionID:        c.id,
			EventName:        c.params.EventOrDefault(),
			SecondsRemaining: threshold,
		}))
	}

	if res.Expired {
		c.publishEvent(ctx, events.NewClockExpiredEvent(events.ClockExpiredEvent{
			SessionID: c.id,
			EventName: c.params.EventOrDefault(),
		}))
		if _, err := c.submit(ctx, true); err != nil {
			c.logger.ErrorContext(ctx, "auto-submit after expiry failed",
				"session_id", c.id, "error", err)
		}
	}
	return res
}

// SetAnswer records the student's selection for one question. Multiple
// choice answers are graded immediately; free responses wait for submit.
func (c *Controller) SetAnswer(ctx context.Context, index int, selected []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= len(c.questions) {
		return ErrIndexOutOfRange
	}

	c.answers[index] = selected
	q := c.questions[index]
	if q.IsMultipleChoice() && q.HasAnswerKey() {
		c.grades[index] = grading.ScoreMultipleChoice(q, selected)
	}

	c.persistProgressLocked(ctx)
	c.clock.Touch(ctx)
	return nil
}

// ToggleOption flips one option in the student's selection. Multi-select
// questions add or remove the option from the set; everything else replaces
// the selection outright.
func (c *Controller) ToggleOption(ctx context.Context, index int, option string) error {
	c.mu.Lock()

	if c.state != StateActive {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}

	q := c.questions[index]
	selected := c.answers[index]
	if q.IsMultiSelect() {
		selected = toggle(selected, option)
	} else {
		selected = []string{option}
	}
	c.mu.Unlock()

	return c.SetAnswer(ctx, index, selected)
}

func toggle(selected []string, option string) []string {
	out := make([]string, 0, len(selected)+1)
	removed := false
	for _, s := range selected {
		if s == option {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if !removed {
		out = append(out, option)
	}
	return out
}

// Pause stops the countdown. Paused wall time is not charged.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ErrAlreadySubmitted
	}
	c.clock.Pause(ctx)
	return nil
}

// Resume restarts a paused countdown.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ErrAlreadySubmitted
	}
	c.clock.Resume(ctx)
	return nil
}

// Submit finalizes the session. Calling it on an already submitted session
// returns the stored outcome rather than regrading.
func (c *Controller) Submit(ctx context.Context, expired bool) (*grading.Outcome, error) {
	return c.submit(ctx, expired)
}

func (c *Controller) submit(ctx context.Context, expired bool) (*grading.Outcome, error) {
	c.mu.Lock()
	if c.params.Preview {
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if c.state == StateSubmitted && c.outcome != nil {
		out := c.outcome
		c.mu.Unlock()
		return out, nil
	}
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, grading.ErrSubmitInProgress
	}
	c.state = StateSubmitting

	in := grading.SubmitInput{
		SessionID:        c.id,
		Params:           c.params,
		Questions:        c.questions,
		Answers:          c.answers,
		Grades:           c.grades,
		UserID:           c.userID,
		UserName:         c.userName,
		TimeLimitMinutes: c.limitMinutes,
		TimeLeftSeconds:  c.clock.TimeLeft(),
		Expired:          expired,
	}
	ck := c.clock
	c.mu.Unlock()

	ck.MarkSubmitted(ctx)
	out, err := c.grader.Submit(ctx, in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateActive
		return nil, err
	}
	c.state = StateSubmitted
	c.outcome = out
	c.grades = out.Grades
	return out, nil
}

// Reset discards all session state and loads a fresh question set.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Remove(ctx, store.SessionKeys()...)
	if c.params.IsAssignment() {
		c.store.Remove(ctx, store.AssignmentKeys(c.params.AssignmentID)...)
	}

	res, err := c.loader.Load(ctx, loader.Request{
		Params:     c.params,
		UserID:     c.userID,
		ForceFresh: true,
	})
	if err != nil {
		return err
	}

	c.adoptResultLocked(res)
	c.clock = c.newClock()
	c.clock.Initialize(ctx, c.id, c.params.EventOrDefault(), c.limitMinutes)

	c.publishEvent(ctx, events.NewSessionResetEvent(events.SessionResetEvent{
		SessionID: c.id,
		EventName: c.params.EventOrDefault(),
	}))
	c.logger.InfoContext(ctx, "session reset", "session_id", c.id)
	return nil
}

// Explain fetches an explanation for one question and the student's answer.
func (c *Controller) Explain(ctx context.Context, index int) (string, error) {
	c.mu.Lock()
	if c.explain == nil {
		c.mu.Unlock()
		return "", ErrExplainUnavailable
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return "", ErrIndexOutOfRange
	}
	now := c.now()
	if now.Sub(c.lastExplain) < explainCooldown {
		c.mu.Unlock()
		return "", ErrExplainRateLimited
	}
	c.lastExplain = now
	q := c.questions[index]
	answer := c.answers[index]
	c.mu.Unlock()

	return c.explain.Explain(ctx, q, answer)
}

// ToggleBookmark saves or removes a bookmark for one question.
func (c *Controller) ToggleBookmark(ctx context.Context, index int, bookmarked bool) error {
	c.mu.Lock()
	if c.bookmarks == nil {
		c.mu.Unlock()
		return ErrBookmarksUnavailable
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	q := c.questions[index]
	event := c.params.EventOrDefault()
	c.mu.Unlock()

	return c.bookmarks.SaveBookmark(ctx, c.userID, event, q, bookmarked)
}

// RemoveQuestion drops one question from the live set, shifting answers and
// grades for everything after it down one slot.
func (c *Controller) RemoveQuestion(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= len(c.questions) {
		return ErrIndexOutOfRange
	}

	c.questions = append(c.questions[:index], c.questions[index+1:]...)
	c.answers = shiftDown(c.answers, index)
	c.grades = shiftDown(c.grades, index)

	questionsKey, _, _ := c.storageKeys()
	c.store.SetJSON(ctx, questionsKey, c.questions)
	c.persistProgressLocked(ctx)
	c.clock.Touch(ctx)
	return nil
}

// ReplaceQuestion swaps a reported question for a fresh one from the bank
// and clears its answer and grade. When the bank has nothing new to offer
// the question is removed instead.
func (c *Controller) ReplaceQuestion(ctx context.Context, index int) error {
	c.mu.Lock()

	if c.state != StateActive {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	params := c.params
	current := make([]models.Question, len(c.questions))
	copy(current, c.questions)
	c.mu.Unlock()

	replacement, err := c.loader.FetchReplacement(ctx, params, current)
	if err != nil {
		c.logger.WarnContext(ctx, "no replacement question available, removing instead",
			"session_id", c.id, "index", index, "error", err)
		return c.RemoveQuestion(ctx, index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= len(c.questions) {
		return ErrIndexOutOfRange
	}
	c.questions[index] = *replacement
	delete(c.answers, index)
	delete(c.grades, index)

	questionsKey, _, _ := c.storageKeys()
	c.store.SetJSON(ctx, questionsKey, c.questions)
	c.persistProgressLocked(ctx)
	c.clock.Touch(ctx)
	return nil
}

func shiftDown[V any](m map[int]V, removed int) map[int]V {
	out := make(map[int]V, len(m))
	for i, v := range m {
		switch {
		case i < removed:
			out[i] = v
		case i > removed:
			out[i-1] = v
		}
	}
	return out
}

func (c *Controller) storageKeys() (questions, answers, grading string) {
	if c.params.IsAssignment() {
		id := c.params.AssignmentID
		return store.AssignmentQuestionsKey(id), store.AssignmentAnswersKey(id), store.AssignmentGradingKey(id)
	}
	return store.KeyQuestions, store.KeyAnswers, store.KeyGrading
}

func (c *Controller) persistProgressLocked(ctx context.Context) {
	_, answersKey, gradingKey := c.storageKeys()
	c.store.SetJSON(ctx, answersKey, c.answers)
	c.store.SetJSON(ctx, gradingKey, c.grades)
}

func (c *Controller) publishEvent(ctx context.Context, event *events.SessionEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishSessionEvent(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to publish session event",
			"event_type", event.Type, "session_id", c.id, "error", err)
	}
}
