package loader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
	"github.com/scio-practice/session-service/internal/validator"
)

// Source names where a question set came from.
type Source string

const (
	SourceViewResults     Source = "view-results"
	SourceAssignmentCache Source = "assignment-cache"
	SourceAssignmentAPI   Source = "assignment-api"
	SourceLocalCache      Source = "local-cache"
	SourceServerPayload   Source = "server-payload"
	SourceBookmarks       Source = "bookmarks"
	SourceQuestionBank    Source = "question-bank"
)

var (
	ErrNoQuestions      = errors.New("no questions available for the requested parameters")
	ErrNoBookmarks      = errors.New("no bookmarked questions for this event")
	ErrInvalidQuestions = errors.New("could not load questions")
)

// AssignmentSource fetches assignments from the assignment backend.
type AssignmentSource interface {
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
}

// BookmarkSource lists a user's saved questions.
type BookmarkSource interface {
	ListBookmarks(ctx context.Context, userID string) ([]models.Bookmark, error)
}

// Request is one load attempt. ServerPayload is an optional pre-rendered
// question set handed over by the page; it is honored at most once per
// loader so a reload cannot resurrect a finished session from it.
type Request struct {
	Params        models.RouterParams
	ServerPayload []models.Question
	UserID        string
	// ForceFresh skips every cache and goes straight to the question bank.
	ForceFresh bool
}

// Result is a resolved question set plus whatever session state the source
// carried with it.
type Result struct {
	Questions        []models.Question
	Source           Source
	Answers          models.AnswerRecord
	Grades           models.GradingResults
	Submitted        bool
	TimeLimitMinutes int
	AssignmentTitle  string
}

// Loader resolves a question set by walking a fixed source order: stored
// results for review, the assignment flow, a resumable local cache, the
// server payload, bookmarks, and finally a fresh fetch. Each source either
// produces the whole set or defers to the next.
type Loader struct {
	store       *store.Adapter
	questions   QuestionSource
	assignments AssignmentSource
	bookmarks   BookmarkSource
	validate    *validator.Validator
	logger      utils.Logger
	rng         *rand.Rand

	mu              sync.Mutex
	payloadConsumed bool
}

type Option func(*Loader)

// WithSeed fixes the shuffle order.
func WithSeed(seed int64) Option {
	return func(l *Loader) { l.rng = rand.New(rand.NewSource(seed)) }
}

func New(
	st *store.Adapter,
	questions QuestionSource,
	assignments AssignmentSource,
	bookmarks BookmarkSource,
	v *validator.Validator,
	logger utils.Logger,
	opts ...Option,
) *Loader {
	l := &Loader{
		store:       st,
		questions:   questions,
		assignments: assignments,
		bookmarks:   bookmarks,
		validate:    v,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the question set for one session start.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	params := req.Params

	// Switching assignments invalidates everything the previous one cached
	// before any source gets a chance to serve it.
	previousAssignment := l.reconcileAssignmentPointer(ctx, params)

	if params.ViewResults {
		// A missing or invalid snapshot behaves like a fresh start instead
		// of dead-ending the review request.
		if res := l.loadStoredResults(ctx, params); res != nil {
			return res, nil
		}
	}

	if !req.ForceFresh {
		if params.IsAssignment() {
			return l.loadAssignment(ctx, req, previousAssignment)
		}
		if res := l.loadLocalCache(ctx, params); res != nil {
			return res, nil
		}
		if res := l.consumeServerPayload(ctx, req); res != nil {
			return res, nil
		}
		if params.FromBookmarks {
			return l.loadBookmarks(ctx, req)
		}
	}

	return l.loadFresh(ctx, params)
}

// reconcileAssignmentPointer records which assignment owns the store and
// purges the leftovers of the previous one on a switch. Returns the
// previous pointer value.
func (l *Loader) reconcileAssignmentPointer(ctx context.Context, params models.RouterParams) string {
	stored, _ := l.store.GetString(ctx, store.KeyAssignmentID)
	if params.AssignmentID == "" {
		return stored
	}
	if stored != "" && stored != params.AssignmentID {
		l.logger.Info("assignment changed, purging previous assignment state",
			"previous", stored, "current", params.AssignmentID)
		l.store.Remove(ctx, store.AssignmentKeys(stored)...)
		l.store.Remove(ctx, store.SessionKeys()...)
	}
	l.store.SetString(ctx, store.KeyAssignmentID, params.AssignmentID)
	return stored
}

// loadStoredResults replays a finished session for review. Nothing is
// fetched and nothing is regraded. An ungradeable snapshot is purged so
// the next source starts clean; returns nil to defer.
func (l *Loader) loadStoredResults(ctx context.Context, params models.RouterParams) *Result {
	questionsKey, answersKey, gradingKey := l.keysFor(params)

	var questions []models.Question
	if !l.store.GetJSON(ctx, questionsKey, &questions) || len(questions) == 0 {
		return nil
	}
	if err := l.validate.ValidateQuestions(questions); err != nil {
		l.logger.Warn("stored results failed validation, purging snapshot", "error", err)
		l.purgeFor(ctx, params)
		return nil
	}
	var grades models.GradingResults
	if !l.store.GetJSON(ctx, gradingKey, &grades) {
		return nil
	}
	var answers models.AnswerRecord
	l.store.GetJSON(ctx, answersKey, &answers)

	return &Result{
		Questions:        questions,
		Source:           SourceViewResults,
		Answers:          answers,
		Grades:           grades,
		Submitted:        true,
		TimeLimitMinutes: params.TimeLimitMinutes(),
	}
}

// purgeFor removes whichever key set the session caches under.
func (l *Loader) purgeFor(ctx context.Context, params models.RouterParams) {
	if params.IsAssignment() {
		l.store.Remove(ctx, store.AssignmentKeys(params.AssignmentID)...)
		return
	}
	l.store.Remove(ctx, store.SessionKeys()...)
}

// loadAssignment resolves an assignment session: the pre-scoping generic
// cache first (only when this assignment already owned the store), then the
// scoped cache, then the assignment backend.
func (l *Loader) loadAssignment(ctx context.Context, req Request, previousAssignment string) (*Result, error) {
	params := req.Params
	id := params.AssignmentID

	// Sessions started before scoped keys existed cached under the generic
	// key with only the pointer marking ownership.
	if previousAssignment == id {
		var questions []models.Question
		if l.store.GetJSON(ctx, store.KeyQuestions, &questions) && len(questions) > 0 {
			if err := l.validate.ValidateQuestions(questions); err != nil {
				l.logger.Warn("cached assignment questions failed validation, discarding",
					"assignment_id", id, "error", err)
				l.store.Remove(ctx, store.SessionKeys()...)
			} else {
				res := &Result{
					Questions:        questions,
					Source:           SourceAssignmentCache,
					TimeLimitMinutes: params.TimeLimitMinutes(),
				}
				l.store.GetJSON(ctx, store.KeyAnswers, &res.Answers)
				l.store.GetJSON(ctx, store.KeyGrading, &res.Grades)
				if submitted, _ := l.store.GetString(ctx, store.KeySubmitted); submitted == "true" {
					res.Submitted = true
				}
				return res, nil
			}
		}
	}

	var questions []models.Question
	if l.store.GetJSON(ctx, store.AssignmentQuestionsKey(id), &questions) && len(questions) > 0 {
		if err := l.validate.ValidateQuestions(questions); err != nil {
			l.logger.Warn("scoped assignment cache failed validation, discarding",
				"assignment_id", id, "error", err)
			l.store.Remove(ctx, store.AssignmentKeys(id)...)
		} else {
			res := &Result{
				Questions:        questions,
				Source:           SourceAssignmentCache,
				TimeLimitMinutes: params.TimeLimitMinutes(),
			}
			l.store.GetJSON(ctx, store.AssignmentAnswersKey(id), &res.Answers)
			l.store.GetJSON(ctx, store.AssignmentGradingKey(id), &res.Grades)
			var state models.AssignmentSessionState
			if l.store.GetJSON(ctx, store.AssignmentSessionKey(id), &state) {
				res.Submitted = state.Submitted
			}
			return res, nil
		}
	}

	// A stale submitted flag or answer set from an earlier generic session
	// must not leak into the assignment about to start.
	l.store.Remove(ctx, store.SessionKeys()...)

	assignment, err := l.assignments.GetAssignment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignment %s: %w", id, err)
	}
	normalized := NormalizeQuestions(assignment.Questions)
	if err := l.validate.ValidateQuestions(normalized); err != nil {
		return nil, fmt.Errorf("assignment %s has an invalid question set: %w", id, err)
	}

	limit := models.AssignmentTimeLimitMin
	if assignment.TimeLimitMinutes != nil && *assignment.TimeLimitMinutes > 0 {
		limit = *assignment.TimeLimitMinutes
	}

	l.store.SetJSON(ctx, store.AssignmentQuestionsKey(id), normalized)
	l.store.SetJSON(ctx, store.AssignmentSessionKey(id), models.AssignmentSessionState{
		EventName:        assignment.EventName,
		TimeLimitMinutes: limit,
		TimeLeftSeconds:  limit * 60,
	})
	l.persistParams(ctx, params)
	l.saveTimeRecord(ctx, id, req.UserID, limit)

	return &Result{
		Questions:        normalized,
		Source:           SourceAssignmentAPI,
		TimeLimitMinutes: limit,
		AssignmentTitle:  assignment.Title,
	}, nil
}

// saveTimeRecord seeds the structured-store countdown mirror so the record
// exists from the first load, not the first tick.
func (l *Loader) saveTimeRecord(ctx context.Context, id, userID string, limitMinutes int) {
	err := l.store.Records().SaveTimeRecord(ctx, &models.AssignmentTimeRecord{
		AssignmentID:     id,
		UserID:           userID,
		TimeLeftSeconds:  limitMinutes * 60,
		TimeLimitSeconds: limitMinutes * 60,
	})
	if err != nil {
		l.logger.Warn("failed to seed assignment time record", "assignment_id", id, "error", err)
	}
}

// loadLocalCache resumes an interrupted generic session when the cached
// parameters still describe the requested test. Returns nil to defer.
func (l *Loader) loadLocalCache(ctx context.Context, params models.RouterParams) *Result {
	var storedParams models.RouterParams
	if !l.store.GetJSON(ctx, store.KeyParams, &storedParams) {
		return nil
	}
	if storedParams.EventName != params.EventName {
		return nil
	}
	if submitted, _ := l.store.GetString(ctx, store.KeySubmitted); submitted == "true" {
		return nil
	}

	var questions []models.Question
	if !l.store.GetJSON(ctx, store.KeyQuestions, &questions) || len(questions) == 0 {
		return nil
	}
	if err := l.validate.ValidateQuestions(questions); err != nil {
		l.logger.Warn("cached questions failed validation, discarding session cache", "error", err)
		l.store.Remove(ctx, store.SessionKeys()...)
		return nil
	}

	res := &Result{
		Questions:        questions,
		Source:           SourceLocalCache,
		TimeLimitMinutes: params.TimeLimitMinutes(),
	}
	l.store.GetJSON(ctx, store.KeyAnswers, &res.Answers)
	l.store.GetJSON(ctx, store.KeyGrading, &res.Grades)
	return res
}

// consumeServerPayload uses the page-rendered question set, at most once.
func (l *Loader) consumeServerPayload(ctx context.Context, req Request) *Result {
	if len(req.ServerPayload) == 0 {
		return nil
	}
	l.mu.Lock()
	consumed := l.payloadConsumed
	l.payloadConsumed = true
	l.mu.Unlock()
	if consumed {
		return nil
	}

	questions := NormalizeQuestions(req.ServerPayload)
	if err := l.validate.ValidateQuestions(questions); err != nil {
		l.logger.Warn("server payload failed validation, falling through", "error", err)
		return nil
	}

	l.persistFreshSet(ctx, req.Params, questions, false)
	return &Result{
		Questions:        questions,
		Source:           SourceServerPayload,
		TimeLimitMinutes: req.Params.TimeLimitMinutes(),
	}
}

// loadBookmarks builds a session from the user's saved questions for this
// event. An empty result is an error: silently starting a random test when
// the user asked for their bookmarks would be worse.
func (l *Loader) loadBookmarks(ctx context.Context, req Request) (*Result, error) {
	bookmarks, err := l.bookmarks.ListBookmarks(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookmarks: %w", err)
	}

	var questions []models.Question
	for _, b := range bookmarks {
		if b.EventName == req.Params.EventName || b.Question.Event == req.Params.EventName {
			questions = append(questions, b.Question)
		}
	}
	if len(questions) == 0 {
		return nil, ErrNoBookmarks
	}

	questions = NormalizeQuestions(questions)
	if err := l.validate.ValidateQuestions(questions); err != nil {
		l.logger.Warn("bookmarked questions failed validation", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestions, err)
	}

	l.persistFreshSet(ctx, req.Params, questions, true)
	return &Result{
		Questions:        questions,
		Source:           SourceBookmarks,
		TimeLimitMinutes: req.Params.TimeLimitMinutes(),
	}, nil
}

// loadFresh fetches a new set from the question bank.
func (l *Loader) loadFresh(ctx context.Context, params models.RouterParams) (*Result, error) {
	questions, err := l.fetchForParams(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := l.validate.ValidateQuestions(questions); err != nil {
		// An ungradeable set never becomes a session; nothing is cached.
		l.logger.Warn("fetched question set failed validation", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestions, err)
	}

	l.persistFreshSet(ctx, params, questions, false)
	return &Result{
		Questions:        questions,
		Source:           SourceQuestionBank,
		TimeLimitMinutes: params.TimeLimitMinutes(),
	}, nil
}

// persistFreshSet writes a brand-new question set and clears any state a
// previous session left under the generic keys.
func (l *Loader) persistFreshSet(ctx context.Context, params models.RouterParams, questions []models.Question, fromBookmarks bool) {
	l.store.SetJSON(ctx, store.KeyQuestions, questions)
	l.persistParams(ctx, params)
	l.store.Remove(ctx, store.KeyAnswers, store.KeyGrading, store.KeySubmitted)
	if fromBookmarks {
		l.store.SetString(ctx, store.KeyFromBookmarks, "true")
	} else {
		l.store.Remove(ctx, store.KeyFromBookmarks)
	}
}

func (l *Loader) persistParams(ctx context.Context, params models.RouterParams) {
	l.store.SetJSON(ctx, store.KeyParams, params)
}

// keysFor picks scoped or generic storage keys for the session.
func (l *Loader) keysFor(params models.RouterParams) (questions, answers, grading string) {
	if params.IsAssignment() {
		id := params.AssignmentID
		return store.AssignmentQuestionsKey(id), store.AssignmentAnswersKey(id), store.AssignmentGradingKey(id)
	}
	return store.KeyQuestions, store.KeyAnswers, store.KeyGrading
}
