package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scio-practice/session-service/internal/events"
	"github.com/scio-practice/session-service/internal/grading"
	"github.com/scio-practice/session-service/internal/loader"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
	"github.com/scio-practice/session-service/internal/validator"
)

// StoreFactory builds the per-user store adapter. Each user gets their own
// namespace so cached sessions never bleed across accounts.
type StoreFactory func(userID string) *store.Adapter

// Deps is everything a Manager needs to assemble sessions. Optional
// backends may be nil; the features they back degrade gracefully.
type Deps struct {
	Stores      StoreFactory
	Questions   loader.QuestionSource
	Assignments loader.AssignmentSource
	Bookmarks   loader.BookmarkSource

	Grader    grading.RemoteGrader
	Metrics   grading.MetricsSink
	Submitter grading.ResultSubmitter

	Explain       ExplanationSource
	BookmarkSaver BookmarkSaver

	Validator *validator.Validator
	Publisher events.Publisher
	Logger    utils.Logger
}

// Manager creates and tracks live session controllers.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Controller
}

type ManagerOption func(*Manager)

// WithClock replaces the time source used by new sessions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSession validates the parameters, resolves the question set, and
// returns a running controller registered under a fresh session ID.
func (m *Manager) StartSession(
	ctx context.Context,
	userID, userName string,
	params models.RouterParams,
	serverPayload []models.Question,
) (*Controller, error) {
	if err := m.deps.Validator.ValidateParams(params); err != nil {
		return nil, err
	}

	st := m.deps.Stores(userID)
	ld := loader.New(st, m.deps.Questions, m.deps.Assignments, m.deps.Bookmarks, m.deps.Validator, m.deps.Logger)
	grader := grading.NewCoordinator(
		st, m.deps.Grader, m.deps.Metrics, m.deps.Submitter, m.deps.Publisher, m.deps.Logger,
		grading.WithNow(m.now),
	)

	ctrl := newController(
		uuid.NewString(), userID, userName, params,
		st, ld, grader, m.deps.Publisher, m.deps.Explain, m.deps.BookmarkSaver, m.deps.Logger,
	)
	ctrl.now = m.now

	if err := ctrl.start(ctx, serverPayload); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[ctrl.ID()] = ctrl
	m.mu.Unlock()
	return ctrl, nil
}

// Get looks up a live session by ID.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// Remove drops a session from the registry. Persisted state stays in the
// store so the session can be resumed by a later StartSession.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count reports how many sessions are live.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
