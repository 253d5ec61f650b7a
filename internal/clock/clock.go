package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
)

// Sessions untouched for this long are treated as abandoned and reset on
// the next initialize.
const StaleAfter = 30 * time.Minute

// Warning thresholds in seconds, fired at most once each per session.
var warningThresholds = []int{60, 30}

// Clock is the wall-clock-anchored countdown for one session. TimeLeft is
// never decremented by tick intervals; every tick recomputes it from the
// synchronization point, so a suspended caller that resumes ticking lands
// on the right value immediately.
type Clock struct {
	mu     sync.Mutex
	store  *store.Adapter
	logger utils.Logger
	now    func() time.Time

	rec         models.SessionRecord
	initialized bool
	warned      map[int]bool
	expired     bool

	// Assignment sessions mirror the countdown into the structured store.
	assignmentID string
	userID       string
}

// TickResult is what one tick observed.
type TickResult struct {
	TimeLeft int
	// Warnings lists thresholds crossed by this tick, highest first.
	Warnings []int
	Expired  bool
	Running  bool
}

type Option func(*Clock)

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithAssignment mirrors the countdown into the per-assignment record.
func WithAssignment(assignmentID, userID string) Option {
	return func(c *Clock) {
		c.assignmentID = assignmentID
		c.userID = userID
	}
}

func New(st *store.Adapter, logger utils.Logger, opts ...Option) *Clock {
	c := &Clock{
		store:  st,
		logger: logger,
		now:    time.Now,
		warned: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize adopts a persisted countdown when one exists for the same
// event and limit, otherwise starts fresh. A mismatched or stale record is
// discarded along with the cached questions, answers, and grades that
// belonged to it. Returns the effective seconds remaining.
func (c *Clock) Initialize(ctx context.Context, testID, eventName string, limitMinutes int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := c.now().UnixMilli()
	limitSeconds := limitMinutes * 60

	var rec models.SessionRecord
	found := c.store.GetJSON(ctx, store.KeySession, &rec)
	if !found {
		if migrated := c.migrateLegacy(ctx, eventName, limitMinutes); migrated != nil {
			rec, found = *migrated, true
		}
	}

	if found {
		switch {
		case rec.EventName != eventName || rec.TimeLimit != limitMinutes:
			c.logger.Info("stored session does not match requested test, resetting",
				"stored_event", rec.EventName, "event", eventName,
				"stored_limit", rec.TimeLimit, "limit", limitMinutes)
			c.resetStored(ctx)
			found = false
		case !rec.IsSubmitted && nowMs-rec.LastActivity > StaleAfter.Milliseconds():
			c.logger.Info("stored session is stale, resetting",
				"event", eventName, "idle_ms", nowMs-rec.LastActivity)
			c.resetStored(ctx)
			found = false
		}
	}

	if found {
		c.rec = rec
		if !rec.IsSubmitted {
			c.reconcileLocked(nowMs)
		}
	} else {
		c.rec = models.SessionRecord{
			TestID:    testID,
			EventName: eventName,
			TimeLimit: limitMinutes,
			TimeState: models.TimeState{
				TimeLeft:           limitSeconds,
				IsTimeSynchronized: true,
				SyncTimestamp:      nowMs,
				OriginalTimeAtSync: limitSeconds,
				TestStartTime:      nowMs,
			},
		}
	}

	c.adoptAssignmentRecord(ctx)

	c.rec.LastActivity = nowMs
	c.initialized = true
	c.expired = c.rec.TimeState.TimeLeft <= 0 && !c.rec.IsSubmitted
	c.persistLocked(ctx)
	return c.rec.TimeState.TimeLeft
}

// adoptAssignmentRecord trusts the structured store over the string store
// when the assignment countdown there is further along.
func (c *Clock) adoptAssignmentRecord(ctx context.Context) {
	if c.assignmentID == "" || c.rec.IsSubmitted {
		return
	}
	rec, err := c.store.Records().LoadTimeRecord(ctx, c.assignmentID, c.userID)
	if err != nil {
		return
	}
	if rec.TimeLeftSeconds < c.rec.TimeState.TimeLeft {
		c.rec.TimeState.TimeLeft = rec.TimeLeftSeconds
		c.rec.TimeState.OriginalTimeAtSync = rec.TimeLeftSeconds
		c.rec.TimeState.SyncTimestamp = c.now().UnixMilli()
	}
}

// Tick recomputes the countdown and reports any thresholds crossed since
// the previous observation. Ticking a paused or submitted clock is a no-op.
func (c *Clock) Tick(ctx context.Context) TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.rec.IsSubmitted || c.rec.TimeState.IsPaused || c.expired {
		return TickResult{TimeLeft: c.rec.TimeState.TimeLeft}
	}

	nowMs := c.now().UnixMilli()
	prev := c.rec.TimeState.TimeLeft
	c.reconcileLocked(nowMs)
	left := c.rec.TimeState.TimeLeft

	res := TickResult{TimeLeft: left, Running: true}
	for _, threshold := range warningThresholds {
		if !c.warned[threshold] && prev > threshold && left <= threshold && left > 0 {
			c.warned[threshold] = true
			res.Warnings = append(res.Warnings, threshold)
		}
	}
	if left <= 0 {
		c.expired = true
		res.Expired = true
		res.Running = false
	}

	c.rec.LastActivity = nowMs
	c.persistLocked(ctx)
	if res.Expired || left%30 == 0 {
		c.mirrorAssignmentLocked(ctx)
	}
	return res
}

// reconcileLocked recomputes TimeLeft from the synchronization anchor.
func (c *Clock) reconcileLocked(nowMs int64) {
	ts := &c.rec.TimeState
	if ts.IsPaused || !ts.IsTimeSynchronized {
		return
	}
	elapsed := int((nowMs - ts.SyncTimestamp) / 1000)
	left := ts.OriginalTimeAtSync - elapsed
	if left < 0 {
		left = 0
	}
	ts.TimeLeft = left
}

// Pause freezes the countdown.
func (c *Clock) Pause(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || c.rec.IsSubmitted || c.rec.TimeState.IsPaused {
		return
	}
	nowMs := c.now().UnixMilli()
	c.reconcileLocked(nowMs)
	c.rec.TimeState.IsPaused = true
	c.rec.TimeState.LastPauseTime = nowMs
	c.rec.LastActivity = nowMs
	c.persistLocked(ctx)
	c.mirrorAssignmentLocked(ctx)
}

// Resume unfreezes the countdown and re-anchors it so paused wall time is
// not charged against the student.
func (c *Clock) Resume(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || !c.rec.TimeState.IsPaused {
		return
	}
	nowMs := c.now().UnixMilli()
	ts := &c.rec.TimeState
	ts.TotalPausedTime += nowMs - ts.LastPauseTime
	ts.LastPauseTime = 0
	ts.IsPaused = false
	ts.SyncTimestamp = nowMs
	ts.OriginalTimeAtSync = ts.TimeLeft
	c.rec.LastActivity = nowMs
	c.persistLocked(ctx)
}

// Touch refreshes the activity timestamp without advancing the countdown.
func (c *Clock) Touch(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	c.rec.LastActivity = c.now().UnixMilli()
	c.persistLocked(ctx)
}

// MarkSubmitted freezes the clock permanently.
func (c *Clock) MarkSubmitted(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || c.rec.IsSubmitted {
		return
	}
	c.reconcileLocked(c.now().UnixMilli())
	c.rec.IsSubmitted = true
	c.persistLocked(ctx)
	c.mirrorAssignmentLocked(ctx)
}

// FormatSeconds renders a countdown as M:SS for display, so 125 seconds
// reads "2:05".
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func (c *Clock) TimeLeft() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.TimeState.TimeLeft
}

// ElapsedSeconds reports time spent against the limit.
func (c *Clock) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.rec.TimeLimit*60 - c.rec.TimeState.TimeLeft
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (c *Clock) IsSubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.IsSubmitted
}

func (c *Clock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.TimeState.IsPaused
}

// Record returns a copy of the persisted state.
func (c *Clock) Record() models.SessionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

func (c *Clock) persistLocked(ctx context.Context) {
	c.store.SetJSON(ctx, store.KeySession, c.rec)
}

func (c *Clock) mirrorAssignmentLocked(ctx context.Context) {
	if c.assignmentID == "" {
		return
	}
	err := c.store.Records().SaveTimeRecord(ctx, &models.AssignmentTimeRecord{
		AssignmentID:     c.assignmentID,
		UserID:           c.userID,
		TimeLeftSeconds:  c.rec.TimeState.TimeLeft,
		TimeLimitSeconds: c.rec.TimeLimit * 60,
	})
	if err != nil {
		c.logger.Warn("failed to mirror assignment countdown", "assignment_id", c.assignmentID, "error", err)
	}

	// The scoped session record tracks the countdown too. Its submitted
	// flag belongs to the grading pipeline, so only the time moves here.
	var state models.AssignmentSessionState
	c.store.GetJSON(ctx, store.AssignmentSessionKey(c.assignmentID), &state)
	state.TimeLeftSeconds = c.rec.TimeState.TimeLeft
	c.store.SetJSON(ctx, store.AssignmentSessionKey(c.assignmentID), state)
}

// resetStored removes the session record and every cache that depended on
// it. A countdown reset with stale questions still cached would grade the
// wrong set.
func (c *Clock) resetStored(ctx context.Context) {
	c.store.Remove(ctx,
		store.KeySession,
		store.KeyQuestions,
		store.KeyAnswers,
		store.KeyGrading,
		store.KeySubmitted,
	)
}
