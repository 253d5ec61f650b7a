package clock

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
)

type fakeTime struct {
	current time.Time
}

func (f *fakeTime) now() time.Time {
	return f.current
}

func (f *fakeTime) advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func newTestClock(t *testing.T) (*Clock, *store.Adapter, *fakeTime) {
	t.Helper()
	logger := utils.NewDevelopmentLogger()
	adapter := store.NewAdapter(store.NewMemoryStore(), store.NewMemoryRecords(), logger)
	ft := &fakeTime{current: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return New(adapter, logger, WithNow(ft.now)), adapter, ft
}

func TestInitialize_Fresh(t *testing.T) {
	c, adapter, _ := newTestClock(t)

	left := c.Initialize(context.Background(), "t1", "Anatomy", 30)
	assert.Equal(t, 1800, left)

	var rec models.SessionRecord
	require.True(t, adapter.GetJSON(context.Background(), store.KeySession, &rec))
	assert.Equal(t, "Anatomy", rec.EventName)
	assert.Equal(t, 30, rec.TimeLimit)
	assert.True(t, rec.TimeState.IsTimeSynchronized)
}

func TestInitialize_ResumesMatchingSession(t *testing.T) {
	c, adapter, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)
	ft.advance(5 * time.Minute)
	c.Tick(ctx)

	// A second clock over the same store stands in for a reload.
	c2 := New(adapter, utils.NewDevelopmentLogger(), WithNow(ft.now))
	ft.advance(2 * time.Minute)
	left := c2.Initialize(ctx, "t2", "Anatomy", 30)

	// 7 minutes of wall time must be charged even though nothing ticked
	// during the last two.
	assert.Equal(t, 1800-7*60, left)
}

func TestInitialize_MismatchResetsAndPurges(t *testing.T) {
	c, adapter, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)
	adapter.SetString(ctx, store.KeyQuestions, `[]`)
	adapter.SetString(ctx, store.KeyAnswers, `{}`)
	adapter.SetString(ctx, store.KeyGrading, `{}`)

	c2 := New(adapter, utils.NewDevelopmentLogger(), WithNow(ft.now))
	left := c2.Initialize(ctx, "t2", "Fossils", 45)
	assert.Equal(t, 45*60, left)

	_, ok := adapter.GetString(ctx, store.KeyQuestions)
	assert.False(t, ok, "dependent question cache must be purged on reset")
	_, ok = adapter.GetString(ctx, store.KeyAnswers)
	assert.False(t, ok)
	_, ok = adapter.GetString(ctx, store.KeyGrading)
	assert.False(t, ok)
}

func TestInitialize_StaleSessionResets(t *testing.T) {
	c, adapter, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)
	ft.advance(31 * time.Minute)

	c2 := New(adapter, utils.NewDevelopmentLogger(), WithNow(ft.now))
	left := c2.Initialize(ctx, "t2", "Anatomy", 30)
	assert.Equal(t, 1800, left, "stale session must restart at the full limit")
}

func TestTick_CatchesUpAfterSuspension(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)

	// No ticks arrive for 10 minutes, then one does.
	ft.advance(10 * time.Minute)
	res := c.Tick(ctx)
	assert.Equal(t, 1800-600, res.TimeLeft)
	assert.True(t, res.Running)
}

func TestTick_WarningsFireOnceEach(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 2) // 120 seconds

	ft.advance(61 * time.Second)
	res := c.Tick(ctx)
	assert.Equal(t, []int{60}, res.Warnings)

	ft.advance(1 * time.Second)
	res = c.Tick(ctx)
	assert.Empty(t, res.Warnings, "the 60s warning must not repeat")

	ft.advance(29 * time.Second)
	res = c.Tick(ctx)
	assert.Equal(t, []int{30}, res.Warnings)

	ft.advance(1 * time.Second)
	res = c.Tick(ctx)
	assert.Empty(t, res.Warnings)
}

func TestTick_SuspensionAcrossBothThresholds(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 2)
	ft.advance(100 * time.Second)
	res := c.Tick(ctx)
	assert.Equal(t, []int{60, 30}, res.Warnings)
}

func TestTick_ExpiresExactlyOnce(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 1)
	ft.advance(2 * time.Minute)

	res := c.Tick(ctx)
	assert.True(t, res.Expired)
	assert.Equal(t, 0, res.TimeLeft)

	ft.advance(time.Second)
	res = c.Tick(ctx)
	assert.False(t, res.Expired, "expiry must only be reported once")
	assert.Equal(t, 0, res.TimeLeft)
}

func TestPauseResume_DoesNotChargePausedTime(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)
	ft.advance(1 * time.Minute)
	c.Tick(ctx)

	c.Pause(ctx)
	ft.advance(10 * time.Minute)
	res := c.Tick(ctx)
	assert.Equal(t, 1800-60, res.TimeLeft, "paused clock must not drain")
	assert.False(t, res.Running)

	c.Resume(ctx)
	ft.advance(1 * time.Minute)
	res = c.Tick(ctx)
	assert.Equal(t, 1800-120, res.TimeLeft)
}

func TestMarkSubmitted_FreezesClock(t *testing.T) {
	c, _, ft := newTestClock(t)
	ctx := context.Background()

	c.Initialize(ctx, "t1", "Anatomy", 30)
	ft.advance(1 * time.Minute)
	c.MarkSubmitted(ctx)

	ft.advance(10 * time.Minute)
	res := c.Tick(ctx)
	assert.Equal(t, 1800-60, res.TimeLeft)
	assert.False(t, res.Running)
	assert.True(t, c.IsSubmitted())
}

func TestInitialize_MigratesLegacyKeys(t *testing.T) {
	c, adapter, _ := newTestClock(t)
	ctx := context.Background()

	adapter.SetString(ctx, store.LegacyKeyTimeLeft, strconv.Itoa(900))
	left := c.Initialize(ctx, "t1", "Anatomy", 30)
	assert.Equal(t, 900, left)

	_, ok := adapter.GetString(ctx, store.LegacyKeyTimeLeft)
	assert.False(t, ok, "legacy keys must be consumed by migration")
}

func TestInitialize_AdoptsAssignmentRecord(t *testing.T) {
	logger := utils.NewDevelopmentLogger()
	records := store.NewMemoryRecords()
	adapter := store.NewAdapter(store.NewMemoryStore(), records, logger)
	ft := &fakeTime{current: time.Now()}
	ctx := context.Background()

	require.NoError(t, records.SaveTimeRecord(ctx, &models.AssignmentTimeRecord{
		AssignmentID:     "a1",
		UserID:           "u1",
		TimeLeftSeconds:  300,
		TimeLimitSeconds: 3600,
	}))

	c := New(adapter, logger, WithNow(ft.now), WithAssignment("a1", "u1"))
	left := c.Initialize(ctx, "t1", "Anatomy", 60)
	assert.Equal(t, 300, left, "the structured store countdown wins when lower")
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "2:05", FormatSeconds(125))
	assert.Equal(t, "0:00", FormatSeconds(0))
	assert.Equal(t, "0:00", FormatSeconds(-7))
	assert.Equal(t, "30:00", FormatSeconds(1800))
	assert.Equal(t, "75:09", FormatSeconds(75*60+9))
}

func TestMirror_KeepsScopedSessionCountdownFresh(t *testing.T) {
	logger := utils.NewDevelopmentLogger()
	adapter := store.NewAdapter(store.NewMemoryStore(), store.NewMemoryRecords(), logger)
	ft := &fakeTime{current: time.Now()}
	ctx := context.Background()

	adapter.SetJSON(ctx, store.AssignmentSessionKey("a1"), models.AssignmentSessionState{
		TimeLeftSeconds: 3600, Submitted: false,
	})

	c := New(adapter, logger, WithNow(ft.now), WithAssignment("a1", "u1"))
	c.Initialize(ctx, "t1", "Anatomy", 60)
	ft.advance(90 * time.Second)
	c.Tick(ctx)
	c.MarkSubmitted(ctx)

	var state models.AssignmentSessionState
	require.True(t, adapter.GetJSON(ctx, store.AssignmentSessionKey("a1"), &state))
	assert.Equal(t, 3600-90, state.TimeLeftSeconds)
	assert.False(t, state.Submitted, "the clock must never flip the submitted flag")
}
