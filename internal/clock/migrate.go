package clock

import (
	"context"
	"strconv"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/store"
)

// migrateLegacy rebuilds a session record from the flat countdown keys that
// predate the session envelope. The legacy keys are consumed either way so
// migration runs at most once per store.
func (c *Clock) migrateLegacy(ctx context.Context, eventName string, limitMinutes int) *models.SessionRecord {
	raw, ok := c.store.GetString(ctx, store.LegacyKeyTimeLeft)
	if !ok {
		raw, ok = c.store.GetString(ctx, store.LegacyKeyCodebustersTimeLeft)
	}
	defer c.removeLegacyKeys(ctx)
	if !ok {
		return nil
	}

	timeLeft, err := strconv.Atoi(raw)
	if err != nil || timeLeft <= 0 {
		return nil
	}
	if max := limitMinutes * 60; timeLeft > max {
		timeLeft = max
	}

	nowMs := c.now().UnixMilli()
	state := models.TimeState{
		TimeLeft:           timeLeft,
		IsTimeSynchronized: true,
		SyncTimestamp:      nowMs,
		OriginalTimeAtSync: timeLeft,
		TestStartTime:      nowMs,
	}

	// Honor the old sync anchor when the flags are intact, so time keeps
	// draining across the migration itself.
	if flag, _ := c.store.GetString(ctx, store.LegacyKeySynchronized); flag == "true" {
		if origRaw, ok := c.store.GetString(ctx, store.LegacyKeyOriginalSyncTime); ok {
			if tsRaw, ok := c.store.GetString(ctx, store.LegacyKeySyncTimestamp); ok {
				orig, errOrig := strconv.Atoi(origRaw)
				ts, errTs := strconv.ParseInt(tsRaw, 10, 64)
				if errOrig == nil && errTs == nil && ts > 0 {
					state.OriginalTimeAtSync = orig
					state.SyncTimestamp = ts
				}
			}
		}
	}

	c.logger.Info("migrated legacy countdown state", "event", eventName, "time_left", timeLeft)
	return &models.SessionRecord{
		TestID:       "legacy",
		EventName:    eventName,
		TimeLimit:    limitMinutes,
		TimeState:    state,
		LastActivity: nowMs,
	}
}

func (c *Clock) removeLegacyKeys(ctx context.Context) {
	c.store.Remove(ctx,
		store.LegacyKeyTimeLeft,
		store.LegacyKeyCodebustersTimeLeft,
		store.LegacyKeySynchronized,
		store.LegacyKeyOriginalSyncTime,
		store.LegacyKeySyncTimestamp,
	)
}
