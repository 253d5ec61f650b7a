package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/utils"
)

var ErrRecordNotFound = errors.New("record not found")

// StringStore is the key-value side of session persistence. It degrades
// silently: writes that fail are dropped (implementations log them), and a
// failed or missing read reports absent. Callers must treat every value as
// possibly gone.
type StringStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
}

// RecordStore is the structured side: authoritative assignment countdowns
// and durable result snapshots.
type RecordStore interface {
	SaveTimeRecord(ctx context.Context, rec *models.AssignmentTimeRecord) error
	LoadTimeRecord(ctx context.Context, assignmentID, userID string) (*models.AssignmentTimeRecord, error)
	SaveSnapshot(ctx context.Context, snap *models.ResultSnapshot) error
	LoadSnapshot(ctx context.Context, assignmentID, userID string) (*models.ResultSnapshot, error)
}

// Adapter wraps both stores behind JSON helpers so the rest of the engine
// never touches raw serialization.
type Adapter struct {
	strings StringStore
	records RecordStore
	logger  utils.Logger
}

func NewAdapter(strings StringStore, records RecordStore, logger utils.Logger) *Adapter {
	if records == nil {
		records = noopRecords{}
	}
	return &Adapter{strings: strings, records: records, logger: logger}
}

func (a *Adapter) GetString(ctx context.Context, key string) (string, bool) {
	return a.strings.Get(ctx, key)
}

func (a *Adapter) SetString(ctx context.Context, key, value string) {
	a.strings.Set(ctx, key, value)
}

func (a *Adapter) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		a.strings.Remove(ctx, key)
	}
}

// GetJSON decodes the value under key into dest. A missing key or a value
// that no longer parses both report false; the corrupt value is removed so
// the caller falls through to the next source instead of looping on it.
func (a *Adapter) GetJSON(ctx context.Context, key string, dest any) bool {
	raw, ok := a.strings.Get(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		a.logger.Warn("dropping unreadable stored value", "key", key, "error", err)
		a.strings.Remove(ctx, key)
		return false
	}
	return true
}

func (a *Adapter) SetJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("failed to encode value for storage", "key", key, "error", err)
		return
	}
	a.strings.Set(ctx, key, string(raw))
}

func (a *Adapter) Records() RecordStore {
	return a.records
}

// noopRecords stands in when no structured store is configured.
type noopRecords struct{}

func (noopRecords) SaveTimeRecord(context.Context, *models.AssignmentTimeRecord) error { return nil }
func (noopRecords) LoadTimeRecord(context.Context, string, string) (*models.AssignmentTimeRecord, error) {
	return nil, ErrRecordNotFound
}
func (noopRecords) SaveSnapshot(context.Context, *models.ResultSnapshot) error { return nil }
func (noopRecords) LoadSnapshot(context.Context, string, string) (*models.ResultSnapshot, error) {
	return nil, ErrRecordNotFound
}
