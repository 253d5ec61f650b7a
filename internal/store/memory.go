package store

import (
	"context"
	"sync"

	"github.com/scio-practice/session-service/internal/models"
)

// MemoryStore is an in-process StringStore for tests and for running
// without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	// FailWrites makes Set a no-op, mimicking a full or blocked backing
	// store in degradation tests.
	FailWrites bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *MemoryStore) Set(_ context.Context, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return
	}
	s.values[key] = value
}

func (s *MemoryStore) Remove(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// MemoryRecords is an in-process RecordStore.
type MemoryRecords struct {
	mu        sync.RWMutex
	times     map[string]models.AssignmentTimeRecord
	snapshots map[string]models.ResultSnapshot
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		times:     make(map[string]models.AssignmentTimeRecord),
		snapshots: make(map[string]models.ResultSnapshot),
	}
}

func recordKey(assignmentID, userID string) string {
	return assignmentID + "/" + userID
}

func (r *MemoryRecords) SaveTimeRecord(_ context.Context, rec *models.AssignmentTimeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times[recordKey(rec.AssignmentID, rec.UserID)] = *rec
	return nil
}

func (r *MemoryRecords) LoadTimeRecord(_ context.Context, assignmentID, userID string) (*models.AssignmentTimeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.times[recordKey(assignmentID, userID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (r *MemoryRecords) SaveSnapshot(_ context.Context, snap *models.ResultSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[recordKey(snap.AssignmentID, snap.UserID)] = *snap
	return nil
}

func (r *MemoryRecords) LoadSnapshot(_ context.Context, assignmentID, userID string) (*models.ResultSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[recordKey(assignmentID, userID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &snap, nil
}
