package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// MemoryStore keeps run records in process memory. History is lost on exit,
// which suits one-shot CLI runs.
type MemoryStore struct {
	mutex sync.RWMutex
	runs  map[uuid.UUID]*RunRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[uuid.UUID]*RunRecord),
	}
}

func (s *MemoryStore) SaveRun(_ context.Context, rec *RunRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.runs[rec.ID] = clone(rec)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*RunRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return nil, types.ErrRunNotFound(id.String())
	}
	return clone(rec), nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]*RunRecord, error) {
	s.mutex.RLock()
	out := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec.Summary())
	}
	s.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func clone(rec *RunRecord) *RunRecord {
	c := *rec
	c.Topology = append(c.Topology[:0:0], rec.Topology...)
	c.Outcome.FailedNodes = append(c.Outcome.FailedNodes[:0:0], rec.Outcome.FailedNodes...)
	if rec.Transcript != nil {
		c.Transcript = append([]executor.CommandRecord(nil), rec.Transcript...)
	}
	return &c
}
