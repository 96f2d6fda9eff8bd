package score

import (
	"context"
	"sort"
	"sync"

	"github.com/bananagame/banago/internal/domain"
)

// MemoryStore is the zero-infrastructure Store used by tests and the dev
// backend. Locking makes the upsert atomic per key.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.ScoreRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]domain.ScoreRecord),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, rec domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = rec
	return nil
}

func (s *MemoryStore) Top(_ context.Context, n int) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	recs := make([]domain.ScoreRecord, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Points != recs[j].Points {
			return recs[i].Points > recs[j].Points
		}
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].Username < recs[j].Username
	})

	if n < len(recs) {
		recs = recs[:n]
	}
	return recs, nil
}

func (s *MemoryStore) HighestScore(_ context.Context, username string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, found := 0, false
	for _, r := range s.records {
		if r.Username != username {
			continue
		}
		if !found || r.Points > best {
			best, found = r.Points, true
		}
	}
	return best, found, nil
}
