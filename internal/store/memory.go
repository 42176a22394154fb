package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-records/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Results come back in insertion order.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location, value: index into records
	index   map[string]int
	records []weather.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

// Create stores rec. It fails with weather.ErrDuplicate if the location is taken.
func (s *MemoryStore) Create(_ context.Context, rec weather.Record) (weather.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.Location]; ok {
		return weather.Record{}, weather.ErrDuplicate
	}
	rec.Date = rec.Date.UTC()
	s.index[rec.Location] = len(s.records)
	s.records = append(s.records, rec)
	return rec, nil
}

// FindAll returns a copy of every record.
func (s *MemoryStore) FindAll(_ context.Context) ([]weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// FindByLocation returns the record for exactly location.
func (s *MemoryStore) FindByLocation(_ context.Context, location string) (weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[location]
	if !ok {
		return weather.Record{}, weather.ErrNotFound
	}
	return s.records[i], nil
}

// Find returns the records matching q.
func (s *MemoryStore) Find(_ context.Context, q weather.Query) ([]weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []weather.Record{}
	for _, rec := range s.records {
		if q.Matches(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Delete removes the record for exactly location.
func (s *MemoryStore) Delete(_ context.Context, location string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[location]; !ok {
		return 0, nil
	}
	s.removeWhere(func(r weather.Record) bool { return r.Location == location })
	return 1, nil
}

// DeleteBefore removes every record dated strictly before cutoff.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeWhere(func(r weather.Record) bool { return r.Date.Before(cutoff) }), nil
}

// removeWhere compacts records in place and rebuilds the index.
// Callers must hold the write lock.
func (s *MemoryStore) removeWhere(drop func(weather.Record) bool) int64 {
	kept := s.records[:0]
	var removed int64
	for _, rec := range s.records {
		if drop(rec) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	clear(s.records[len(kept):])
	s.records = kept

	s.index = make(map[string]int, len(kept))
	for i, rec := range kept {
		s.index[rec.Location] = i
	}
	return removed
}
