// Package store provides ResultStore and ResultCache implementations:
// in-memory variants for development and tests, Postgres for records and
// Redis for the digest cache.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]*models.Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record, nil
}

// ListBySubject returns up to limit records for subject, newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string, limit int) ([]*models.Record, error) {
	s.mu.RLock()
	out := make([]*models.Record, 0)
	for _, record := range s.records {
		if record.Subject == subject {
			out = append(out, record)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
