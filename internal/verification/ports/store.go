package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docverify/internal/verification/models"
)

// ResultStore persists verification records.
// FindByID returns sentinel.ErrNotFound for unknown IDs.
type ResultStore interface {
	Save(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListBySubject(ctx context.Context, subject string, limit int) ([]*models.Record, error)
}

// ResultCache maps image digests to previously computed records.
// Get returns sentinel.ErrNotFound on a miss.
type ResultCache interface {
	Get(ctx context.Context, digest string) (*models.Record, error)
	Set(ctx context.Context, digest string, record *models.Record, ttl time.Duration) error
}
