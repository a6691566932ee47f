package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docverify/internal/verification/models"
	"docverify/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// PostgresStore persists verification records in PostgreSQL. The full result
// is kept as JSONB; status, type, stage and missing fields are denormalized
// for reporting queries.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertRecord = `
INSERT INTO verification_records
    (id, subject, image_digest, filename, status, document_type, stage, missing_fields, result, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    document_type = EXCLUDED.document_type,
    stage = EXCLUDED.stage,
    missing_fields = EXCLUDED.missing_fields,
    result = EXCLUDED.result`

const selectRecord = `
SELECT id, subject, image_digest, filename, result, created_at
FROM verification_records`

func (s *PostgresStore) Save(ctx context.Context, record *models.Record) error {
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshal verification result: %w", err)
	}

	var stage string
	missing := []string{}
	if f := record.Result.Failure; f != nil {
		stage = f.Stage.String()
	}
	if sc := record.Result.Success; sc != nil {
		missing = sc.Validation.MissingFields
	}

	_, err = s.db.ExecContext(ctx, upsertRecord,
		record.ID,
		record.Subject,
		record.ImageDigest,
		record.Filename,
		record.Result.Status(),
		record.Result.DocumentType().String(),
		stage,
		pq.Array(missing),
		resultJSON,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save verification record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification record by id: %w", err)
	}
	return record, nil
}

// ListBySubject returns up to limit records for subject, newest first.
func (s *PostgresStore) ListBySubject(ctx context.Context, subject string, limit int) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRecord+` WHERE subject = $1 ORDER BY created_at DESC LIMIT $2`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		record     models.Record
		resultJSON []byte
	)
	if err := row.Scan(&record.ID, &record.Subject, &record.ImageDigest, &record.Filename, &resultJSON, &record.CreatedAt); err != nil {
		return nil, err
	}
	var result models.Result
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("unmarshal verification result: %w", err)
	}
	record.Result = &result
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}
