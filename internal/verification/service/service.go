// Package service runs verifications on behalf of callers: it deduplicates
// identical images through the result cache, runs the pipeline, persists the
// record and emits the audit trail.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docverify/internal/platform/logger"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// Processor runs the verification pipeline over one image.
type Processor interface {
	Process(ctx context.Context, image []byte) *models.Result
}

// VerifyRequest is one image submitted for verification. Subject defaults to
// the authenticated caller in the context.
type VerifyRequest struct {
	Image    []byte
	Filename string
	Subject  string
}

// Default and maximum page sizes for ListBySubject.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Service orchestrates verification runs and record lookups.
type Service struct {
	processor Processor
	store     ports.ResultStore
	cache     ports.ResultCache
	cacheTTL  time.Duration
	auditor   ports.AuditPort
	logger    *slog.Logger
	metrics   *metrics.Metrics
	newID     func() uuid.UUID
}

type Option func(s *Service)

// WithCache enables reuse of records for identical images within ttl.
func WithCache(cache ports.ResultCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithAuditPublisher(auditor ports.AuditPort) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIDGenerator replaces uuid.New for deterministic tests.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New constructs a Service.
func New(processor Processor, store ports.ResultStore, opts ...Option) *Service {
	s := &Service{
		processor: processor,
		store:     store,
		logger:    logger.Discard(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Digest returns the hex SHA-256 of an image.
func Digest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Verify runs the pipeline for req and stores the outcome. A rejected document
// is a successful call; only a failure to persist the record is an error.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*models.Record, error) {
	subject := req.Subject
	if subject == "" {
		subject = requestcontext.Subject(ctx)
	}
	digest := Digest(req.Image)

	if cached := s.lookupCache(ctx, digest, subject); cached != nil {
		return cached, nil
	}

	result := s.processor.Process(ctx, req.Image)
	record := &models.Record{
		ID:          s.newID(),
		Subject:     subject,
		ImageDigest: digest,
		Filename:    req.Filename,
		Result:      result,
		CreatedAt:   requestcontext.Now(ctx).UTC(),
	}

	if err := s.store.Save(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to save verification",
			"verification_id", record.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification")
	}

	s.storeInCache(ctx, digest, record)
	s.emitDecision(ctx, record)

	s.logger.InfoContext(ctx, "verification completed",
		"verification_id", record.ID,
		"status", result.Status(),
		"document_type", result.DocumentType(),
		"decision", record.Decision(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return record, nil
}

// Get returns a stored verification. Records owned by another subject are
// reported as not found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}

	caller := requestcontext.Subject(ctx)
	if record.Subject != "" && record.Subject != caller {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "verification not found")
	}

	s.emit(ctx, audit.Event{
		Action:         string(audit.EventVerificationViewed),
		Category:       audit.EventVerificationViewed.Category(),
		Subject:        caller,
		VerificationID: record.ID.String(),
		DocumentType:   record.Result.DocumentType().String(),
	})
	return record, nil
}

// ListBySubject returns the caller's most recent verifications.
func (s *Service) ListBySubject(ctx context.Context, limit int) ([]*models.Record, error) {
	subject := requestcontext.Subject(ctx)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "listing verifications requires authentication")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	records, err := s.store.ListBySubject(ctx, subject, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	return records, nil
}

func (s *Service) lookupCache(ctx context.Context, digest, subject string) *models.Record {
	if s.cache == nil {
		return nil
	}
	record, err := s.cache.Get(ctx, digest)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementCacheLookup("miss")
		return nil
	case err != nil:
		s.metrics.IncrementCacheLookup("error")
		s.logger.WarnContext(ctx, "result cache lookup failed", "error", err)
		return nil
	case record.Subject != subject:
		// Digest collisions across subjects never share records.
		s.metrics.IncrementCacheLookup("miss")
		return nil
	}
	s.metrics.IncrementCacheLookup("hit")
	s.logger.InfoContext(ctx, "verification served from cache",
		"verification_id", record.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return record
}

// storeInCache skips results caused by capability or internal faults: those
// are transient and a retry may succeed.
func (s *Service) storeInCache(ctx context.Context, digest string, record *models.Record) {
	if s.cache == nil || !cacheable(record.Result) {
		return
	}
	if err := s.cache.Set(ctx, digest, record, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache verification",
			"verification_id", record.ID,
			"error", err,
		)
	}
}

func cacheable(result *models.Result) bool {
	if result == nil {
		return false
	}
	if result.Failure == nil {
		return true
	}
	switch result.Failure.Kind {
	case models.KindCapability, models.KindInternal:
		return false
	}
	return true
}

func (s *Service) emitDecision(ctx context.Context, record *models.Record) {
	action := audit.EventDocumentRejected
	if record.Result.Accepted() {
		action = audit.EventDocumentVerified
	}
	s.emit(ctx, audit.Event{
		Action:         string(action),
		Category:       action.Category(),
		Subject:        record.Subject,
		VerificationID: record.ID.String(),
		DocumentType:   record.Result.DocumentType().String(),
		Decision:       record.Decision(),
		Reason:         record.Reason(),
		ImageDigest:    record.ImageDigest,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"verification_id", event.VerificationID,
			"error", err,
		)
	}
}
