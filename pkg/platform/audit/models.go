package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Verification decisions fall here: KYC outcomes must be retained.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory `json:"category"`
	Timestamp      time.Time     `json:"timestamp"`
	Subject        string        `json:"subject,omitempty"`
	Action         string        `json:"action"`
	VerificationID string        `json:"verification_id,omitempty"`
	DocumentType   string        `json:"document_type,omitempty"`
	Decision       string        `json:"decision,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
	// ImageDigest is the SHA-256 of the submitted image. The image itself is
	// never written to the audit trail.
	ImageDigest string `json:"image_digest,omitempty"`
}

type AuditEvent string

const (
	EventDocumentVerified   AuditEvent = "document_verified"
	EventDocumentRejected   AuditEvent = "document_rejected"
	EventVerificationViewed AuditEvent = "verification_viewed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentVerified:   CategoryCompliance,
	EventDocumentRejected:   CategoryCompliance,
	EventVerificationViewed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Emitter is the interface services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
