package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is a persisted verification: the pipeline result plus the request
// metadata needed to look it up again.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Subject     string    `json:"subject,omitempty"`
	ImageDigest string    `json:"image_digest"`
	Filename    string    `json:"filename,omitempty"`
	Result      *Result   `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}

// Decision is the audit-facing summary of a record.
func (r *Record) Decision() string {
	if r.Result.Accepted() {
		return "accepted"
	}
	return "rejected"
}

// Reason explains a rejection: the failure message, the validation error, or
// the missing fields. Accepted records have no reason.
func (r *Record) Reason() string {
	res := r.Result
	switch {
	case res == nil:
		return ""
	case res.Failure != nil:
		return res.Failure.Message
	case res.Success != nil && res.Success.Validation.Error != "":
		return res.Success.Validation.Error
	case res.Success != nil && len(res.Success.Validation.MissingFields) > 0:
		return "missing fields"
	}
	return ""
}
