// Package models holds the verification result model shared by the pipeline,
// the service, the stores and the transport layers.
package models

import (
	"reflect"
	"time"

	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/domain/validation"
)

// Result is the outcome of one pipeline run. Exactly one of Success or
// Failure is set. A Result is never mutated after the pipeline returns it.
type Result struct {
	Success *Success
	Failure *Failure
}

// Success is a run that passed every gating stage. The validation outcome may
// still report missing fields.
type Success struct {
	DocumentType  document.DocumentType
	Fields        validation.ExtractedFields
	RawExtraction string
	Validation    validation.Outcome
	Quality       quality.Assessment
	Confidence    Confidence
	Elapsed       time.Duration
}

// Failure is a run that stopped at Stage.
type Failure struct {
	Stage   Stage
	Kind    FailureKind
	Message string
	Elapsed time.Duration

	// DocumentType is set once classification has produced a token.
	DocumentType  document.DocumentType
	QualityIssues *quality.Assessment
	DateIssues    []string
}

// NewSuccess wraps s in a Result.
func NewSuccess(s Success) *Result {
	return &Result{Success: &s}
}

// NewFailure wraps f in a Result.
func NewFailure(f Failure) *Result {
	return &Result{Failure: &f}
}

// IsSuccess reports whether the run completed every stage.
func (r *Result) IsSuccess() bool {
	return r != nil && r.Success != nil
}

// Status returns the external status token.
func (r *Result) Status() string {
	if r.IsSuccess() {
		return StatusSuccess
	}
	return StatusError
}

// Elapsed returns the wall-clock duration of the run.
func (r *Result) Elapsed() time.Duration {
	switch {
	case r == nil:
		return 0
	case r.Success != nil:
		return r.Success.Elapsed
	case r.Failure != nil:
		return r.Failure.Elapsed
	}
	return 0
}

// DocumentType returns the classified type, or "" if classification never ran.
func (r *Result) DocumentType() document.DocumentType {
	switch {
	case r == nil:
		return ""
	case r.Success != nil:
		return r.Success.DocumentType
	case r.Failure != nil:
		return r.Failure.DocumentType
	}
	return ""
}

// Accepted reports whether the document passed the pipeline and its fields
// are complete.
func (r *Result) Accepted() bool {
	return r.IsSuccess() && r.Success.Validation.IsValid
}

// Equivalent compares two results ignoring timing.
func (r *Result) Equivalent(other *Result) bool {
	return reflect.DeepEqual(r.withoutTiming(), other.withoutTiming())
}

func (r *Result) withoutTiming() *Result {
	if r == nil {
		return nil
	}
	out := &Result{}
	if r.Success != nil {
		s := *r.Success
		s.Elapsed = 0
		out.Success = &s
	}
	if r.Failure != nil {
		f := *r.Failure
		f.Elapsed = 0
		out.Failure = &f
	}
	return out
}
