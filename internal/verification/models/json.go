package models

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/domain/validation"
)

// External status tokens.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var errInvalidResult = errors.New("result must hold exactly one of success or failure")

type resultJSON struct {
	Status string `json:"status"`

	DocumentType      string              `json:"document_type,omitempty"`
	ExtractedInfo     *extractedInfoJSON  `json:"extracted_info,omitempty"`
	ValidationResult  *validationJSON     `json:"validation_result,omitempty"`
	QualityCheck      *quality.Assessment `json:"quality_check,omitempty"`
	ProcessingMetrics *metricsJSON        `json:"processing_metrics,omitempty"`

	Stage                 string              `json:"stage,omitempty"`
	ErrorType             string              `json:"error_type,omitempty"`
	ErrorMessage          string              `json:"error_message,omitempty"`
	ProcessingTimeSeconds *float64            `json:"processing_time_seconds,omitempty"`
	QualityIssues         *quality.Assessment `json:"quality_issues,omitempty"`
	DateIssues            []string            `json:"date_issues,omitempty"`
}

type extractedInfoJSON struct {
	DocumentType    string            `json:"document_type"`
	ExtractedData   string            `json:"extracted_data"`
	Fields          map[string]string `json:"fields,omitempty"`
	ConfidenceScore Confidence        `json:"confidence_score"`
}

type validationJSON struct {
	IsValid       bool                  `json:"is_valid"`
	MissingFields []string              `json:"missing_fields"`
	Error         string                `json:"error,omitempty"`
	Details       validationDetailsJSON `json:"validation_details"`
}

type validationDetailsJSON struct {
	RequiredFields []string `json:"required_fields"`
	ProvidedFields []string `json:"provided_fields"`
}

type metricsJSON struct {
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
	ConfidenceScore       Confidence `json:"confidence_score"`
}

// Seconds rounds d to two decimal places, the precision reported externally.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// MarshalJSON renders the external result shape.
func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Success != nil && r.Failure == nil:
		return json.Marshal(successJSON(r.Success))
	case r.Failure != nil && r.Success == nil:
		return json.Marshal(failureJSON(r.Failure))
	}
	return nil, errInvalidResult
}

func successJSON(s *Success) resultJSON {
	q := s.Quality
	return resultJSON{
		Status:       StatusSuccess,
		DocumentType: s.DocumentType.String(),
		ExtractedInfo: &extractedInfoJSON{
			DocumentType:    s.DocumentType.String(),
			ExtractedData:   s.RawExtraction,
			Fields:          s.Fields,
			ConfidenceScore: s.Confidence,
		},
		ValidationResult: &validationJSON{
			IsValid:       s.Validation.IsValid,
			MissingFields: nonNil(s.Validation.MissingFields),
			Error:         s.Validation.Error,
			Details: validationDetailsJSON{
				RequiredFields: nonNil(s.Validation.Details.RequiredFields),
				ProvidedFields: nonNil(s.Validation.Details.ProvidedFields),
			},
		},
		QualityCheck: &q,
		ProcessingMetrics: &metricsJSON{
			ProcessingTimeSeconds: Seconds(s.Elapsed),
			ConfidenceScore:       s.Confidence,
		},
	}
}

func failureJSON(f *Failure) resultJSON {
	seconds := Seconds(f.Elapsed)
	return resultJSON{
		Status:                StatusError,
		DocumentType:          f.DocumentType.String(),
		Stage:                 f.Stage.String(),
		ErrorType:             f.Kind.String(),
		ErrorMessage:          f.Message,
		ProcessingTimeSeconds: &seconds,
		QualityIssues:         f.QualityIssues,
		DateIssues:            f.DateIssues,
	}
}

// UnmarshalJSON decodes the external shape. Elapsed time is restored at the
// two-decimal precision it was written with.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Status {
	case StatusSuccess:
		s := &Success{DocumentType: document.DocumentType(raw.DocumentType)}
		if raw.ExtractedInfo != nil {
			s.RawExtraction = raw.ExtractedInfo.ExtractedData
			if raw.ExtractedInfo.Fields != nil {
				s.Fields = validation.ExtractedFields(raw.ExtractedInfo.Fields)
			}
			s.Confidence = raw.ExtractedInfo.ConfidenceScore
		}
		if v := raw.ValidationResult; v != nil {
			s.Validation = validation.Outcome{
				IsValid:       v.IsValid,
				MissingFields: nonNil(v.MissingFields),
				Error:         v.Error,
				Details: validation.Details{
					RequiredFields: nonNil(v.Details.RequiredFields),
					ProvidedFields: nonNil(v.Details.ProvidedFields),
				},
			}
		}
		if raw.QualityCheck != nil {
			s.Quality = *raw.QualityCheck
		}
		if raw.ProcessingMetrics != nil {
			s.Elapsed = fromSeconds(raw.ProcessingMetrics.ProcessingTimeSeconds)
		}
		*r = Result{Success: s}
	case StatusError:
		f := &Failure{
			Stage:         Stage(raw.Stage),
			Kind:          FailureKind(raw.ErrorType),
			Message:       raw.ErrorMessage,
			DocumentType:  document.DocumentType(raw.DocumentType),
			QualityIssues: raw.QualityIssues,
			DateIssues:    raw.DateIssues,
		}
		if raw.ProcessingTimeSeconds != nil {
			f.Elapsed = fromSeconds(*raw.ProcessingTimeSeconds)
		}
		*r = Result{Failure: f}
	default:
		return errInvalidResult
	}
	return nil
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
