// Package validation checks extracted document data: field completeness
// against the document schema and date-of-birth plausibility.
//
// Everything here is pure: no I/O, no context, no clock reads. The caller
// supplies the current time.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"docverify/internal/verification/domain/document"
)

// Outcome error strings. They are part of the external result shape.
const (
	ErrorUnknownDocumentType = "unknown document type"
	ErrorMalformedData       = "malformed structured data"
)

// ErrMalformedData is returned when model output is not a JSON object.
var ErrMalformedData = errors.New(ErrorMalformedData)

// ExtractedFields maps field names to their extracted values.
type ExtractedFields map[string]string

// Keys returns the field names in lexical order.
func (f ExtractedFields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFields parses model output into fields. A surrounding markdown code
// fence is tolerated. Non-string scalars are kept as their JSON text, null
// becomes an empty string, and nested values keep their JSON encoding.
func ParseFields(raw string) (ExtractedFields, error) {
	body := TrimCodeFence(raw)
	if body == "" {
		return nil, ErrMalformedData
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return nil, ErrMalformedData
	}

	fields := make(ExtractedFields, len(obj))
	for key, value := range obj {
		fields[key] = rawToString(value)
	}
	return fields, nil
}

func rawToString(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// TrimCodeFence strips a leading ```lang line and a trailing ``` fence.
func TrimCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		// single-line fence such as ```{"a":"b"}```
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Payload is the data handed to the validator: raw model text that still
// needs parsing, or fields that are already structured.
type Payload struct {
	raw        string
	fields     ExtractedFields
	structured bool
}

// RawPayload wraps unparsed model output.
func RawPayload(raw string) Payload {
	return Payload{raw: raw}
}

// FieldsPayload wraps already-parsed fields.
func FieldsPayload(fields ExtractedFields) Payload {
	return Payload{fields: fields, structured: true}
}

func (p Payload) resolve() (ExtractedFields, error) {
	if p.structured {
		if p.fields == nil {
			return ExtractedFields{}, nil
		}
		return p.fields, nil
	}
	return ParseFields(p.raw)
}

// Details lists the required and provided field sets for diagnostics.
type Details struct {
	RequiredFields []string
	ProvidedFields []string
}

// Outcome is the result of validating a payload against a schema.
// IsValid is true iff MissingFields is empty and Error is empty.
type Outcome struct {
	IsValid       bool
	MissingFields []string
	Error         string
	Details       Details
}

// Validator checks extracted fields against the document schema registry.
type Validator struct {
	registry *document.Registry
}

// NewValidator returns a validator backed by registry.
func NewValidator(registry *document.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate reports which required fields of docType are missing from payload.
// Only key presence is checked; an empty value counts as present.
func (v *Validator) Validate(docType document.DocumentType, payload Payload) Outcome {
	entry, ok := v.registry.Lookup(docType)
	if !ok {
		return Outcome{
			IsValid:       false,
			MissingFields: []string{},
			Error:         ErrorUnknownDocumentType,
		}
	}

	required := entry.RequiredFields()
	fields, err := payload.resolve()
	if err != nil {
		return Outcome{
			IsValid:       false,
			MissingFields: []string{},
			Error:         ErrorMalformedData,
			Details:       Details{RequiredFields: required, ProvidedFields: []string{}},
		}
	}

	missing := make([]string, 0)
	for _, name := range required {
		if _, present := fields[name]; !present {
			missing = append(missing, name)
		}
	}

	return Outcome{
		IsValid:       len(missing) == 0,
		MissingFields: missing,
		Details: Details{
			RequiredFields: required,
			ProvidedFields: fields.Keys(),
		},
	}
}
