// Package document holds the document-type schema registry: which fields each
// supported document must carry and the instruction used to extract them.
//
// The registry is pure data. It is built once from a YAML table and never
// mutated afterwards, so a single instance can be shared by concurrent
// pipeline runs without locking.
package document

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocumentType identifies a supported identity or proof-of-address document.
type DocumentType string

const (
	TypePassport      DocumentType = "passport"
	TypeLicense       DocumentType = "license"
	TypeNationalID    DocumentType = "national_id"
	TypeUtilityBill   DocumentType = "utility_bill"
	TypeBankStatement DocumentType = "bank_statement"
)

// String returns the wire token for the type.
func (t DocumentType) String() string {
	return string(t)
}

// ParseToken normalizes a free-text token into a DocumentType candidate.
// It does not check the registry; use Registry.Lookup for that.
func ParseToken(token string) DocumentType {
	return DocumentType(strings.ToLower(strings.TrimSpace(token)))
}

// FieldDateOfBirth is the field the date-of-birth plausibility check reads.
const FieldDateOfBirth = "date_of_birth"

// SchemaEntry pairs a document type with its ordered required fields and the
// extraction instruction sent to the vision model.
type SchemaEntry struct {
	docType          DocumentType
	requiredFields   []string
	extractionPrompt string
}

// Type returns the document type.
func (e SchemaEntry) Type() DocumentType {
	return e.docType
}

// RequiredFields returns a copy of the required field names in schema order.
func (e SchemaEntry) RequiredFields() []string {
	return append([]string(nil), e.requiredFields...)
}

// ExtractionPrompt returns the instruction used for field extraction.
func (e SchemaEntry) ExtractionPrompt() string {
	return e.extractionPrompt
}

// Requires reports whether field is one of the required fields.
func (e SchemaEntry) Requires(field string) bool {
	for _, f := range e.requiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// Registry maps document types to their schema entries.
type Registry struct {
	entries map[DocumentType]SchemaEntry
}

//go:embed schemas.yaml
var defaultTable []byte

var (
	ErrDuplicateType  = errors.New("duplicate document type")
	ErrEmptyType      = errors.New("document type is required")
	ErrNoFields       = errors.New("document type has no required fields")
	ErrEmptyFieldName = errors.New("required field name is empty")
)

type tableFile struct {
	Documents []tableEntry `yaml:"documents"`
}

type tableEntry struct {
	Type           string   `yaml:"type"`
	RequiredFields []string `yaml:"required_fields"`
	Prompt         string   `yaml:"prompt"`
}

// NewRegistry builds the registry from the embedded default table.
// The embedded table is validated by tests, so a failure here is a build defect.
func NewRegistry() *Registry {
	r, err := ParseRegistry(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded document schema table is invalid: %v", err))
	}
	return r
}

// ParseRegistry builds a registry from a YAML table. Entries without an
// explicit prompt get one generated from their required fields.
func ParseRegistry(data []byte) (*Registry, error) {
	var table tableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse schema table: %w", err)
	}

	entries := make(map[DocumentType]SchemaEntry, len(table.Documents))
	for _, raw := range table.Documents {
		docType := ParseToken(raw.Type)
		if docType == "" {
			return nil, ErrEmptyType
		}
		if _, exists := entries[docType]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, docType)
		}
		if len(raw.RequiredFields) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoFields, docType)
		}
		fields := make([]string, 0, len(raw.RequiredFields))
		for _, f := range raw.RequiredFields {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, fmt.Errorf("%w: %s", ErrEmptyFieldName, docType)
			}
			fields = append(fields, f)
		}

		prompt := strings.TrimSpace(raw.Prompt)
		if prompt == "" {
			prompt = buildPrompt(fields)
		}
		entries[docType] = SchemaEntry{
			docType:          docType,
			requiredFields:   fields,
			extractionPrompt: prompt,
		}
	}
	return &Registry{entries: entries}, nil
}

func buildPrompt(fields []string) string {
	var b strings.Builder
	b.WriteString("Extract in JSON format:")
	for _, f := range fields {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	b.WriteString("\nUse YYYY-MM-DD for dates. Respond with a single JSON object and nothing else.")
	return b.String()
}

// Lookup returns the schema entry for docType. An unknown type is reported
// with ok=false and is not an error.
func (r *Registry) Lookup(docType DocumentType) (SchemaEntry, bool) {
	entry, ok := r.entries[docType]
	return entry, ok
}

// RequiredFields returns the required fields for docType, or nil if unknown.
func (r *Registry) RequiredFields(docType DocumentType) []string {
	entry, ok := r.Lookup(docType)
	if !ok {
		return nil
	}
	return entry.RequiredFields()
}

// ExtractionPrompt returns the extraction instruction for docType.
func (r *Registry) ExtractionPrompt(docType DocumentType) (string, bool) {
	entry, ok := r.Lookup(docType)
	if !ok {
		return "", false
	}
	return entry.ExtractionPrompt(), true
}

// Types returns all registered document types in lexical order.
func (r *Registry) Types() []DocumentType {
	types := make([]DocumentType, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
