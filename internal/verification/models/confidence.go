package models

import (
	"encoding/json"
	"errors"
)

// Confidence is a score in [0, 1] attached to an extraction.
//
// Invariants:
//   - Value must be between 0.0 and 1.0 inclusive
type Confidence struct {
	value float64
}

// ErrInvalidConfidence indicates the confidence score is out of range.
var ErrInvalidConfidence = errors.New("invalid confidence: must be between 0.0 and 1.0")

// NewConfidence creates a validated Confidence score.
func NewConfidence(value float64) (Confidence, error) {
	if value < 0.0 || value > 1.0 {
		return Confidence{}, ErrInvalidConfidence
	}
	return Confidence{value: value}, nil
}

// MustConfidence creates a Confidence, panicking if invalid.
func MustConfidence(value float64) Confidence {
	c, err := NewConfidence(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Value returns the confidence score.
func (c Confidence) Value() float64 {
	return c.value
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value)
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewConfidence(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
