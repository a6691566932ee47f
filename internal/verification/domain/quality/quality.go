// Package quality evaluates the image quality assessment returned by the
// vision capability. An image passes only when every flag is affirmative.
package quality

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Affirmative is the only flag value that passes the gate.
const Affirmative = "yes"

const negative = "no"

// Flag names as they appear on the wire.
const (
	FlagCentered     = "centered"
	FlagClear        = "clear"
	FlagFullyVisible = "fully_visible"
)

// Assessment holds the three quality flags reported for an image.
type Assessment struct {
	Centered     string `json:"centered"`
	Clear        string `json:"clear"`
	FullyVisible string `json:"fully_visible"`
}

// Evaluate reports whether all flags are exactly Affirmative. Empty or
// unrecognized values fail.
func Evaluate(a Assessment) bool {
	return a.Centered == Affirmative && a.Clear == Affirmative && a.FullyVisible == Affirmative
}

// Passed is shorthand for Evaluate(a).
func (a Assessment) Passed() bool {
	return Evaluate(a)
}

// FailingAssessment is substituted when the quality capability errors.
func FailingAssessment() Assessment {
	return Assessment{Centered: negative, Clear: negative, FullyVisible: negative}
}

// Issues returns the names of the flags that did not pass, in wire order.
func (a Assessment) Issues() []string {
	issues := make([]string, 0, 3)
	if a.Centered != Affirmative {
		issues = append(issues, FlagCentered)
	}
	if a.Clear != Affirmative {
		issues = append(issues, FlagClear)
	}
	if a.FullyVisible != Affirmative {
		issues = append(issues, FlagFullyVisible)
	}
	return issues
}

// ParseAssessment decodes a JSON object with the three flags. Values are
// lower-cased and trimmed; missing keys stay empty and therefore fail.
func ParseAssessment(raw string) (Assessment, error) {
	var a Assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &a); err != nil {
		return Assessment{}, fmt.Errorf("decode quality assessment: %w", err)
	}
	return a.normalized(), nil
}

func (a Assessment) normalized() Assessment {
	return Assessment{
		Centered:     normalize(a.Centered),
		Clear:        normalize(a.Clear),
		FullyVisible: normalize(a.FullyVisible),
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
