package validation

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Age bounds applied when a DateChecker is built with defaults.
const (
	DefaultMinAge = 18
	DefaultMaxAge = 100
)

// Fixed issue strings. Age issues are formatted with the configured bounds.
const (
	IssueInvalidDateFormat = "invalid date format"
	IssueFutureDate        = "date is in the future"
)

// DateCheckOutcome reports whether a date of birth is plausible for an adult
// holder of an active document. Issues holds only applicable entries.
type DateCheckOutcome struct {
	IsReasonable bool
	Issues       []string
	Age          int
}

// DateChecker validates dates of birth against an inclusive age range.
type DateChecker struct {
	MinAge int
	MaxAge int
}

// NewDateChecker returns a checker with the default 18..100 range.
func NewDateChecker() DateChecker {
	return DateChecker{MinAge: DefaultMinAge, MaxAge: DefaultMaxAge}
}

// Check evaluates value relative to now. Issues are collected independently,
// so a future date can report both an age issue and the future-date issue.
func (c DateChecker) Check(value string, now time.Time) DateCheckOutcome {
	dob, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), now.Location())
	if err != nil {
		return DateCheckOutcome{
			IsReasonable: false,
			Issues:       []string{IssueInvalidDateFormat},
		}
	}

	age := AgeAt(dob, now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	future := dob.After(today)

	issues := make([]string, 0, 3)
	if age < c.MinAge {
		issues = append(issues, fmt.Sprintf("age below minimum (%d)", c.MinAge))
	}
	if age > c.MaxAge {
		issues = append(issues, fmt.Sprintf("age exceeds maximum (%d)", c.MaxAge))
	}
	if future {
		issues = append(issues, IssueFutureDate)
	}

	return DateCheckOutcome{
		IsReasonable: age >= c.MinAge && age <= c.MaxAge && !future,
		Issues:       issues,
		Age:          age,
	}
}

// CheckDateOfBirth runs the default checker.
func CheckDateOfBirth(value string, now time.Time) DateCheckOutcome {
	return NewDateChecker().Check(value, now)
}

// AgeAt returns completed years between dob and now. A birthday later in the
// calendar year than now has not been reached yet.
func AgeAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
