package models

// Stage names a pipeline step. Failures report the stage they stopped at.
type Stage string

const (
	StageLoad           Stage = "load"
	StageQuality        Stage = "quality"
	StageClassification Stage = "classification"
	StageExtraction     Stage = "extraction"
	StageDateCheck      Stage = "date_check"
	StageValidation     Stage = "validation"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageLoad,
	StageQuality,
	StageClassification,
	StageExtraction,
	StageDateCheck,
	StageValidation,
}

func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// FailureKind classifies why a run failed.
type FailureKind string

const (
	// KindPrecondition covers local input checks such as the size ceiling.
	KindPrecondition FailureKind = "precondition"
	// KindQuality means the image did not pass the quality gate.
	KindQuality FailureKind = "quality"
	// KindUnsupportedType means the classified type has no schema entry.
	KindUnsupportedType FailureKind = "unsupported_type"
	// KindDate means the date of birth is implausible.
	KindDate FailureKind = "date"
	// KindCapability wraps errors returned by the vision capability.
	KindCapability FailureKind = "capability"
	// KindInternal is a recovered fault inside the pipeline itself.
	KindInternal FailureKind = "internal"
)

func (k FailureKind) String() string {
	return string(k)
}
