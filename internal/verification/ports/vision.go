package ports

import (
	"context"

	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/models"
)

// Extraction is the raw model output for a field extraction request.
type Extraction struct {
	Text       string
	Confidence models.Confidence
}

// VisionPort is the opaque vision-model capability the pipeline depends on.
// Implementations are bound to a model identifier at construction.
type VisionPort interface {
	// Classify returns a free-text document type token.
	Classify(ctx context.Context, image []byte) (string, error)
	// Extract runs the extraction instruction against the image.
	Extract(ctx context.Context, image []byte, instruction string) (Extraction, error)
	// AssessQuality returns the three-flag quality assessment.
	AssessQuality(ctx context.Context, image []byte) (quality.Assessment, error)
}
