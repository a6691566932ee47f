// Package bootstrap builds the verification pipeline from configuration. The
// server and the CLI share it so both run the same capability stack.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"docverify/internal/platform/config"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/pipeline"
	"docverify/internal/verification/vision"
	"docverify/internal/verification/vision/vertex"
	"docverify/pkg/platform/circuit"
)

// Pipeline is a ready pipeline plus the adapter that must be closed with it.
type Pipeline struct {
	*pipeline.Pipeline
	adapter *vertex.Adapter
}

// Close releases the model client.
func (p *Pipeline) Close() error {
	return p.adapter.Close()
}

// NewPipeline connects to Vertex AI and wraps the adapter in the resilience
// decorator before handing it to the pipeline.
func NewPipeline(ctx context.Context, cfg config.VisionConfig, registry *document.Registry, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	confidence, err := models.NewConfidence(cfg.DefaultConfidence)
	if err != nil {
		return nil, fmt.Errorf("default confidence: %w", err)
	}

	adapter, err := vertex.New(ctx, cfg.ProjectID, cfg.Region, cfg.Model, registry,
		vertex.WithDefaultConfidence(confidence),
		vertex.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	resilient := vision.NewResilient(adapter, vertex.ProviderID,
		vision.WithTimeout(cfg.Timeout),
		vision.WithRetries(cfg.MaxRetries, vision.DefaultBackoff),
		vision.WithBreaker(circuit.New("vision:"+vertex.ProviderID), vision.DefaultCooldown),
		vision.WithLogger(logger),
		vision.WithMetrics(m),
	)

	logger.InfoContext(ctx, "vision capability ready",
		"provider", vertex.ProviderID,
		"model", cfg.Model,
		"region", cfg.Region,
	)

	return &Pipeline{
		Pipeline: pipeline.New(resilient, registry,
			pipeline.WithLogger(logger),
			pipeline.WithMetrics(m),
		),
		adapter: adapter,
	}, nil
}
