// Package cli implements the docverify command line: batch verification of
// local or Cloud Storage images and schema inspection.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"docverify/internal/platform/config"
	"docverify/internal/verification/bootstrap"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
)

// Processor runs one image through the pipeline.
type Processor interface {
	Process(ctx context.Context, image []byte) *models.Result
}

// newProcessor builds the production pipeline. Tests replace it.
var newProcessor = func(ctx context.Context, cfg config.VisionConfig, registry *document.Registry, logger *slog.Logger) (Processor, io.Closer, error) {
	p, err := bootstrap.NewPipeline(ctx, cfg, registry, logger, metrics.New(nil))
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}

func NewRoot() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "docverify",
		Short:        "Verify identity and proof-of-address document images",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.AddCommand(
		VerifyCmd(&logLevel),
		SchemasCmd(),
	)
	return root
}
