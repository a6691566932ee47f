package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docverify/internal/platform/config"
	"docverify/internal/platform/logger"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/imagesource"
	"docverify/internal/verification/models"
	strutil "docverify/pkg/platform/strings"
	"docverify/pkg/requestcontext"
)

// Output formats for the verify command.
const (
	OutputJSON    = "json"
	OutputSummary = "summary"
)

// ErrRejected is returned when at least one document was not accepted, so
// scripts can rely on the exit status.
var ErrRejected = errors.New("one or more documents were rejected")

type verifyOptions struct {
	concurrency int
	model       string
	project     string
	region      string
	output      string
	strict      bool
}

// BatchItem is the outcome for one location.
type BatchItem struct {
	Location string         `json:"location"`
	Result   *models.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func VerifyCmd(logLevel *string) *cobra.Command {
	opts := verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify IMAGE...",
		Short: "Verify one or more images (local paths or gs://bucket/object)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != OutputJSON && opts.output != OutputSummary {
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			applyFlags(&cfg.Vision, opts)

			ctx := cmd.Context()
			log := logger.NewWithWriter(cmd.ErrOrStderr(), *logLevel)
			processor, closer, err := newProcessor(ctx, cfg.Vision, document.NewRegistry(), log)
			if err != nil {
				return err
			}
			defer closer.Close()

			loader := imagesource.NewLoader()
			defer loader.Close()

			// One reference date for the whole batch.
			ctx = requestcontext.WithTime(ctx, time.Now())
			// A location listed twice is verified once.
			locations := strutil.DedupeAndTrim(args)
			items, err := RunBatch(ctx, loader, processor, locations, opts.concurrency)
			if err != nil {
				return err
			}
			if err := writeItems(cmd.OutOrStdout(), opts.output, items); err != nil {
				return err
			}
			if opts.strict && !allAccepted(items) {
				return ErrRejected
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Images processed in parallel")
	cmd.Flags().StringVar(&opts.model, "model", "", "Vision model (overrides VISION_MODEL)")
	cmd.Flags().StringVar(&opts.project, "project", "", "Cloud project (overrides VISION_PROJECT_ID)")
	cmd.Flags().StringVar(&opts.region, "region", "", "Cloud region (overrides VISION_REGION)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", OutputSummary, "Output format: json or summary")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero unless every document is accepted")
	return cmd
}

func applyFlags(cfg *config.VisionConfig, opts verifyOptions) {
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.project != "" {
		cfg.ProjectID = opts.project
	}
	if opts.region != "" {
		cfg.Region = opts.region
	}
}

// Loader reads an image from a location.
type Loader interface {
	Load(ctx context.Context, location string) (imagesource.Image, error)
}

// RunBatch verifies every location with at most concurrency runs in flight.
// Load errors are reported per item; results keep the input order.
func RunBatch(ctx context.Context, loader Loader, processor Processor, locations []string, concurrency int) ([]BatchItem, error) {
	items := make([]BatchItem, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, location := range locations {
		g.Go(func() error {
			items[i].Location = location
			img, err := loader.Load(gctx, location)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = processor.Process(gctx, img.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, ctx.Err()
}

func allAccepted(items []BatchItem) bool {
	for _, item := range items {
		if item.Result == nil || !item.Result.Accepted() {
			return false
		}
	}
	return true
}

func writeItems(w io.Writer, format string, items []BatchItem) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tSTATUS\tTYPE\tDETAIL\tSECONDS")
	for _, item := range items {
		if item.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t%s\t-\n", item.Location, "unreadable", item.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n",
			item.Location,
			item.Result.Status(),
			orDash(item.Result.DocumentType().String()),
			detail(item.Result),
			models.Seconds(item.Result.Elapsed()),
		)
	}
	return tw.Flush()
}

func detail(res *models.Result) string {
	if f := res.Failure; f != nil {
		return fmt.Sprintf("%s: %s", f.Stage, f.Message)
	}
	v := res.Success.Validation
	switch {
	case v.Error != "":
		return v.Error
	case len(v.MissingFields) > 0:
		return fmt.Sprintf("missing %v", v.MissingFields)
	}
	return "valid"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
