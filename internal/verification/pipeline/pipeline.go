// Package pipeline runs the staged document verification workflow:
//
//	load -> quality -> classification -> extraction -> date_check -> validation
//
// Each stage either hands its output to the next one or ends the run with a
// Failure. Process never returns an error and never panics; every fault is
// folded into the returned Result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docverify/internal/platform/logger"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/domain/validation"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	"docverify/pkg/requestcontext"
)

// MaxImageBytes is the largest image accepted by the load stage.
const MaxImageBytes = 20 * 1024 * 1024

// Failure messages reported by the local stages.
const (
	MsgImageTooLarge   = "image exceeds maximum size of 20 MiB"
	MsgImageEmpty      = "image is empty"
	MsgQualityFailed   = "image quality check failed"
	MsgDateFailed      = "date validation failed"
	msgUnsupportedType = "unsupported document type: "
)

const tracerName = "docverify/internal/verification/pipeline"

// Pipeline is stateless between runs and safe for concurrent use.
type Pipeline struct {
	vision    ports.VisionPort
	registry  *document.Registry
	validator *validation.Validator
	dates     validation.DateChecker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     func() time.Time
}

// Option configures the Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithDateChecker overrides the default 18..100 age range.
func WithDateChecker(c validation.DateChecker) Option {
	return func(p *Pipeline) { p.dates = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithClock sets the clock used to measure elapsed time. The date-of-birth
// reference date comes from requestcontext.Now instead.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New builds a pipeline over the vision capability and schema registry.
func New(vision ports.VisionPort, registry *document.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		vision:    vision,
		registry:  registry,
		validator: validation.NewValidator(registry),
		dates:     validation.NewDateChecker(),
		logger:    logger.Discard(),
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process verifies one image. The returned Result is either a Success or a
// Failure naming the stage that stopped the run.
func (p *Pipeline) Process(ctx context.Context, image []byte) (result *models.Result) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.Int("image.bytes", len(image))))
	defer span.End()

	r := &run{p: p, start: p.clock(), stage: models.StageLoad}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.ErrorContext(ctx, "pipeline panic recovered",
				"stage", r.stage,
				"panic", rec,
				"request_id", requestcontext.RequestID(ctx),
			)
			result = r.fail(models.KindInternal, fmt.Sprintf("internal error: %v", rec))
		}
		p.finish(ctx, span, result)
	}()

	return r.execute(ctx, image)
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, result *models.Result) {
	stage := ""
	if result.Failure != nil {
		stage = result.Failure.Stage.String()
		span.SetStatus(codes.Error, result.Failure.Message)
		span.SetAttributes(attribute.String("failure.stage", stage), attribute.String("failure.kind", result.Failure.Kind.String()))
	}
	span.SetAttributes(
		attribute.String("status", result.Status()),
		attribute.String("document.type", result.DocumentType().String()),
	)
	p.metrics.ObservePipeline(result.Elapsed())
	p.metrics.IncrementOutcome(result.Status(), stage)

	p.logger.InfoContext(ctx, "document processed",
		"status", result.Status(),
		"stage", stage,
		"document_type", result.DocumentType(),
		"elapsed", result.Elapsed(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

// run holds the state of a single Process call.
type run struct {
	p       *Pipeline
	start   time.Time
	stage   models.Stage
	docType document.DocumentType
}

func (r *run) elapsed() time.Duration {
	return r.p.clock().Sub(r.start)
}

func (r *run) fail(kind models.FailureKind, message string) *models.Result {
	return models.NewFailure(models.Failure{
		Stage:        r.stage,
		Kind:         kind,
		Message:      message,
		Elapsed:      r.elapsed(),
		DocumentType: r.docType,
	})
}

// enter starts a stage span and returns a function that ends it and records
// the stage duration.
func (r *run) enter(ctx context.Context, stage models.Stage) (context.Context, func()) {
	r.stage = stage
	began := r.p.clock()
	ctx, span := r.p.tracer.Start(ctx, "pipeline."+stage.String())
	return ctx, func() {
		r.p.metrics.ObserveStage(stage.String(), r.p.clock().Sub(began))
		span.End()
	}
}

func (r *run) execute(ctx context.Context, image []byte) *models.Result {
	if res := r.load(image); res != nil {
		return res
	}

	assessment, res := r.checkQuality(ctx, image)
	if res != nil {
		return res
	}

	if res := r.classify(ctx, image); res != nil {
		return res
	}

	extraction, res := r.extract(ctx, image)
	if res != nil {
		return res
	}

	fields, res := r.checkDates(ctx, extraction.Text)
	if res != nil {
		return res
	}

	outcome := r.validate(ctx, extraction.Text)

	return models.NewSuccess(models.Success{
		DocumentType:  r.docType,
		Fields:        fields,
		RawExtraction: extraction.Text,
		Validation:    outcome,
		Quality:       assessment,
		Confidence:    extraction.Confidence,
		Elapsed:       r.elapsed(),
	})
}

func (r *run) load(image []byte) *models.Result {
	r.stage = models.StageLoad
	switch {
	case len(image) > MaxImageBytes:
		return r.fail(models.KindPrecondition, MsgImageTooLarge)
	case len(image) == 0:
		return r.fail(models.KindPrecondition, MsgImageEmpty)
	}
	return nil
}

func (r *run) checkQuality(ctx context.Context, image []byte) (quality.Assessment, *models.Result) {
	ctx, done := r.enter(ctx, models.StageQuality)
	defer done()

	assessment, err := r.p.vision.AssessQuality(ctx, image)
	if err != nil {
		r.p.logger.WarnContext(ctx, "quality assessment failed, treating image as unusable",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		assessment = quality.FailingAssessment()
	}

	if !quality.Evaluate(assessment) {
		r.p.logger.InfoContext(ctx, "quality gate rejected image", "issues", assessment.Issues())
		res := r.fail(models.KindQuality, MsgQualityFailed)
		res.Failure.QualityIssues = &assessment
		return assessment, res
	}
	return assessment, nil
}

func (r *run) classify(ctx context.Context, image []byte) *models.Result {
	ctx, done := r.enter(ctx, models.StageClassification)
	defer done()

	token, err := r.p.vision.Classify(ctx, image)
	if err != nil {
		return r.fail(models.KindCapability, err.Error())
	}
	r.docType = document.ParseToken(token)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("document.type", r.docType.String()))
	return nil
}

func (r *run) extract(ctx context.Context, image []byte) (ports.Extraction, *models.Result) {
	ctx, done := r.enter(ctx, models.StageExtraction)
	defer done()

	prompt, ok := r.p.registry.ExtractionPrompt(r.docType)
	if !ok {
		return ports.Extraction{}, r.fail(models.KindUnsupportedType, msgUnsupportedType+r.docType.String())
	}

	extraction, err := r.p.vision.Extract(ctx, image, prompt)
	if err != nil {
		return ports.Extraction{}, r.fail(models.KindCapability, err.Error())
	}
	return extraction, nil
}

// checkDates parses the raw extraction and checks the date of birth. A parse
// failure skips the check; the validation stage reports malformed data.
func (r *run) checkDates(ctx context.Context, raw string) (validation.ExtractedFields, *models.Result) {
	ctx, done := r.enter(ctx, models.StageDateCheck)
	defer done()

	fields, err := validation.ParseFields(raw)
	if err != nil {
		r.p.logger.DebugContext(ctx, "extraction is not a JSON object, skipping date check")
		return nil, nil
	}

	entry, ok := r.p.registry.Lookup(r.docType)
	if !ok || !entry.Requires(document.FieldDateOfBirth) {
		return fields, nil
	}

	outcome := r.p.dates.Check(fields[document.FieldDateOfBirth], requestcontext.Now(ctx))
	if !outcome.IsReasonable {
		res := r.fail(models.KindDate, MsgDateFailed)
		res.Failure.DateIssues = outcome.Issues
		return fields, res
	}
	return fields, nil
}

func (r *run) validate(ctx context.Context, raw string) validation.Outcome {
	_, done := r.enter(ctx, models.StageValidation)
	defer done()
	return r.p.validator.Validate(r.docType, validation.RawPayload(raw))
}
