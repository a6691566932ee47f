// Package vertex implements the vision capability on Vertex AI Gemini models.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"docverify/internal/platform/logger"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/domain/validation"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	"docverify/internal/verification/vision"
)

// ProviderID names this backend in errors, logs and metrics.
const ProviderID = "vertex"

const qualityInstruction = "Analyze this image and check document positioning and quality. " +
	`Answer each of "centered", "clear" and "fully_visible" with "yes" or "no".`

// generator is the slice of *genai.GenerativeModel the adapter needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Adapter is a VisionPort backed by three configured Gemini models sharing one
// client: a deterministic text classifier, a JSON extractor and a quality
// checker constrained by a response schema.
type Adapter struct {
	client     *genai.Client
	classifier generator
	extractor  generator
	quality    generator

	classifyInstruction string
	confidence          models.Confidence
	logger              *slog.Logger
}

var _ ports.VisionPort = (*Adapter)(nil)

// Option configures the Adapter.
type Option func(*Adapter)

// WithDefaultConfidence sets the confidence reported for extractions. The
// model API does not expose a usable score, so a fixed value is reported.
func WithDefaultConfidence(c models.Confidence) Option {
	return func(a *Adapter) { a.confidence = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New connects to Vertex AI and binds all three roles to modelName.
func New(ctx context.Context, projectID, region, modelName string, registry *document.Registry, opts ...Option) (*Adapter, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: project and region are required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("vertex: model name is required")
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	classifier := client.GenerativeModel(modelName)
	classifier.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	extractor := client.GenerativeModel(modelName)
	extractor.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	checker := client.GenerativeModel(modelName)
	checker.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   qualitySchema(),
		Temperature:      genai.Ptr[float32](0.0),
	}

	a := newAdapter(classifier, extractor, checker, registry, opts...)
	a.client = client
	return a, nil
}

func newAdapter(classifier, extractor, checker generator, registry *document.Registry, opts ...Option) *Adapter {
	a := &Adapter{
		classifier:          classifier,
		extractor:           extractor,
		quality:             checker,
		classifyInstruction: ClassificationInstruction(registry.Types()),
		confidence:          models.MustConfidence(0.92),
		logger:              logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) Classify(ctx context.Context, image []byte) (string, error) {
	text, err := a.generate(ctx, a.classifier, vision.OpClassify, image, a.classifyInstruction)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), `"'.`), nil
}

func (a *Adapter) Extract(ctx context.Context, image []byte, instruction string) (ports.Extraction, error) {
	text, err := a.generate(ctx, a.extractor, vision.OpExtract, image, instruction)
	if err != nil {
		return ports.Extraction{}, err
	}
	return ports.Extraction{
		Text:       validation.TrimCodeFence(text),
		Confidence: a.confidence,
	}, nil
}

func (a *Adapter) AssessQuality(ctx context.Context, image []byte) (quality.Assessment, error) {
	text, err := a.generate(ctx, a.quality, vision.OpAssessQuality, image, qualityInstruction)
	if err != nil {
		return quality.Assessment{}, err
	}
	assessment, err := quality.ParseAssessment(validation.TrimCodeFence(text))
	if err != nil {
		return quality.Assessment{}, vision.NewProviderError(vision.ErrorBadData, ProviderID, "quality response is not valid JSON", err)
	}
	return assessment, nil
}

func (a *Adapter) generate(ctx context.Context, model generator, op string, image []byte, instruction string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(instruction), genai.ImageData(ImageFormat(image), image))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	text, err := ResponseText(resp)
	if err != nil {
		a.logger.WarnContext(ctx, "empty model response", "operation", op, "error", err)
		return "", vision.NewProviderError(vision.ErrorBadData, ProviderID, op+" returned no text", err)
	}
	return text, nil
}

// ClassificationInstruction asks for exactly one token naming a known type.
func ClassificationInstruction(types []document.DocumentType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = "'" + t.String() + "'"
	}
	return "What kind of identity or proof-of-address document is shown in this image? " +
		"Respond with exactly one of " + strings.Join(names, ", ") +
		", or 'unknown' if it is none of them. Respond with the single word only."
}

// ImageFormat sniffs the image subtype passed to genai.ImageData, which
// prefixes it with "image/". Unrecognised content is sent as jpeg.
func ImageFormat(image []byte) string {
	contentType := http.DetectContentType(image)
	if sub, ok := strings.CutPrefix(contentType, "image/"); ok {
		return sub
	}
	return "jpeg"
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %s)", candidate.FinishReason)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("candidate has no text parts")
	}
	return b.String(), nil
}

func qualitySchema() *genai.Schema {
	flag := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeString,
			Description: desc,
			Enum:        []string{"yes", "no"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			quality.FlagCentered:     flag("Whether the document is properly centered (yes/no)"),
			quality.FlagClear:        flag("Whether the image is clear and not blurry (yes/no)"),
			quality.FlagFullyVisible: flag("Whether the entire document is visible (yes/no)"),
		},
		Required: []string{quality.FlagCentered, quality.FlagClear, quality.FlagFullyVisible},
	}
}
