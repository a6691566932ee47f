package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/domain/quality"
	"docverify/internal/verification/domain/validation"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	"docverify/internal/verification/ports/mocks"
	"docverify/pkg/requestcontext"
)

const licenseJSON = `{"full_name":"Jane Roe","date_of_birth":"1996-03-02","license_number":"D1234567","state":"CA","expiry_date":"2029-03-02"}`

var allYes = quality.Assessment{Centered: "yes", Clear: "yes", FullyVisible: "yes"}

type PipelineSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	vision   *mocks.MockVisionPort
	registry *document.Registry
	metrics  *metrics.Metrics
	pipeline *Pipeline
	ctx      context.Context
	image    []byte
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.vision = mocks.NewMockVisionPort(s.ctrl)
	s.registry = document.NewRegistry()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.pipeline = New(s.vision, s.registry, WithMetrics(s.metrics))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC))
	s.image = []byte("fake-image-bytes")
}

func (s *PipelineSuite) expectHappyPath(docType, raw string) {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(allYes, nil)
	s.vision.EXPECT().Classify(gomock.Any(), s.image).Return(docType, nil)
	prompt, _ := s.registry.ExtractionPrompt(document.ParseToken(docType))
	s.vision.EXPECT().Extract(gomock.Any(), s.image, prompt).
		Return(ports.Extraction{Text: raw, Confidence: models.MustConfidence(0.92)}, nil)
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func (s *PipelineSuite) TestValidLicenseSucceeds() {
	s.expectHappyPath("license", licenseJSON)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().True(res.IsSuccess(), "%+v", res.Failure)
	s.Equal(document.TypeLicense, res.Success.DocumentType)
	s.True(res.Success.Validation.IsValid)
	s.Empty(res.Success.Validation.MissingFields)
	s.Equal(allYes, res.Success.Quality)
	s.Equal(licenseJSON, res.Success.RawExtraction)
	s.Equal("Jane Roe", res.Success.Fields["full_name"])
	s.Equal(0.92, res.Success.Confidence.Value())
	s.True(res.Accepted())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues(models.StatusSuccess, "")))
}

func (s *PipelineSuite) TestBlurryImageFailsQualityGate() {
	blurry := quality.Assessment{Centered: "yes", Clear: "no", FullyVisible: "yes"}
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(blurry, nil)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageQuality, res.Failure.Stage)
	s.Equal(models.KindQuality, res.Failure.Kind)
	s.Equal(MsgQualityFailed, res.Failure.Message)
	s.Require().NotNil(res.Failure.QualityIssues)
	s.Equal(blurry, *res.Failure.QualityIssues)
	s.Equal("no", res.Failure.QualityIssues.Clear)
}

func (s *PipelineSuite) TestUnrecognizedTypeIsUnsupported() {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(allYes, nil)
	s.vision.EXPECT().Classify(gomock.Any(), s.image).Return("Invoice\n", nil)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageExtraction, res.Failure.Stage)
	s.Equal(models.KindUnsupportedType, res.Failure.Kind)
	s.Contains(res.Failure.Message, "unsupported document type")
	s.Contains(res.Failure.Message, "invoice")
	s.Equal(document.DocumentType("invoice"), res.Failure.DocumentType)
}

// =============================================================================
// Load stage
// =============================================================================

func (s *PipelineSuite) TestOversizeImageInvokesNoCapability() {
	// No expectations: any capability call fails the test.
	res := s.pipeline.Process(s.ctx, make([]byte, MaxImageBytes+1))

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageLoad, res.Failure.Stage)
	s.Equal(models.KindPrecondition, res.Failure.Kind)
	s.Equal(MsgImageTooLarge, res.Failure.Message)
}

func (s *PipelineSuite) TestImageAtCeilingIsAccepted() {
	image := make([]byte, MaxImageBytes)
	s.vision.EXPECT().AssessQuality(gomock.Any(), image).Return(quality.FailingAssessment(), nil)

	res := s.pipeline.Process(s.ctx, image)
	s.Equal(models.StageQuality, res.Failure.Stage)
}

func (s *PipelineSuite) TestEmptyImageIsRejected() {
	res := s.pipeline.Process(s.ctx, nil)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageLoad, res.Failure.Stage)
	s.Equal(MsgImageEmpty, res.Failure.Message)
}

// =============================================================================
// Capability errors
// =============================================================================

func (s *PipelineSuite) TestQualityCapabilityErrorFailsGate() {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(quality.Assessment{}, errors.New("model down"))

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.KindQuality, res.Failure.Kind)
	s.Equal(quality.FailingAssessment(), *res.Failure.QualityIssues)
}

func (s *PipelineSuite) TestClassificationErrorIsCapabilityFailure() {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(allYes, nil)
	s.vision.EXPECT().Classify(gomock.Any(), s.image).Return("", errors.New("rate limited"))

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageClassification, res.Failure.Stage)
	s.Equal(models.KindCapability, res.Failure.Kind)
	s.Equal("rate limited", res.Failure.Message)
}

func (s *PipelineSuite) TestExtractionErrorIsCapabilityFailure() {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(allYes, nil)
	s.vision.EXPECT().Classify(gomock.Any(), s.image).Return("passport", nil)
	s.vision.EXPECT().Extract(gomock.Any(), s.image, gomock.Any()).Return(ports.Extraction{}, errors.New("timeout"))

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageExtraction, res.Failure.Stage)
	s.Equal(models.KindCapability, res.Failure.Kind)
	s.Equal(document.TypePassport, res.Failure.DocumentType)
}

// =============================================================================
// Date check and validation
// =============================================================================

func (s *PipelineSuite) TestMinorFailsDateCheck() {
	raw := strings.Replace(licenseJSON, "1996-03-02", "2010-05-05", 1)
	s.expectHappyPath("license", raw)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageDateCheck, res.Failure.Stage)
	s.Equal(models.KindDate, res.Failure.Kind)
	s.Equal(MsgDateFailed, res.Failure.Message)
	s.Equal([]string{"age below minimum (18)"}, res.Failure.DateIssues)
}

func (s *PipelineSuite) TestMissingDateOfBirthFailsDateCheck() {
	s.expectHappyPath("passport", `{"full_name":"Jane Roe","passport_number":"X1"}`)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal([]string{validation.IssueInvalidDateFormat}, res.Failure.DateIssues)
}

func (s *PipelineSuite) TestUnparseableExtractionDefersToValidation() {
	s.expectHappyPath("license", "I could not read this document")

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().True(res.IsSuccess())
	s.Nil(res.Success.Fields)
	s.False(res.Success.Validation.IsValid)
	s.Equal(validation.ErrorMalformedData, res.Success.Validation.Error)
	s.False(res.Accepted())
}

func (s *PipelineSuite) TestMissingFieldsStillSucceed() {
	s.expectHappyPath("license", `{"full_name":"Jane Roe","date_of_birth":"1980-01-01"}`)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().True(res.IsSuccess())
	s.Equal([]string{"license_number", "state", "expiry_date"}, res.Success.Validation.MissingFields)
}

func (s *PipelineSuite) TestTypesWithoutDateOfBirthSkipDateCheck() {
	s.expectHappyPath("utility_bill", `{"full_name":"Jane Roe"}`)

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().True(res.IsSuccess(), "%+v", res.Failure)
	s.Equal(document.TypeUtilityBill, res.Success.DocumentType)
	s.False(res.Success.Validation.IsValid)
}

// =============================================================================
// Boundary guarantees
// =============================================================================

func (s *PipelineSuite) TestPanicIsRecovered() {
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(allYes, nil)
	s.vision.EXPECT().Classify(gomock.Any(), s.image).DoAndReturn(func(context.Context, []byte) (string, error) {
		panic("nil map write")
	})

	res := s.pipeline.Process(s.ctx, s.image)

	s.Require().False(res.IsSuccess())
	s.Equal(models.StageClassification, res.Failure.Stage)
	s.Equal(models.KindInternal, res.Failure.Kind)
	s.Contains(res.Failure.Message, "nil map write")
}

func (s *PipelineSuite) TestRepeatedRunsAreEquivalent() {
	s.expectHappyPath("license", licenseJSON)
	s.expectHappyPath("license", licenseJSON)

	first := s.pipeline.Process(s.ctx, s.image)
	second := s.pipeline.Process(s.ctx, s.image)

	s.True(first.Equivalent(second))
	diff := cmp.Diff(first, second,
		cmp.AllowUnexported(models.Confidence{}),
		cmpopts.IgnoreFields(models.Success{}, "Elapsed"),
	)
	s.Empty(diff)
}

func (s *PipelineSuite) TestElapsedIsMeasuredFromStart() {
	now := time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(250 * time.Millisecond)
		return now
	}
	p := New(s.vision, s.registry, WithClock(clock))
	s.vision.EXPECT().AssessQuality(gomock.Any(), s.image).Return(quality.FailingAssessment(), nil)

	res := p.Process(s.ctx, s.image)

	s.Positive(res.Elapsed())
	s.Equal(res.Failure.Elapsed, res.Elapsed())
}
