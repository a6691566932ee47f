package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docverify/internal/platform/logger"
	"docverify/internal/verification/models"
	"docverify/internal/verification/service"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

type fakeService struct {
	verifyReq  service.VerifyRequest
	verifyErr  error
	record     *models.Record
	getErr     error
	listLimit  int
	listErr    error
	verifyHits int
}

func (f *fakeService) Verify(_ context.Context, req service.VerifyRequest) (*models.Record, error) {
	f.verifyHits++
	f.verifyReq = req
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.record, nil
}

func (f *fakeService) Get(_ context.Context, id uuid.UUID) (*models.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.record == nil || f.record.ID != id {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "verification not found")
	}
	return f.record, nil
}

func (f *fakeService) ListBySubject(_ context.Context, limit int) ([]*models.Record, error) {
	f.listLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []*models.Record{f.record}, nil
}

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{record: &models.Record{
		ID:          uuid.MustParse("6f1c2a52-3f0e-4ad4-9b52-2f8e7f3b9a10"),
		ImageDigest: "abc",
		Result: models.NewFailure(models.Failure{
			Stage:   models.StageLoad,
			Kind:    models.KindPrecondition,
			Message: "image exceeds maximum size of 20 MiB",
		}),
		CreatedAt: time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC),
	}}
	s.router = chi.NewRouter()
	New(s.service, logger.Discard(), nil).Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

// =============================================================================
// POST /v1/verifications
// =============================================================================

func (s *HandlerSuite) TestRawBodyIsVerified() {
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications/?filename=id.png", bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Content-Type", "image/png")

	rec := s.do(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]byte("png-bytes"), s.service.verifyReq.Image)
	s.Equal("id.png", s.service.verifyReq.Filename)

	body := decode(s.T(), rec.Body)
	s.Equal("6f1c2a52-3f0e-4ad4-9b52-2f8e7f3b9a10", body["id"])
	result, ok := body["result"].(map[string]any)
	s.Require().True(ok)
	s.Equal("error", result["status"], "a failed verification is still a 200")
	s.Equal("load", result["stage"])
}

func (s *HandlerSuite) TestMultipartImageField() {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("note", "ignored"))
	part, err := mw.CreateFormFile("image", "license.jpg")
	s.Require().NoError(err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/verifications/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]byte("jpeg-bytes"), s.service.verifyReq.Image)
	s.Equal("license.jpg", s.service.verifyReq.Filename)
}

func (s *HandlerSuite) TestMultipartWithoutImageIsBadRequest() {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("note", "no image here"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/verifications/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(0, s.service.verifyHits)
	s.Equal("bad_request", decode(s.T(), rec.Body)["error"])
}

func (s *HandlerSuite) TestOversizeBodyIsTruncatedOnePastCeiling() {
	body := bytes.Repeat([]byte{0xff}, maxUploadBytes+1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications/", bytes.NewReader(body))

	rec := s.do(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.service.verifyReq.Image, maxUploadBytes)
}

func (s *HandlerSuite) TestServiceErrorIsMapped() {
	s.service.verifyErr = dErrors.New(dErrors.CodeInternal, "failed to save verification")
	req := httptest.NewRequest(http.MethodPost, "/v1/verifications/", bytes.NewReader([]byte("img")))

	rec := s.do(req)

	s.Equal(http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// GET /v1/verifications
// =============================================================================

func (s *HandlerSuite) TestGetKnownRecord() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/verifications/6f1c2a52-3f0e-4ad4-9b52-2f8e7f3b9a10", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("abc", decode(s.T(), rec.Body)["image_digest"])
}

func (s *HandlerSuite) TestGetUnknownRecordIs404() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/verifications/"+uuid.NewString(), nil))
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", decode(s.T(), rec.Body)["error"])
}

func (s *HandlerSuite) TestGetMalformedIDIs400() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/verifications/not-a-uuid", nil))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestListPassesLimit() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/verifications/?limit=5", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(5, s.service.listLimit)

	body := decode(s.T(), rec.Body)
	s.Len(body["verifications"], 1)
}

func (s *HandlerSuite) TestListRejectsBadLimit() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/verifications/?limit=-1", nil))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func TestAuthMiddlewareGuardsRoutes(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := chi.NewRouter()
	svc := &fakeService{}
	New(svc, logger.Discard(), deny).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/verifications/", bytes.NewReader([]byte("img"))))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, svc.verifyHits)
}
