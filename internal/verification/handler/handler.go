// Package handler exposes verifications over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docverify/internal/verification/models"
	"docverify/internal/verification/pipeline"
	"docverify/internal/verification/service"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

// maxUploadBytes lets exactly one byte past the image ceiling through so the
// pipeline, not the transport, reports an oversize image.
const maxUploadBytes = pipeline.MaxImageBytes + 1

// imageField is the multipart form field carrying the image.
const imageField = "image"

// Service defines the verification operations the handler needs.
type Service interface {
	Verify(ctx context.Context, req service.VerifyRequest) (*models.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListBySubject(ctx context.Context, limit int) ([]*models.Record, error)
}

// Handler handles verification endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	auth    func(http.Handler) http.Handler
}

// New creates a Handler. auth guards every route; pass nil for open access.
func New(svc Service, logger *slog.Logger, auth func(http.Handler) http.Handler) *Handler {
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: svc, logger: logger, auth: auth}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/verifications", func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/", h.handleVerify)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
}

// listResponse wraps a page of records.
type listResponse struct {
	Verifications []*models.Record `json:"verifications"`
}

// handleVerify accepts a raw image body or a multipart form with an "image"
// file field. Both a Success and a Failure result are answered with 200.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	image, filename, err := readImage(r)
	if err != nil {
		h.logger.WarnContext(ctx, "unreadable verification request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body must be an image or a multipart form with an image field"))
		return
	}

	record, err := h.service.Verify(ctx, service.VerifyRequest{Image: image, Filename: filename})
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := h.service.ListBySubject(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Verifications: records})
}

var errNoImagePart = errors.New("multipart form has no image field")

// readImage reads at most maxUploadBytes of image data from the request.
func readImage(r *http.Request) ([]byte, string, error) {
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		image, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			return nil, "", fmt.Errorf("read body: %w", err)
		}
		return image, r.URL.Query().Get("filename"), nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, "", fmt.Errorf("multipart body without boundary")
	}
	mr := multipart.NewReader(r.Body, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errNoImagePart
		}
		if err != nil {
			return nil, "", fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != imageField {
			_ = part.Close()
			continue
		}
		image, err := io.ReadAll(io.LimitReader(part, maxUploadBytes))
		_ = part.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read image part: %w", err)
		}
		return image, part.FileName(), nil
	}
}
