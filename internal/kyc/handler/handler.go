// Package handler exposes the KYC lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"unikyc/internal/kyc/models"
	"unikyc/internal/kyc/service"
	"unikyc/internal/platform/metrics"
	"unikyc/internal/platform/middleware"
	"unikyc/internal/ratelimit"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/httputil"
	adminmw "unikyc/pkg/platform/middleware/admin"
	authmw "unikyc/pkg/platform/middleware/auth"
	"unikyc/pkg/platform/middleware/metadata"
	request "unikyc/pkg/platform/middleware/request"
	"unikyc/pkg/platform/middleware/requesttime"
	"unikyc/pkg/requestcontext"
)

// Service is the lifecycle engine as seen by the HTTP layer.
type Service interface {
	CheckStatus(ctx context.Context, identifier string) (*service.StatusResult, error)
	SubmitVerification(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	Approve(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	Reject(ctx context.Context, recordID id.RecordID, reason string) (*models.Record, error)
	ReadPayload(ctx context.Context, recordID id.RecordID, shares [][]byte) ([]byte, error)
	GetRecord(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	History(ctx context.Context, identifier string) ([]*models.Record, error)
	UnlockEstimate(ctx context.Context, identifier string) (*service.UnlockEstimate, error)
}

type Handler struct {
	kyc          Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator authmw.JWTValidator
	adminToken   string
	timeout      time.Duration
	statusLimit  *ratelimit.Limiter
}

type Option func(*Handler)

// WithStatusLimiter throttles the public status route per client IP.
func WithStatusLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) { h.statusLimit = l }
}

func New(kyc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator authmw.JWTValidator, adminToken string, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		kyc:          kyc,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
		timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the KYC routes. Status checks are public; everything an
// account does to its own record needs a bearer token; operator decisions
// need the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(request.RequestID)
		r.Use(requesttime.Middleware)
		r.Use(metadata.ClientMetadata)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))

		r.With(ratelimit.PerIP(h.statusLimit, h.logger)).Post("/v1/kyc/status", h.handleCheckStatus)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
			r.Post("/v1/kyc/submissions", h.handleSubmit)
			r.Post("/v1/kyc/history", h.handleHistory)
			r.Post("/v1/kyc/unlock-estimate", h.handleUnlockEstimate)
			r.Get("/v1/kyc/records/{recordID}", h.handleGetRecord)
			r.Post("/v1/kyc/records/{recordID}/payload", h.handleReadPayload)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
			r.Get("/admin/kyc/records/{recordID}", h.handleGetRecord)
			r.Post("/admin/kyc/records/{recordID}/approve", h.handleApprove)
			r.Post("/admin/kyc/records/{recordID}/reject", h.handleReject)
		})
	})
}

func (h *Handler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req identifierRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.kyc.CheckStatus(ctx, req.Identifier)
	if err != nil {
		h.fail(ctx, w, "check status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := submitRequest{subject: requestcontext.Subject(ctx)}
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.kyc.SubmitVerification(ctx, req.toService())
	if err != nil {
		h.fail(ctx, w, "submit verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, submitResponse{Record: result.Record, Shares: result.Shares})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := identifierRequest{subject: requestcontext.Subject(ctx)}
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.kyc.History(ctx, req.Identifier)
	if err != nil {
		h.fail(ctx, w, "list history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{Records: records})
}

func (h *Handler) handleUnlockEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := identifierRequest{subject: requestcontext.Subject(ctx)}
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	estimate, err := h.kyc.UnlockEstimate(ctx, req.Identifier)
	if err != nil {
		h.fail(ctx, w, "unlock estimate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, estimate)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := recordIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.kyc.GetRecord(ctx, recordID)
	if err != nil {
		h.fail(ctx, w, "get record", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReadPayload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := recordIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req payloadRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.kyc.ReadPayload(ctx, recordID, req.shares)
	if err != nil {
		h.fail(ctx, w, "read payload", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, payloadResponse{RecordID: recordID.String(), Payload: payload})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := recordIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.kyc.Approve(ctx, recordID)
	if err != nil {
		h.fail(ctx, w, "approve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := recordIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req rejectRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.kyc.Reject(ctx, recordID, req.Reason)
	if err != nil {
		h.fail(ctx, w, "reject", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// fail logs server-side faults at error level and caller mistakes at warn,
// then renders the coded error.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"op", op,
		"request_id", request.GetRequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "kyc request failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "kyc request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func recordIDParam(r *http.Request) (id.RecordID, error) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		return id.RecordID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid record id")
	}
	return recordID, nil
}
