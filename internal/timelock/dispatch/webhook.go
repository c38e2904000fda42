package dispatch

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"unikyc/internal/timelock/metrics"
	"unikyc/internal/timelock/ports"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/httputil"
	request "unikyc/pkg/platform/middleware/request"
	"unikyc/pkg/requestcontext"
)

const webhookTokenHeader = "X-Webhook-Token"

// SecurityAuditor records rejected webhook calls.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// Webhook accepts unlock callbacks over HTTP, authenticated by a shared token.
type Webhook struct {
	handler  ports.CallbackHandler
	token    string
	logger   *slog.Logger
	security SecurityAuditor
	metrics  *metrics.Metrics
}

func NewWebhook(handler ports.CallbackHandler, token string, logger *slog.Logger, security SecurityAuditor, m *metrics.Metrics) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{handler: handler, token: token, logger: logger, security: security, metrics: m}
}

func (h *Webhook) Register(r chi.Router) {
	r.Post("/v1/timelock/callbacks", h.HandleCallback)
}

type callbackRequest struct {
	RequestID string `json:"request_id"`
	Material  string `json:"material"`

	requestID id.UnlockRequestID
	material  []byte
}

func (r *callbackRequest) Normalize() {
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.Material = strings.TrimSpace(r.Material)
}

func (r *callbackRequest) Validate() error {
	requestID, err := id.ParseUnlockRequestID(r.RequestID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request_id")
	}
	material, err := base64.StdEncoding.DecodeString(r.Material)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "material must be base64")
	}
	r.requestID = requestID
	r.material = material
	return nil
}

type callbackResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (h *Webhook) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorized(r) {
		h.logger.WarnContext(ctx, "unlock webhook rejected",
			"log_type", "integrity",
			"request_id", request.GetRequestID(ctx),
		)
		if h.security != nil {
			event := audit.NewEvent(audit.EventWebhookRejected, requestcontext.Now(ctx))
			event.Reason = "invalid webhook token"
			h.security.Emit(ctx, event)
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "webhook token required"))
		return
	}

	var req callbackRequest
	if err := httputil.DecodeAndPrepare(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncDelivery("webhook")
	}
	if err := h.handler.HandleUnlockCallback(ctx, req.requestID, req.material); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, callbackResponse{RequestID: req.requestID.String(), Status: "processed"})
}

func (h *Webhook) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	got := r.Header.Get(webhookTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
