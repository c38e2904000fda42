package dispatch

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"unikyc/internal/timelock/ports/mocks"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/testutil"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func newRouter(t *testing.T) (http.Handler, *mocks.MockCallbackHandler, *recordingAuditor) {
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockCallbackHandler(ctrl)
	auditor := &recordingAuditor{}
	r := chi.NewRouter()
	NewWebhook(handler, "s3cret", nil, auditor, nil).Register(r)
	return r, handler, auditor
}

func TestWebhook(t *testing.T) {
	requestID := id.NewUnlockRequestID()
	body := map[string]string{
		"request_id": requestID.String(),
		"material":   base64.StdEncoding.EncodeToString([]byte("material")),
	}

	testutil.Given(t, "a valid token", func(t *testing.T) {
		testutil.When(t, "the callback is well formed", func(t *testing.T) {
			router, handler, _ := newRouter(t)
			handler.EXPECT().HandleUnlockCallback(gomock.Any(), requestID, []byte("material")).Return(nil)

			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/timelock/callbacks", body)
			req.Header.Set(webhookTokenHeader, "s3cret")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is processed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "processed")
			})
		})

		testutil.When(t, "the request is unknown", func(t *testing.T) {
			router, handler, _ := newRouter(t)
			handler.EXPECT().HandleUnlockCallback(gomock.Any(), requestID, gomock.Any()).
				Return(dErrors.New(dErrors.CodeUnknownRequest, "unknown unlock request"))

			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/timelock/callbacks", body)
			req.Header.Set(webhookTokenHeader, "s3cret")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is a 404", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, dErrors.CodeUnknownRequest)
			})
		})

		testutil.When(t, "the material is not base64", func(t *testing.T) {
			router, _, _ := newRouter(t)
			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/timelock/callbacks",
				map[string]string{"request_id": requestID.String(), "material": "%%%"})
			req.Header.Set(webhookTokenHeader, "s3cret")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is a bad request", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusBadRequest)
			})
		})
	})

	testutil.Given(t, "a wrong token", func(t *testing.T) {
		router, _, auditor := newRouter(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/timelock/callbacks", body)
		req.Header.Set(webhookTokenHeader, "guess")
		rr := testutil.DoRequest(router, req)

		testutil.Then(t, "it is rejected and audited", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, dErrors.CodeUnauthorized)
			assert.Len(t, auditor.events, 1)
			assert.Equal(t, string(audit.EventWebhookRejected), auditor.events[0].Action)
		})
	})
}
