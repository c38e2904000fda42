package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"unikyc/internal/cipher"
	identity "unikyc/internal/identity/models"
	"unikyc/internal/kyc/handler/mocks"
	"unikyc/internal/kyc/models"
	"unikyc/internal/kyc/service"
	"unikyc/internal/ratelimit"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	authmw "unikyc/pkg/platform/middleware/auth"
	"unikyc/pkg/requestcontext"
	"unikyc/pkg/testutil"
)

const (
	aliceAddr  = id.Address("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	aliceToken = "alice-token"
	adminToken = "operator-secret"
)

type staticValidator map[string]string

func (v staticValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	subject, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &authmw.JWTClaims{Subject: subject}, nil
}

func newRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, nil, nil, staticValidator{aliceToken: aliceAddr.String()}, adminToken).Register(r)
	return r, svc
}

func pendingRecord() *models.Record {
	return &models.Record{
		ID:         id.NewRecordID(),
		Identifier: identity.CanonicalIdentifier{Address: aliceAddr, Name: "alice.eth"},
		Status:     models.StatusPending,
		CreatedAt:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Scheme:     models.Scheme{TotalShares: 3, RequiredShares: 2, ShareDigests: []string{"a", "b", "c"}},
		TimeLock:   &models.TimeLock{UnlockBlockHeight: 1100, RequestID: id.NewUnlockRequestID()},
	}
}

func TestCheckStatus(t *testing.T) {
	testutil.Given(t, "a public status request", func(t *testing.T) {
		testutil.When(t, "the identifier has an active record", func(t *testing.T) {
			router, svc := newRouter(t)
			expiry := time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)
			svc.EXPECT().CheckStatus(gomock.Any(), "alice.eth").Return(&service.StatusResult{
				Address:    aliceAddr,
				Name:       "alice.eth",
				HasKyc:     true,
				Status:     models.StatusActive,
				ExpiryDate: &expiry,
			}, nil)

			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/status",
				map[string]string{"identifier": " alice.eth "}))

			testutil.Then(t, "the evaluated status is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "has_kyc", true)
				testutil.AssertJSONContains(t, rr, "name", "alice.eth")
				testutil.AssertJSONContains(t, rr, "status", "active")
				testutil.AssertJSONContains(t, rr, "expiry_date", "2027-06-01T12:00:00Z")
				assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
			})
		})

		testutil.When(t, "the identifier is missing", func(t *testing.T) {
			router, _ := newRouter(t)
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/status", map[string]string{}))

			testutil.Then(t, "it is a bad request", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, dErrors.CodeBadRequest)
			})
		})

		testutil.When(t, "the name is ambiguous", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().CheckStatus(gomock.Any(), "alice.eth").
				Return(nil, dErrors.New(dErrors.CodeResolutionAmbiguous, "ambiguous"))
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/status",
				map[string]string{"identifier": "alice.eth"}))

			testutil.Then(t, "the stable code is rendered", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, dErrors.CodeResolutionAmbiguous)
			})
		})
	})
}

func TestCheckStatus_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, nil, nil, staticValidator{}, adminToken, WithStatusLimiter(ratelimit.New(1, time.Minute))).Register(r)

	svc.EXPECT().CheckStatus(gomock.Any(), "alice.eth").Return(&service.StatusResult{Status: models.StatusNone}, nil)

	body := map[string]string{"identifier": "alice.eth"}
	first := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/status", body))
	testutil.AssertStatusOK(t, first)

	second := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/status", body))
	testutil.AssertStatus(t, second, http.StatusTooManyRequests)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestSubmit(t *testing.T) {
	body := map[string]any{
		"payload":             []byte("passport"),
		"total_shares":        3,
		"required_shares":     2,
		"unlock_block_height": 1100,
	}

	testutil.Given(t, "no bearer token", func(t *testing.T) {
		router, _ := newRouter(t)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/submissions", body))

		testutil.Then(t, "the submission is unauthorized", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, dErrors.CodeUnauthorized)
		})
	})

	testutil.Given(t, "an authenticated account", func(t *testing.T) {
		testutil.When(t, "the identifier is omitted", func(t *testing.T) {
			router, svc := newRouter(t)
			rec := pendingRecord()
			svc.EXPECT().SubmitVerification(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
					assert.Equal(t, aliceAddr.String(), req.Identifier)
					assert.Equal(t, aliceAddr, requestcontext.Subject(ctx))
					assert.Equal(t, []byte("passport"), req.Payload)
					assert.Equal(t, cipher.Scheme{TotalShares: 3, RequiredShares: 2}, req.Scheme)
					assert.Equal(t, uint64(1100), req.UnlockBlockHeight)
					return &service.SubmitResult{Record: rec, Shares: [][]byte{[]byte("s1"), []byte("s2"), []byte("s3")}}, nil
				})

			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/submissions", body), aliceToken)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the caller's own address is submitted", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
				resp := testutil.UnmarshalResponse[submitResponse](t, rr)
				require.NotNil(t, resp.Record)
				assert.Equal(t, rec.ID, resp.Record.ID)
				assert.Len(t, resp.Shares, 3)
			})
		})

		testutil.When(t, "a submission is already pending", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().SubmitVerification(gomock.Any(), gomock.Any()).
				Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "a verification is already pending"))

			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/submissions", body), aliceToken)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it conflicts", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, dErrors.CodeInvalidTransition)
			})
		})

		testutil.When(t, "content storage is down", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().SubmitVerification(gomock.Any(), gomock.Any()).
				Return(nil, dErrors.New(dErrors.CodeStorageUnavailable, "failed to store encrypted payload"))

			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/submissions", body), aliceToken)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the caller is told to retry", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, dErrors.CodeStorageUnavailable)
				assert.NotEmpty(t, rr.Header().Get("Retry-After"))
			})
		})
	})
}

func TestReadPayload(t *testing.T) {
	recordID := id.NewRecordID()
	path := "/v1/kyc/records/" + recordID.String() + "/payload"
	body := map[string]any{"shares": [][]byte{[]byte("s1"), []byte("s2")}}

	testutil.Given(t, "an authenticated account", func(t *testing.T) {
		testutil.When(t, "the time-lock is released", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().ReadPayload(gomock.Any(), recordID, [][]byte{[]byte("s1"), []byte("s2")}).Return([]byte("passport"), nil)

			rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, path, body), aliceToken))

			testutil.Then(t, "the payload is returned uncached", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[payloadResponse](t, rr)
				assert.Equal(t, []byte("passport"), resp.Payload)
				assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			})
		})

		testutil.When(t, "the time-lock is still closed", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().ReadPayload(gomock.Any(), recordID, gomock.Any()).
				Return(nil, dErrors.New(dErrors.CodeNotDecryptable, "time-lock has not been released"))

			rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, path, body), aliceToken))

			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, dErrors.CodeNotDecryptable)
			})
		})

		testutil.When(t, "the record id is malformed", func(t *testing.T) {
			router, _ := newRouter(t)
			rr := testutil.DoRequest(router, testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/records/not-a-uuid/payload", body), aliceToken))

			testutil.Then(t, "it is a bad request", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, dErrors.CodeBadRequest)
			})
		})
	})
}

func TestOperatorDecisions(t *testing.T) {
	rec := pendingRecord()
	approvePath := "/admin/kyc/records/" + rec.ID.String() + "/approve"
	rejectPath := "/admin/kyc/records/" + rec.ID.String() + "/reject"

	testutil.Given(t, "a request without the admin token", func(t *testing.T) {
		router, _ := newRouter(t)
		rr := testutil.DoRequest(router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, approvePath, nil), aliceToken))

		testutil.Then(t, "account tokens do not grant operator access", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, dErrors.CodeUnauthorized)
		})
	})

	testutil.Given(t, "an operator", func(t *testing.T) {
		testutil.When(t, "they approve a pending record", func(t *testing.T) {
			router, svc := newRouter(t)
			approved := *rec
			approved.Status = models.StatusActive
			svc.EXPECT().Approve(gomock.Any(), rec.ID).Return(&approved, nil)

			rr := testutil.DoRequest(router, testutil.WithAdminToken(testutil.NewJSONRequest(t, http.MethodPost, approvePath, nil), adminToken))

			testutil.Then(t, "the active record is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "active")
			})
		})

		testutil.When(t, "they approve a rejected record", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().Approve(gomock.Any(), rec.ID).
				Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot approve a record that is rejected"))

			rr := testutil.DoRequest(router, testutil.WithAdminToken(testutil.NewJSONRequest(t, http.MethodPost, approvePath, nil), adminToken))

			testutil.Then(t, "the transition is refused", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, dErrors.CodeInvalidTransition)
			})
		})

		testutil.When(t, "they reject without a reason", func(t *testing.T) {
			router, _ := newRouter(t)
			rr := testutil.DoRequest(router, testutil.WithAdminToken(
				testutil.NewJSONRequest(t, http.MethodPost, rejectPath, map[string]string{"reason": "  "}), adminToken))

			testutil.Then(t, "a reason is required", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, dErrors.CodeBadRequest)
			})
		})

		testutil.When(t, "they reject with a reason", func(t *testing.T) {
			router, svc := newRouter(t)
			rejected := *rec
			rejected.Status = models.StatusRejected
			rejected.RejectionReason = "document expired"
			svc.EXPECT().Reject(gomock.Any(), rec.ID, "document expired").Return(&rejected, nil)

			rr := testutil.DoRequest(router, testutil.WithAdminToken(
				testutil.NewJSONRequest(t, http.MethodPost, rejectPath, map[string]string{"reason": "document expired"}), adminToken))

			testutil.Then(t, "the rejected record is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "rejection_reason", "document expired")
			})
		})
	})
}

func TestHistoryAndEstimate(t *testing.T) {
	testutil.Given(t, "an authenticated account", func(t *testing.T) {
		testutil.When(t, "it lists its history", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().History(gomock.Any(), aliceAddr.String()).Return([]*models.Record{pendingRecord()}, nil)

			rr := testutil.DoRequest(router, testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/history", map[string]string{}), aliceToken))

			testutil.Then(t, "records are returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[historyResponse](t, rr)
				assert.Len(t, resp.Records, 1)
			})
		})

		testutil.When(t, "it asks for another account's unlock estimate", func(t *testing.T) {
			router, svc := newRouter(t)
			svc.EXPECT().UnlockEstimate(gomock.Any(), "bob.eth").
				Return(nil, dErrors.New(dErrors.CodeForbidden, "record belongs to another account"))

			rr := testutil.DoRequest(router, testutil.WithBearer(
				testutil.NewJSONRequest(t, http.MethodPost, "/v1/kyc/unlock-estimate", map[string]string{"identifier": "bob.eth"}), aliceToken))

			testutil.Then(t, "it is forbidden", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, dErrors.CodeForbidden)
			})
		})
	})
}
