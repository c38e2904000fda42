package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Resolver,ContentStore,Coordinator,ComplianceAuditor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"unikyc/internal/cipher"
	identity "unikyc/internal/identity/models"
	"unikyc/internal/kyc/models"
	"unikyc/internal/kyc/service/mocks"
	kycmemory "unikyc/internal/kyc/store/memory"
	"unikyc/internal/kyc/store/storetest"
	"unikyc/internal/storage"
	tlmodels "unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

// CollaboratorSuite isolates the engine from its collaborators to exercise
// failures the in-process adapters cannot produce on demand.
type CollaboratorSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	resolver    *mocks.MockResolver
	content     *mocks.MockContentStore
	coordinator *mocks.MockCoordinator
	compliance  *mocks.MockComplianceAuditor
	store       *kycmemory.Store
	svc         *Service
	ctx         context.Context
	now         time.Time
	alice       identity.CanonicalIdentifier
	blobs       map[string][]byte
}

func TestCollaboratorSuite(t *testing.T) {
	suite.Run(t, new(CollaboratorSuite))
}

func (s *CollaboratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.content = mocks.NewMockContentStore(s.ctrl)
	s.coordinator = mocks.NewMockCoordinator(s.ctrl)
	s.compliance = mocks.NewMockComplianceAuditor(s.ctrl)
	s.store = kycmemory.New()
	s.svc = New(s.store, s.resolver, cipher.New(), s.content, s.coordinator,
		WithComplianceAuditor(s.compliance),
	)
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.alice = identity.CanonicalIdentifier{Address: aliceAddr, Name: "alice.eth"}
	s.blobs = make(map[string][]byte)
}

func (s *CollaboratorSuite) request() SubmitRequest {
	return SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		Scheme:            cipher.Scheme{TotalShares: 3, RequiredShares: 2},
		UnlockBlockHeight: 1100,
	}
}

func (s *CollaboratorSuite) putBlob(_ context.Context, data []byte) (cid.Cid, error) {
	ref, err := storage.ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	s.blobs[ref.String()] = data
	return ref, nil
}

func (s *CollaboratorSuite) getBlob(_ context.Context, ref cid.Cid) ([]byte, error) {
	data, ok := s.blobs[ref.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return data, nil
}

func (s *CollaboratorSuite) stillRegistered() {
	s.coordinator.EXPECT().QueryUnlockState(gomock.Any(), gomock.Any()).
		Return(tlmodels.UnlockState{State: tlmodels.StateRegistered}, nil)
}

func (s *CollaboratorSuite) TestContentStoreOutage() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).Return(cid.Undef, sentinel.ErrUnavailable)

	_, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	s.True(dErrors.IsRetryable(err))

	_, err = s.store.Current(s.ctx, aliceAddr)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CollaboratorSuite) TestCancelledBeforeRegistration() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, data []byte) (cid.Cid, error) {
		cancel()
		return s.putBlob(ctx, data)
	})
	// RegisterUnlock must not be reached.

	_, err := s.svc.SubmitVerification(ctx, s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	_, err = s.store.Current(s.ctx, aliceAddr)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CollaboratorSuite) TestRegistersStoredCiphertext() {
	var stored []byte
	var storedRef cid.Cid
	requestID := id.NewUnlockRequestID()

	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, data []byte) (cid.Cid, error) {
		stored = data
		ref, err := s.putBlob(ctx, data)
		storedRef = ref
		return ref, err
	})
	s.coordinator.EXPECT().
		RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), uint64(1100), uint64(defaultGasBudget)).
		DoAndReturn(func(_ context.Context, ref string, ciphertext []byte, _, _ uint64) (id.UnlockRequestID, error) {
			s.Equal(storedRef.String(), ref)
			s.Equal(stored, ciphertext)
			return requestID, nil
		})
	s.stillRegistered()

	res, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.Require().NoError(err)
	s.Equal(storedRef.String(), res.Record.EncryptedPayloadRef)
	s.Equal(requestID, res.Record.TimeLock.RequestID)

	digests, err := cipher.ParseDigests(res.Record.Scheme.ShareDigests)
	s.Require().NoError(err)
	plaintext, err := cipher.New().Decrypt(stored, res.Shares[:2],
		cipher.ThresholdScheme{Scheme: s.request().Scheme, ShareDigests: digests})
	s.Require().NoError(err)
	s.Equal(alicePayload, plaintext)
}

func (s *CollaboratorSuite) TestReleaseAcceptedBeforeRecordPersisted() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(s.putBlob)
	requestID := id.NewUnlockRequestID()
	s.coordinator.EXPECT().RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ []byte, _, _ uint64) (id.UnlockRequestID, error) {
			// The network calls back before the record is written.
			s.NoError(s.svc.HandleUnlockCallback(ctx, requestID, []byte("material")))
			return requestID, nil
		})
	s.coordinator.EXPECT().OnUnlockCallback(gomock.Any(), requestID, []byte("material")).
		Return(tlmodels.OutcomeDecrypted, nil)
	s.coordinator.EXPECT().QueryUnlockState(gomock.Any(), requestID).
		Return(tlmodels.UnlockState{RequestID: requestID, State: tlmodels.StateDecrypted, Unlocked: true}, nil)

	res, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.Require().NoError(err)
	s.True(res.Record.TimeLock.Decrypted)

	stored, err := s.store.FindByID(s.ctx, res.Record.ID)
	s.Require().NoError(err)
	s.True(stored.TimeLock.Decrypted)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *CollaboratorSuite) TestReconciliationFailureKeepsSubmission() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(s.putBlob)
	s.coordinator.EXPECT().RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.NewUnlockRequestID(), nil)
	s.coordinator.EXPECT().QueryUnlockState(gomock.Any(), gomock.Any()).
		Return(tlmodels.UnlockState{}, dErrors.New(dErrors.CodeUnavailable, "request store down"))

	res, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.Require().NoError(err)
	s.False(res.Record.TimeLock.Decrypted)
}

func (s *CollaboratorSuite) TestConcurrentSubmissionConflicts() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(s.putBlob)
	s.coordinator.EXPECT().RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ []byte, _, _ uint64) (id.UnlockRequestID, error) {
			// Another submission wins while this one is registering.
			s.Require().NoError(s.store.CreateSuperseding(ctx, storetest.NewRecord(s.T(), aliceAddr, s.now), nil))
			return id.NewUnlockRequestID(), nil
		})

	_, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	history, err := s.store.ListByAddress(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *CollaboratorSuite) TestRegistrationFailurePropagates() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(s.putBlob)
	s.coordinator.EXPECT().RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.UnlockRequestID{}, dErrors.New(dErrors.CodeRegistrationFailed, "network down"))

	_, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeRegistrationFailed))

	_, err = s.store.Current(s.ctx, aliceAddr)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CollaboratorSuite) TestResolutionFailureStopsEarly() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").
		Return(identity.CanonicalIdentifier{}, dErrors.New(dErrors.CodeResolutionAmbiguous, "ambiguous"))

	_, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.True(dErrors.HasCode(err, dErrors.CodeResolutionAmbiguous))
}

func (s *CollaboratorSuite) TestPayloadReadRequiresComplianceRecord() {
	res := s.approvedAndReleased()
	s.content.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(s.getBlob).Times(2)

	s.compliance.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))
	payload, err := s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[:2])
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Nil(payload)

	s.compliance.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event audit.Event) error {
		s.Equal(string(audit.EventPayloadRead), event.Action)
		s.Equal(audit.CategoryCompliance, event.Category)
		s.Equal(res.Record.ID.String(), event.RecordID)
		s.Equal(aliceAddr.String(), event.Subject)
		return nil
	})
	payload, err = s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[1:])
	s.Require().NoError(err)
	s.Equal(alicePayload, payload)
}

func (s *CollaboratorSuite) TestPayloadReadContentStoreOutage() {
	res := s.approvedAndReleased()
	ref := mustCID(s.T(), res.Record.EncryptedPayloadRef)

	s.content.EXPECT().Get(gomock.Any(), ref).Return(nil, fmt.Errorf("%w: s3 timeout", sentinel.ErrUnavailable))
	payload, err := s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[:2])
	s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable), "got %v", err)
	s.True(dErrors.IsRetryable(err))
	s.Nil(payload)
}

func (s *CollaboratorSuite) TestPayloadReadMissingCiphertext() {
	res := s.approvedAndReleased()

	s.content.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	_, err := s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[:2])
	s.True(dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)
	s.False(dErrors.IsRetryable(err))
}

func (s *CollaboratorSuite) TestDecisionAuditFailureDoesNotUndoApproval() {
	res := s.submitted()
	s.compliance.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))

	rec, err := s.svc.Approve(s.ctx, res.Record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, rec.Status)
}

func (s *CollaboratorSuite) TestCallbackForRecordlessRequest() {
	requestID := id.NewUnlockRequestID()
	s.coordinator.EXPECT().OnUnlockCallback(gomock.Any(), requestID, []byte("m")).Return(tlmodels.OutcomeDecrypted, nil)

	s.NoError(s.svc.HandleUnlockCallback(s.ctx, requestID, []byte("m")))
}

func (s *CollaboratorSuite) submitted() *SubmitResult {
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice.eth").Return(s.alice, nil)
	s.content.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(s.putBlob)
	s.coordinator.EXPECT().RegisterUnlock(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(id.NewUnlockRequestID(), nil)
	s.stillRegistered()
	res, err := s.svc.SubmitVerification(s.ctx, s.request())
	s.Require().NoError(err)
	return res
}

func (s *CollaboratorSuite) approvedAndReleased() *SubmitResult {
	res := s.submitted()
	s.compliance.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	_, err := s.svc.Approve(s.ctx, res.Record.ID)
	s.Require().NoError(err)

	s.coordinator.EXPECT().OnUnlockCallback(gomock.Any(), res.Record.TimeLock.RequestID, gomock.Any()).
		Return(tlmodels.OutcomeDecrypted, nil)
	s.Require().NoError(s.svc.HandleUnlockCallback(s.ctx, res.Record.TimeLock.RequestID, []byte("material")))
	return res
}
