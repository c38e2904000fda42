package service

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/suite"

	"unikyc/internal/cipher"
	"unikyc/internal/identity/adapters/static"
	"unikyc/internal/identity/resolver"
	"unikyc/internal/kyc/models"
	"unikyc/internal/storage"
	kycmemory "unikyc/internal/kyc/store/memory"
	contentmemory "unikyc/internal/storage/memory"
	"unikyc/internal/timelock/adapters/simnet"
	"unikyc/internal/timelock/coordinator"
	tlmemory "unikyc/internal/timelock/store/memory"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/requestcontext"
)

const (
	aliceAddr = id.Address("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	bobAddr   = id.Address("0x2222222222222222222222222222222222222222")
)

var alicePayload = []byte(`{"name":"Alice","document":"P1234567","dob":"1990-01-01"}`)

// EngineSuite runs the engine against in-process collaborators: static
// names, the real cipher, in-memory stores and the simulated network.
type EngineSuite struct {
	suite.Suite
	store   *kycmemory.Store
	content *contentmemory.Store
	chain   *simnet.Chain
	network *simnet.Network
	svc     *Service
	now     time.Time
	ctx     context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	names, err := static.New(map[string]string{
		"alice.eth": aliceAddr.String(),
		"bob.eth":   bobAddr.String(),
	})
	s.Require().NoError(err)

	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	frozen := s.now
	s.chain = simnet.NewChain(1000, 12*time.Second, simnet.WithClock(func() time.Time { return frozen }))
	s.network = simnet.NewNetwork(s.chain)
	s.store = kycmemory.New()
	s.content = contentmemory.New()

	coord := coordinator.New(s.network, s.chain, tlmemory.New(), coordinator.WithBlockTime(12*time.Second))
	s.svc = New(s.store, resolver.New(names), cipher.New(), s.content, coord,
		WithValidity(365*24*time.Hour),
	)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func mustCID(t *testing.T, ref string) cid.Cid {
	t.Helper()
	c, err := storage.ParseCID(ref)
	if err != nil {
		t.Fatalf("parse cid %q: %v", ref, err)
	}
	return c
}

func (s *EngineSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EngineSuite) submit(identifier string) *SubmitResult {
	s.T().Helper()
	res, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        identifier,
		Payload:           alicePayload,
		Scheme:            cipher.Scheme{TotalShares: 5, RequiredShares: 3},
		UnlockBlockHeight: 1100,
	})
	s.Require().NoError(err)
	return res
}

func (s *EngineSuite) release(rec *models.Record) {
	s.T().Helper()
	s.chain.Advance(rec.TimeLock.UnlockBlockHeight - 1000)
	status, err := s.network.Status(s.ctx, rec.TimeLock.RequestID)
	s.Require().NoError(err)
	s.Require().True(status.Released)
	s.Require().NoError(s.svc.HandleUnlockCallback(s.ctx, rec.TimeLock.RequestID, status.Material))
}

func (s *EngineSuite) TestUnknownIdentifierHasNoKyc() {
	res, err := s.svc.CheckStatus(s.ctx, "bob.eth")
	s.Require().NoError(err)
	s.False(res.HasKyc)
	s.Equal(models.StatusNone, res.Status)
	s.Equal(bobAddr, res.Address)
}

func (s *EngineSuite) TestAliceLifecycle() {
	res := s.submit("alice.eth")
	rec := res.Record
	s.Len(res.Shares, 5)
	s.Equal(models.StatusPending, rec.Status)
	s.Equal(aliceAddr, rec.Identifier.Address)
	s.Equal("alice.eth", rec.Identifier.Name)
	s.Len(rec.Scheme.ShareDigests, 5)
	s.Require().NotNil(rec.TimeLock)
	s.False(rec.TimeLock.Decrypted)

	stored, err := s.content.Has(s.ctx, mustCID(s.T(), rec.EncryptedPayloadRef))
	s.Require().NoError(err)
	s.True(stored, "ciphertext must be in the content store")

	status, err := s.svc.CheckStatus(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.True(status.HasKyc)
	s.Equal(models.StatusPending, status.Status)
	s.Equal("alice.eth", status.Name)

	approved, err := s.svc.Approve(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, approved.Status)
	s.Require().NotNil(approved.ExpiryDate)
	s.Equal(s.now.Add(365*24*time.Hour), *approved.ExpiryDate)

	_, err = s.svc.ReadPayload(s.ctx, rec.ID, res.Shares[:3])
	s.True(dErrors.HasCode(err, dErrors.CodeNotDecryptable), "read before unlock must fail, got %v", err)

	s.release(rec)

	plaintext, err := s.svc.ReadPayload(s.ctx, rec.ID, [][]byte{res.Shares[4], res.Shares[0], res.Shares[2]})
	s.Require().NoError(err)
	s.Equal(alicePayload, plaintext)

	_, err = s.svc.ReadPayload(s.ctx, rec.ID, res.Shares[:2])
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientShares))
}

func (s *EngineSuite) TestStatusCarriesResolvedName() {
	none, err := s.svc.CheckStatus(s.ctx, "bob.eth")
	s.Require().NoError(err)
	s.False(none.HasKyc)
	s.Equal("bob.eth", none.Name)
	s.Equal(bobAddr, none.Address)

	s.submit("alice.eth")
	got, err := s.svc.CheckStatus(s.ctx, " Alice.ETH ")
	s.Require().NoError(err)
	s.True(got.HasKyc)
	s.Equal("alice.eth", got.Name)
}

func (s *EngineSuite) TestAddressLiteralMatchesName() {
	s.submit("alice.eth")

	lower, err := s.svc.CheckStatus(s.ctx, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	s.Require().NoError(err)
	mixed, err := s.svc.CheckStatus(s.ctx, "  0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD ")
	s.Require().NoError(err)
	s.Equal(aliceAddr, mixed.Address)
	s.Equal(lower.Address, mixed.Address)
	s.Equal(lower.Record.ID, mixed.Record.ID)
}

func (s *EngineSuite) TestLazyExpiry() {
	s.svc.validity = time.Hour
	rec := s.submit("alice.eth").Record
	_, err := s.svc.Approve(s.ctx, rec.ID)
	s.Require().NoError(err)

	status, err := s.svc.CheckStatus(s.at(s.now.Add(59*time.Minute)), "alice.eth")
	s.Require().NoError(err)
	s.Equal(models.StatusActive, status.Status)

	status, err = s.svc.CheckStatus(s.at(s.now.Add(2*time.Hour)), "alice.eth")
	s.Require().NoError(err)
	s.True(status.HasKyc)
	s.Equal(models.StatusExpired, status.Status)

	stored, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, stored.Status, "expiry is written back")
}

func (s *EngineSuite) TestExpiredRecordIsStillReadable() {
	s.svc.validity = time.Hour
	res := s.submit("alice.eth")
	_, err := s.svc.Approve(s.ctx, res.Record.ID)
	s.Require().NoError(err)
	s.release(res.Record)

	plaintext, err := s.svc.ReadPayload(s.at(s.now.Add(2*time.Hour)), res.Record.ID, res.Shares[1:4])
	s.Require().NoError(err)
	s.Equal(alicePayload, plaintext)
}

func (s *EngineSuite) TestRejectThenApprove() {
	rec := s.submit("alice.eth").Record

	rejected, err := s.svc.Reject(s.ctx, rec.ID, "document unreadable")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Equal("document unreadable", rejected.RejectionReason)

	_, err = s.svc.Approve(s.ctx, rec.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, stored.Status)
	s.Nil(stored.ExpiryDate)
}

func (s *EngineSuite) TestRejectedRecordCannotBeRead() {
	res := s.submit("alice.eth")
	_, err := s.svc.Reject(s.ctx, res.Record.ID, "")
	s.Require().NoError(err)
	s.release(res.Record)

	_, err = s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares)
	s.True(dErrors.HasCode(err, dErrors.CodeNotDecryptable))
}

func (s *EngineSuite) TestPendingResubmitIsRejected() {
	s.submit("alice.eth")

	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Equal(1, s.content.Len(), "no ciphertext stored for a rejected submission")
}

func (s *EngineSuite) TestResubmitSupersedesApprovedRecord() {
	first := s.submit("alice.eth").Record
	_, err := s.svc.Approve(s.ctx, first.ID)
	s.Require().NoError(err)

	second := s.submit("alice.eth").Record

	status, err := s.svc.CheckStatus(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, status.Status)
	s.Equal(second.ID, status.Record.ID)

	history, err := s.svc.History(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(second.ID, history[0].ID, "newest first")
	prior := history[1]
	s.Equal(first.ID, prior.ID)
	s.True(prior.Superseded)
	s.Require().NotNil(prior.SupersededBy)
	s.Equal(second.ID, *prior.SupersededBy)
	s.Equal(models.StatusExpired, prior.Status)

	_, err = s.svc.Approve(s.ctx, first.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), "superseded records accept no decisions")
}

func (s *EngineSuite) TestResubmitAfterRejection() {
	first := s.submit("alice.eth").Record
	_, err := s.svc.Reject(s.ctx, first.ID, "blurry")
	s.Require().NoError(err)

	second := s.submit("alice.eth").Record
	s.NotEqual(first.ID, second.ID)

	prior, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, prior.Status)
	s.True(prior.Superseded)
}

func (s *EngineSuite) TestRegistrationFailureLeavesNoRecord() {
	s.network.FailNext(simnet.ErrInsufficientGas)

	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeRegistrationFailed))
	s.True(dErrors.IsRetryable(err))

	status, err := s.svc.CheckStatus(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.False(status.HasKyc)
}

func (s *EngineSuite) TestUnlockHeightInThePast() {
	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 999,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidUnlockHeight))

	history, err := s.svc.History(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *EngineSuite) TestInvalidScheme() {
	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		Scheme:            cipher.Scheme{TotalShares: 3, RequiredShares: 1},
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidScheme))
}

func (s *EngineSuite) TestResolutionFailureOutranksInvalidScheme() {
	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "carol.eth",
		Payload:           alicePayload,
		Scheme:            cipher.Scheme{TotalShares: 3, RequiredShares: 1},
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeResolutionNotFound), "got %v", err)
	s.False(dErrors.HasCode(err, dErrors.CodeInvalidScheme))
}

func (s *EngineSuite) TestUnresolvableIdentifier() {
	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "carol.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeResolutionNotFound))
	s.Equal(0, s.content.Len())
}

func (s *EngineSuite) TestDefaultSchemeApplies() {
	res, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "bob.eth",
		Payload:           []byte("bob"),
		UnlockBlockHeight: 1010,
	})
	s.Require().NoError(err)
	s.Equal(5, res.Record.Scheme.TotalShares)
	s.Equal(3, res.Record.Scheme.RequiredShares)
}

func (s *EngineSuite) TestLivenessGate() {
	s.svc.minLiveness = 0.8
	low := 0.5
	_, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
		LivenessScore:     &low,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	high := 0.95
	res, err := s.svc.SubmitVerification(s.ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
		LivenessScore:     &high,
	})
	s.Require().NoError(err)
	s.Require().NotNil(res.Record.LivenessScore)
	s.InDelta(0.95, *res.Record.LivenessScore, 1e-9)
}

func (s *EngineSuite) TestSubmitForAnotherAccountIsForbidden() {
	ctx := requestcontext.WithSubject(s.ctx, bobAddr)
	_, err := s.svc.SubmitVerification(ctx, SubmitRequest{
		Identifier:        "alice.eth",
		Payload:           alicePayload,
		UnlockBlockHeight: 1100,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *EngineSuite) TestSharesFromAnotherRecord() {
	alice := s.submit("alice.eth")
	bob := s.submit("bob.eth")
	_, err := s.svc.Approve(s.ctx, alice.Record.ID)
	s.Require().NoError(err)
	s.release(alice.Record)

	_, err = s.svc.ReadPayload(s.ctx, alice.Record.ID, bob.Shares[:3])
	s.True(dErrors.HasCode(err, dErrors.CodeCorruptShare))
}

func (s *EngineSuite) TestDuplicateCallbackIsIdempotent() {
	rec := s.submit("alice.eth").Record
	s.release(rec)

	status, err := s.network.Status(s.ctx, rec.TimeLock.RequestID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.HandleUnlockCallback(s.ctx, rec.TimeLock.RequestID, status.Material))

	stored, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.True(stored.TimeLock.Decrypted)
}

// earlyRelease delivers the unlock callback from inside RegisterUnlock, before
// the engine has written the record.
type earlyRelease struct {
	Coordinator
	deliver func(ctx context.Context, requestID id.UnlockRequestID)
}

func (e *earlyRelease) RegisterUnlock(ctx context.Context, ref string, ciphertext []byte, height, gas uint64) (id.UnlockRequestID, error) {
	requestID, err := e.Coordinator.RegisterUnlock(ctx, ref, ciphertext, height, gas)
	if err == nil {
		e.deliver(ctx, requestID)
	}
	return requestID, err
}

func (s *EngineSuite) TestCallbackBeforeRecordIsWritten() {
	s.svc.coordinator = &earlyRelease{
		Coordinator: s.svc.coordinator,
		deliver: func(ctx context.Context, requestID id.UnlockRequestID) {
			s.chain.Advance(100)
			status, err := s.network.Status(ctx, requestID)
			s.Require().NoError(err)
			s.Require().NoError(s.svc.HandleUnlockCallback(ctx, requestID, status.Material))
		},
	}

	res := s.submit("alice.eth")
	s.True(res.Record.TimeLock.Decrypted)

	_, err := s.svc.Approve(s.ctx, res.Record.ID)
	s.Require().NoError(err)
	plaintext, err := s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[:3])
	s.Require().NoError(err)
	s.Equal(alicePayload, plaintext)
}

func (s *EngineSuite) TestReadPayloadPicksUpMissedRelease() {
	res := s.submit("alice.eth")
	_, err := s.svc.Approve(s.ctx, res.Record.ID)
	s.Require().NoError(err)

	// The coordinator accepts the release but the record is never marked.
	s.chain.Advance(100)
	status, err := s.network.Status(s.ctx, res.Record.TimeLock.RequestID)
	s.Require().NoError(err)
	_, err = s.svc.coordinator.OnUnlockCallback(s.ctx, res.Record.TimeLock.RequestID, status.Material)
	s.Require().NoError(err)

	plaintext, err := s.svc.ReadPayload(s.ctx, res.Record.ID, res.Shares[2:])
	s.Require().NoError(err)
	s.Equal(alicePayload, plaintext)

	stored, err := s.store.FindByID(s.ctx, res.Record.ID)
	s.Require().NoError(err)
	s.True(stored.TimeLock.Decrypted)
}

func (s *EngineSuite) TestPrematureCallback() {
	rec := s.submit("alice.eth").Record

	err := s.svc.HandleUnlockCallback(s.ctx, rec.TimeLock.RequestID, []byte("too early"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidUnlockMaterial))

	stored, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.False(stored.TimeLock.Decrypted)
}

func (s *EngineSuite) TestUnknownCallback() {
	err := s.svc.HandleUnlockCallback(s.ctx, id.NewUnlockRequestID(), []byte("m"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownRequest))
}

func (s *EngineSuite) TestUnlockEstimate() {
	rec := s.submit("alice.eth").Record
	_, err := s.svc.Approve(s.ctx, rec.ID)
	s.Require().NoError(err)

	est, err := s.svc.UnlockEstimate(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.False(est.CanDecrypt)
	s.False(est.Unlocked)
	s.Equal(uint64(100), est.BlocksRemaining)
	s.Equal(int64(1200), est.EstimatedSeconds)

	s.release(rec)
	est, err = s.svc.UnlockEstimate(s.ctx, "alice.eth")
	s.Require().NoError(err)
	s.True(est.CanDecrypt)
	s.Equal(uint64(0), est.BlocksRemaining)
}

func (s *EngineSuite) TestGetRecordEvaluatesStatus() {
	s.svc.validity = time.Minute
	rec := s.submit("alice.eth").Record
	_, err := s.svc.Approve(s.ctx, rec.ID)
	s.Require().NoError(err)

	got, err := s.svc.GetRecord(s.at(s.now.Add(time.Hour)), rec.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, got.Status)

	_, err = s.svc.GetRecord(s.ctx, id.NewRecordID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
