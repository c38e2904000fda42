// Package coordinator registers encrypted payloads with the conditional-encryption
// network and tracks each registration until its unlock callback arrives.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/multiformats/go-multihash"

	"unikyc/internal/timelock/metrics"
	"unikyc/internal/timelock/models"
	"unikyc/internal/timelock/ports"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

const defaultBlockTime = 12 * time.Second

// RequestStore persists unlock requests.
type RequestStore interface {
	Save(ctx context.Context, req *models.UnlockRequest) error
	FindByID(ctx context.Context, requestID id.UnlockRequestID) (*models.UnlockRequest, error)
	Execute(ctx context.Context, requestID id.UnlockRequestID, validate func(*models.UnlockRequest) error, mutate func(*models.UnlockRequest)) (*models.UnlockRequest, error)
	ListPending(ctx context.Context) ([]*models.UnlockRequest, error)
}

// SecurityAuditor receives integrity anomalies. Emit must not block.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.Event)
}

// OpsTracker receives routine lifecycle events on a best-effort basis.
type OpsTracker interface {
	Track(ctx context.Context, event audit.Event)
}

type Coordinator struct {
	network   ports.Network
	chain     ports.ChainOracle
	store     RequestStore
	blockTime time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	security  SecurityAuditor
	ops       OpsTracker
}

type Option func(*Coordinator)

func WithBlockTime(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.blockTime = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithSecurityAuditor(a SecurityAuditor) Option {
	return func(c *Coordinator) {
		c.security = a
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(c *Coordinator) {
		c.ops = t
	}
}

func New(network ports.Network, chain ports.ChainOracle, store RequestStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		network:   network,
		chain:     chain,
		store:     store,
		blockTime: defaultBlockTime,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// RegisterUnlock submits ciphertext to the network so its decryption material
// is released once the chain reaches unlockBlockHeight.
func (c *Coordinator) RegisterUnlock(ctx context.Context, ciphertextRef string, ciphertext []byte, unlockBlockHeight, gasBudget uint64) (id.UnlockRequestID, error) {
	start := time.Now()
	requestID, err := c.register(ctx, ciphertextRef, ciphertext, unlockBlockHeight, gasBudget)
	if c.metrics != nil {
		c.metrics.ObserveRegister(time.Since(start).Seconds())
		outcome := "registered"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
		}
		c.metrics.IncRegistration(outcome)
	}
	return requestID, err
}

func (c *Coordinator) register(ctx context.Context, ciphertextRef string, ciphertext []byte, unlockBlockHeight, gasBudget uint64) (id.UnlockRequestID, error) {
	var none id.UnlockRequestID
	if ciphertextRef == "" || len(ciphertext) == 0 {
		return none, dErrors.New(dErrors.CodeBadRequest, "ciphertext is required")
	}

	height, err := c.chain.CurrentHeight(ctx)
	if err != nil {
		return none, dErrors.Wrap(err, dErrors.CodeRegistrationFailed, "chain height unavailable")
	}
	if unlockBlockHeight <= height {
		return none, dErrors.New(dErrors.CodeInvalidUnlockHeight, "unlock height must be above the current block height")
	}

	requestID, err := c.network.Register(ctx, ports.Registration{
		CiphertextRef:     ciphertextRef,
		Ciphertext:        ciphertext,
		UnlockBlockHeight: unlockBlockHeight,
		GasBudget:         gasBudget,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "time-lock registration failed",
			"ciphertext_ref", ciphertextRef,
			"unlock_block_height", unlockBlockHeight,
			"error", err,
		)
		return none, dErrors.Wrap(err, dErrors.CodeRegistrationFailed, "conditional-encryption network rejected the registration")
	}

	req := &models.UnlockRequest{
		ID:                requestID,
		CiphertextRef:     ciphertextRef,
		UnlockBlockHeight: unlockBlockHeight,
		GasBudget:         gasBudget,
		State:             models.StateRegistered,
		RegisteredAt:      requestcontext.Now(ctx),
	}
	if err := c.store.Save(ctx, req); err != nil {
		return none, dErrors.Wrap(err, dErrors.CodeRegistrationFailed, "failed to track unlock request")
	}

	c.logger.InfoContext(ctx, "time-lock registered",
		"unlock_request_id", requestID,
		"ciphertext_ref", ciphertextRef,
		"unlock_block_height", unlockBlockHeight,
		"current_height", height,
	)
	c.track(ctx, audit.EventTimeLockRegistered, requestID)
	return requestID, nil
}

// QueryUnlockState reports whether a request can be decrypted and, if not,
// how many blocks and seconds remain. It never mutates state.
func (c *Coordinator) QueryUnlockState(ctx context.Context, requestID id.UnlockRequestID) (models.UnlockState, error) {
	req, err := c.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.UnlockState{}, dErrors.New(dErrors.CodeUnknownRequest, "unknown unlock request")
		}
		return models.UnlockState{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load unlock request")
	}
	height, err := c.chain.CurrentHeight(ctx)
	if err != nil {
		return models.UnlockState{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "chain height unavailable")
	}
	return models.NewUnlockState(req, height, c.blockTime), nil
}

var errDuplicate = errors.New("unlock request already decrypted")

// OnUnlockCallback validates a release notification. Repeated callbacks for a
// decrypted request are reported as OutcomeDuplicate without error.
func (c *Coordinator) OnUnlockCallback(ctx context.Context, requestID id.UnlockRequestID, material []byte) (models.CallbackOutcome, error) {
	if len(material) == 0 {
		c.observeCallback("invalid")
		return "", dErrors.New(dErrors.CodeInvalidUnlockMaterial, "unlock material is empty")
	}

	height, err := c.chain.CurrentHeight(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "chain height unavailable")
	}
	digest, err := multihash.Sum(material, multihash.SHA2_256, -1)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest unlock material")
	}
	now := requestcontext.Now(ctx)

	_, err = c.store.Execute(ctx, requestID,
		func(req *models.UnlockRequest) error {
			if req.State == models.StateDecrypted {
				return errDuplicate
			}
			if height < req.UnlockBlockHeight {
				return dErrors.New(dErrors.CodeInvalidUnlockMaterial, "unlock material received before the target height")
			}
			return nil
		},
		func(req *models.UnlockRequest) {
			req.State = models.StateDecrypted
			req.DecryptedAt = &now
			req.MaterialDigest = digest.B58String()
		},
	)
	switch {
	case err == nil:
		c.observeCallback(string(models.OutcomeDecrypted))
		c.logger.InfoContext(ctx, "time-lock decrypted", "unlock_request_id", requestID, "height", height)
		c.track(ctx, audit.EventTimeLockDecrypted, requestID)
		return models.OutcomeDecrypted, nil
	case errors.Is(err, errDuplicate):
		c.observeCallback(string(models.OutcomeDuplicate))
		c.logger.WarnContext(ctx, "duplicate unlock callback",
			"log_type", "integrity",
			"unlock_request_id", requestID,
		)
		c.emitSecurity(ctx, audit.EventCallbackDuplicate, requestID, audit.SeverityInfo, "request already decrypted")
		return models.OutcomeDuplicate, nil
	case errors.Is(err, sentinel.ErrNotFound):
		c.observeCallback("unknown")
		c.logger.WarnContext(ctx, "unlock callback for unknown request",
			"log_type", "integrity",
			"unlock_request_id", requestID,
		)
		c.emitSecurity(ctx, audit.EventCallbackUnknown, requestID, audit.SeverityWarning, "no such unlock request")
		return "", dErrors.New(dErrors.CodeUnknownRequest, "unknown unlock request")
	case dErrors.HasCode(err, dErrors.CodeInvalidUnlockMaterial):
		c.observeCallback("invalid")
		c.logger.WarnContext(ctx, "premature unlock callback",
			"log_type", "integrity",
			"unlock_request_id", requestID,
			"height", height,
		)
		return "", err
	case errors.Is(err, sentinel.ErrConflict):
		return "", dErrors.Wrap(err, dErrors.CodeConflict, "unlock request modified concurrently")
	default:
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record unlock callback")
	}
}

// PendingRequests lists registrations still awaiting release.
func (c *Coordinator) PendingRequests(ctx context.Context) ([]*models.UnlockRequest, error) {
	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list pending unlock requests")
	}
	if c.metrics != nil {
		c.metrics.SetPending(len(pending))
	}
	return pending, nil
}

func (c *Coordinator) observeCallback(outcome string) {
	if c.metrics != nil {
		c.metrics.IncCallback(outcome)
	}
}

func (c *Coordinator) emitSecurity(ctx context.Context, action audit.AuditEvent, requestID id.UnlockRequestID, severity audit.Severity, reason string) {
	if c.security == nil {
		return
	}
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.UnlockRequestID = requestID.String()
	event.Severity = severity
	event.Reason = reason
	c.security.Emit(ctx, event)
}

func (c *Coordinator) track(ctx context.Context, action audit.AuditEvent, requestID id.UnlockRequestID) {
	if c.ops == nil {
		return
	}
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.UnlockRequestID = requestID.String()
	c.ops.Track(ctx, event)
}
