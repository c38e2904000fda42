// Package service implements the KYC record lifecycle: status checks,
// submissions, operator decisions, unlock callbacks and authorized payload reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"unikyc/internal/cipher"
	identity "unikyc/internal/identity/models"
	"unikyc/internal/kyc/metrics"
	"unikyc/internal/kyc/models"
	tlmodels "unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

const (
	defaultValidity  = 365 * 24 * time.Hour
	defaultGasBudget = 100_000
)

// Store persists KYC records and linearizes mutations per address.
type Store interface {
	Current(ctx context.Context, addr id.Address) (*models.Record, error)
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	FindByUnlockRequest(ctx context.Context, requestID id.UnlockRequestID) (*models.Record, error)
	ListByAddress(ctx context.Context, addr id.Address) ([]*models.Record, error)
	CreateSuperseding(ctx context.Context, rec *models.Record, expectedCurrent *id.RecordID) error
	Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
}

type Resolver interface {
	Resolve(ctx context.Context, input string) (identity.CanonicalIdentifier, error)
}

type Cipher interface {
	Encrypt(plaintext []byte, scheme cipher.Scheme) (*cipher.Sealed, error)
	Decrypt(ciphertext []byte, shares [][]byte, scheme cipher.ThresholdScheme) ([]byte, error)
}

// ContentStore holds encrypted payloads by content address.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}

type Coordinator interface {
	RegisterUnlock(ctx context.Context, ciphertextRef string, ciphertext []byte, unlockBlockHeight, gasBudget uint64) (id.UnlockRequestID, error)
	QueryUnlockState(ctx context.Context, requestID id.UnlockRequestID) (tlmodels.UnlockState, error)
	OnUnlockCallback(ctx context.Context, requestID id.UnlockRequestID, material []byte) (tlmodels.CallbackOutcome, error)
}

// OpsTracker receives routine lifecycle events on a best-effort basis.
type OpsTracker interface {
	Track(ctx context.Context, event audit.Event)
}

// ComplianceAuditor persists regulated events. A failed Emit must stop the
// operation it describes.
type ComplianceAuditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the record lifecycle across resolver, cipher, content
// store, time-lock coordinator and record store.
type Service struct {
	store       Store
	resolver    Resolver
	cipher      Cipher
	content     ContentStore
	coordinator Coordinator

	validity      time.Duration
	defaultScheme cipher.Scheme
	gasBudget     uint64
	minLiveness   float64

	logger     *slog.Logger
	metrics    *metrics.Metrics
	ops        OpsTracker
	compliance ComplianceAuditor
	tracer     trace.Tracer
}

type Option func(*Service)

// WithValidity sets how long an approval stays active.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithDefaultScheme is used for submissions that leave the scheme empty.
func WithDefaultScheme(scheme cipher.Scheme) Option {
	return func(s *Service) {
		s.defaultScheme = scheme
	}
}

func WithGasBudget(gas uint64) Option {
	return func(s *Service) {
		if gas > 0 {
			s.gasBudget = gas
		}
	}
}

// WithMinLiveness rejects submissions scoring below threshold. Zero disables the gate.
func WithMinLiveness(threshold float64) Option {
	return func(s *Service) {
		s.minLiveness = threshold
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.ops = t
	}
}

func WithComplianceAuditor(a ComplianceAuditor) Option {
	return func(s *Service) {
		s.compliance = a
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, resolver Resolver, c Cipher, content ContentStore, coordinator Coordinator, opts ...Option) *Service {
	s := &Service{
		store:         store,
		resolver:      resolver,
		cipher:        c,
		content:       content,
		coordinator:   coordinator,
		validity:      defaultValidity,
		defaultScheme: cipher.Scheme{TotalShares: 5, RequiredShares: 3},
		gasBudget:     defaultGasBudget,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("unikyc/kyc")
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kyc."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// storeError translates record store failures into coded errors. Errors that
// already carry a code pass through.
func storeError(err error, msg string) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "kyc record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "kyc record was modified concurrently")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, msg)
	}
}

// requireOwner rejects callers authenticated as a different account. Calls
// without an authenticated subject (operators, internal callers) pass.
func requireOwner(ctx context.Context, addr id.Address) error {
	if subject := requestcontext.Subject(ctx); !subject.IsNil() && subject != addr {
		return dErrors.New(dErrors.CodeForbidden, "record belongs to another account")
	}
	return nil
}

func (s *Service) track(ctx context.Context, action audit.AuditEvent, rec *models.Record, reason string) {
	if s.ops == nil {
		return
	}
	s.ops.Track(ctx, s.event(ctx, action, rec, reason))
}

func (s *Service) event(ctx context.Context, action audit.AuditEvent, rec *models.Record, reason string) audit.Event {
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.RequestID = requestcontext.RequestID(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	event.Client = audit.DescribeClient(requestcontext.UserAgent(ctx))
	event.Reason = reason
	if actor := requestcontext.Subject(ctx); !actor.IsNil() {
		event.ActorID = actor.String()
	}
	if rec != nil {
		event.Subject = rec.Identifier.Address.String()
		event.RecordID = rec.ID.String()
		if rec.TimeLock != nil {
			event.UnlockRequestID = rec.TimeLock.RequestID.String()
		}
	}
	return event
}

func (s *Service) observeTransition(from, to models.Status) {
	if s.metrics != nil {
		s.metrics.IncTransition(string(from), string(to))
	}
}
