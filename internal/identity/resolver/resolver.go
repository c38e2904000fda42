// Package resolver turns user-supplied identifiers into canonical account addresses.
package resolver

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"

	"unikyc/internal/identity/metrics"
	"unikyc/internal/identity/models"
	"unikyc/internal/identity/ports"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
)

const (
	outcomeAddress   = "address"
	outcomeName      = "name"
	outcomeNotFound  = "not_found"
	outcomeAmbiguous = "ambiguous"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

// Resolver maps an address literal or a dotted name to a CanonicalIdentifier.
// Concurrent resolutions of the same label share one name-service round trip.
type Resolver struct {
	names   ports.NameService
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func New(names ports.NameService, opts ...Option) *Resolver {
	r := &Resolver{names: names}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve canonicalizes input. Address literals are returned lowercased without
// a lookup; names go through a forward lookup and a backward ambiguity check.
func (r *Resolver) Resolve(ctx context.Context, input string) (models.CanonicalIdentifier, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		r.observe(outcomeInvalid)
		return models.CanonicalIdentifier{}, dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	}

	if id.LooksLikeAddress(input) {
		addr, err := id.ParseAddress(input)
		if err != nil {
			r.observe(outcomeInvalid)
			return models.CanonicalIdentifier{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address")
		}
		r.observe(outcomeAddress)
		return models.CanonicalIdentifier{Address: addr}, nil
	}

	label, err := models.NormalizeLabel(input)
	if err != nil {
		r.observe(outcomeInvalid)
		return models.CanonicalIdentifier{}, err
	}

	ch := r.group.DoChan(label, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		return r.lookup(context.WithoutCancel(ctx), label)
	})
	select {
	case <-ctx.Done():
		return models.CanonicalIdentifier{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "identifier resolution cancelled")
	case res := <-ch:
		if res.Err != nil {
			r.observe(outcomeFor(res.Err))
			return models.CanonicalIdentifier{}, res.Err
		}
		r.observe(outcomeName)
		return res.Val.(models.CanonicalIdentifier), nil
	}
}

func (r *Resolver) lookup(ctx context.Context, label string) (models.CanonicalIdentifier, error) {
	addr, ok, err := r.names.ResolveForward(ctx, label)
	if err != nil {
		r.logger.WarnContext(ctx, "forward name lookup failed", "label", label, "error", err)
		return models.CanonicalIdentifier{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "name service unavailable")
	}
	if !ok || addr.IsNil() {
		return models.CanonicalIdentifier{}, dErrors.New(dErrors.CodeResolutionNotFound, "no address registered for "+label)
	}
	canonical, err := id.ParseAddress(addr.String())
	if err != nil {
		return models.CanonicalIdentifier{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "name service returned a malformed address")
	}

	reverse, err := r.names.ResolveBackward(ctx, canonical)
	if err != nil {
		r.logger.WarnContext(ctx, "backward name lookup failed", "address", canonical, "error", err)
		return models.CanonicalIdentifier{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "name service unavailable")
	}
	distinct := models.DistinctLabels(reverse)
	if len(distinct) > 1 && !slices.Contains(distinct, label) {
		r.logger.InfoContext(ctx, "ambiguous reverse records",
			"label", label,
			"address", canonical,
			"reverse_names", distinct,
		)
		return models.CanonicalIdentifier{}, dErrors.New(dErrors.CodeResolutionAmbiguous,
			label+" resolves to an address with several conflicting reverse names")
	}

	return models.CanonicalIdentifier{Address: canonical, Name: label}, nil
}

func outcomeFor(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeResolutionNotFound):
		return outcomeNotFound
	case dErrors.HasCode(err, dErrors.CodeResolutionAmbiguous):
		return outcomeAmbiguous
	default:
		return outcomeError
	}
}

func (r *Resolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.IncResolution(outcome)
	}
}
