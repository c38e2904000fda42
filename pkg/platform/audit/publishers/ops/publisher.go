// Package ops provides a best-effort audit publisher for routine lifecycle events.
//
// Track never fails the caller. Events are sampled, and persistence is skipped
// while the audit store's circuit is open.
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/circuit"
)

const persistTimeout = 2 * time.Second

type Publisher struct {
	store   audit.Store
	breaker *circuit.Breaker
	sampler *Sampler
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithSampler(s *Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		sampler: NewSampler(1),
		breaker: circuit.New("audit-ops", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Track persists event if sampled and the store is healthy.
func (p *Publisher) Track(ctx context.Context, event audit.Event) {
	if !p.sampler.ShouldSample(event.Action) {
		if p.metrics != nil {
			p.metrics.Sampled.Inc()
		}
		return
	}
	if !p.breaker.Allow() {
		if p.metrics != nil {
			p.metrics.CircuitBreakerDropped.Inc()
		}
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// detached from request cancellation; the event describes a committed change
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := p.store.Append(persistCtx, event); err != nil {
		_, change := p.breaker.RecordFailure()
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
			if change.Opened {
				p.metrics.SetCircuitBreakerState(true)
			}
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "ops audit persist failed",
				"action", event.Action,
				"error", err,
				"circuit_opened", change.Opened,
			)
		}
		return
	}

	_, change := p.breaker.RecordSuccess()
	if p.metrics != nil {
		p.metrics.Tracked.Inc()
		if change.Closed {
			p.metrics.SetCircuitBreakerState(false)
		}
	}
}
