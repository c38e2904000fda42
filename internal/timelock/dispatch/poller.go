package dispatch

import (
	"context"
	"log/slog"
	"time"

	"unikyc/internal/timelock/metrics"
	"unikyc/internal/timelock/models"
	"unikyc/internal/timelock/ports"
)

// PendingLister lists registrations awaiting release.
type PendingLister interface {
	PendingRequests(ctx context.Context) ([]*models.UnlockRequest, error)
}

// Poller periodically asks the network whether pending requests have been
// released and forwards released material to a Sink. It backstops lost relay
// and webhook deliveries.
type Poller struct {
	pending  PendingLister
	network  ports.Network
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

func WithPollerMetrics(m *metrics.Metrics) PollerOption {
	return func(p *Poller) {
		p.metrics = m
	}
}

func NewPoller(pending PendingLister, network ports.Network, sink Sink, opts ...PollerOption) *Poller {
	p := &Poller{pending: pending, network: network, sink: sink, interval: 15 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll checks every pending request once and returns how many callbacks it delivered.
func (p *Poller) Poll(ctx context.Context) int {
	pending, err := p.pending.PendingRequests(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to list pending unlock requests", "error", err)
		return 0
	}
	delivered := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			return delivered
		}
		status, err := p.network.Status(ctx, req.ID)
		if err != nil {
			p.logger.WarnContext(ctx, "unlock status check failed",
				"unlock_request_id", req.ID,
				"error", err,
			)
			continue
		}
		if !status.Released {
			continue
		}
		if err := p.sink.Deliver(ctx, models.Callback{RequestID: req.ID, Material: status.Material}); err != nil {
			p.logger.WarnContext(ctx, "unlock callback delivery failed",
				"unlock_request_id", req.ID,
				"error", err,
			)
			continue
		}
		if p.metrics != nil {
			p.metrics.IncDelivery("poller")
		}
		delivered++
	}
	return delivered
}
