// Package cache is a Redis read-through cache in front of a name service.
// A circuit breaker keeps a failing Redis from slowing resolutions down; while
// the circuit is open lookups go straight to the name service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"unikyc/internal/identity/metrics"
	"unikyc/internal/identity/ports"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/circuit"
)

const (
	forwardPrefix = "unikyc:ns:fwd:"
	reversePrefix = "unikyc:ns:rev:"

	// negativeValue marks a cached "no forward record" answer.
	negativeValue = "-"

	defaultTTL = 5 * time.Minute
)

// KV is the subset of the go-redis client used by the cache.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type NameService struct {
	inner   ports.NameService
	kv      KV
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*NameService)

func WithTTL(ttl time.Duration) Option {
	return func(n *NameService) {
		if ttl > 0 {
			n.ttl = ttl
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *NameService) {
		n.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *NameService) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *NameService) {
		n.metrics = m
	}
}

func New(inner ports.NameService, kv KV, opts ...Option) *NameService {
	n := &NameService{inner: inner, kv: kv, ttl: defaultTTL}
	for _, opt := range opts {
		opt(n)
	}
	if n.breaker == nil {
		n.breaker = circuit.New("name-cache")
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

func (n *NameService) ResolveForward(ctx context.Context, label string) (id.Address, bool, error) {
	key := forwardPrefix + label
	if cached, ok := n.get(ctx, key); ok {
		if cached == negativeValue {
			return "", false, nil
		}
		return id.Address(cached), true, nil
	}

	addr, ok, err := n.inner.ResolveForward(ctx, label)
	if err != nil {
		return "", false, err
	}
	value := negativeValue
	if ok {
		value = addr.String()
	}
	n.set(ctx, key, value)
	return addr, ok, nil
}

func (n *NameService) ResolveBackward(ctx context.Context, addr id.Address) ([]string, error) {
	key := reversePrefix + addr.String()
	if cached, ok := n.get(ctx, key); ok {
		var names []string
		if err := json.Unmarshal([]byte(cached), &names); err == nil {
			return names, nil
		}
		n.logger.WarnContext(ctx, "discarding malformed cached reverse record", "key", key)
	}

	names, err := n.inner.ResolveBackward(ctx, addr)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	encoded, err := json.Marshal(names)
	if err == nil {
		n.set(ctx, key, string(encoded))
	}
	return names, nil
}

func (n *NameService) get(ctx context.Context, key string) (string, bool) {
	if !n.breaker.Allow() {
		n.observe("bypass")
		return "", false
	}
	value, err := n.kv.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		n.recordSuccess(ctx)
		n.observe("miss")
		return "", false
	}
	if err != nil {
		n.recordFailure(ctx, err)
		n.observe("error")
		return "", false
	}
	n.recordSuccess(ctx)
	n.observe("hit")
	return value, true
}

func (n *NameService) set(ctx context.Context, key, value string) {
	if n.breaker.IsOpen() {
		return
	}
	if err := n.kv.Set(ctx, key, value, n.ttl).Err(); err != nil {
		n.recordFailure(ctx, err)
		return
	}
	n.recordSuccess(ctx)
}

func (n *NameService) recordFailure(ctx context.Context, err error) {
	_, change := n.breaker.RecordFailure()
	if change.Opened {
		n.logger.WarnContext(ctx, "name cache circuit opened, bypassing redis",
			"breaker", n.breaker.Name(),
			"error", err,
		)
	}
}

func (n *NameService) recordSuccess(ctx context.Context) {
	_, change := n.breaker.RecordSuccess()
	if change.Closed {
		n.logger.InfoContext(ctx, "name cache circuit closed", "breaker", n.breaker.Name())
	}
}

func (n *NameService) observe(result string) {
	if n.metrics != nil {
		n.metrics.IncCacheLookup(result)
	}
}
