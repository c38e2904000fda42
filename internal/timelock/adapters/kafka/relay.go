// Package kafka carries unlock callbacks over a Kafka topic. A chain listener
// (or the poller) publishes released material; the relay consumer feeds it to
// the record engine.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"unikyc/internal/timelock/metrics"
	"unikyc/internal/timelock/models"
	"unikyc/internal/timelock/ports"
	dErrors "unikyc/pkg/domain-errors"
)

// Producer is the subset of *kgo.Client used to publish callbacks.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher writes callbacks to the relay topic, keyed by request ID.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Deliver(ctx context.Context, cb models.Callback) error {
	value, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("marshal unlock callback: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(cb.RequestID.String()),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce unlock callback: %w", err)
	}
	return nil
}

// Consumer is the subset of *kgo.Client the relay needs. The client must be
// built with a consumer group and kgo.DisableAutoCommit.
type Consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// Relay consumes callbacks and hands them to the engine. Offsets are committed
// after handling, so a crash replays the batch; the handler is idempotent.
type Relay struct {
	consumer Consumer
	handler  ports.CallbackHandler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewRelay(consumer Consumer, handler ports.CallbackHandler, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{consumer: consumer, handler: handler, logger: logger, metrics: m}
}

// Run consumes until ctx is cancelled or the client is closed.
func (r *Relay) Run(ctx context.Context) error {
	for {
		fetches := r.consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.process(ctx, fetches)
	}
}

func (r *Relay) process(ctx context.Context, fetches kgo.Fetches) {
	fetches.EachError(func(topic string, partition int32, err error) {
		r.logger.ErrorContext(ctx, "callback relay fetch error",
			"topic", topic,
			"partition", partition,
			"error", err,
		)
	})

	var handled []*kgo.Record
	fetches.EachRecord(func(record *kgo.Record) {
		r.handle(ctx, record)
		handled = append(handled, record)
	})
	if len(handled) == 0 {
		return
	}
	if err := r.consumer.CommitRecords(ctx, handled...); err != nil {
		r.logger.WarnContext(ctx, "callback relay commit failed", "error", err)
	}
}

func (r *Relay) handle(ctx context.Context, record *kgo.Record) {
	var cb models.Callback
	if err := json.Unmarshal(record.Value, &cb); err != nil || cb.RequestID.IsNil() {
		r.logger.WarnContext(ctx, "discarding malformed unlock callback",
			"log_type", "integrity",
			"partition", record.Partition,
			"offset", record.Offset,
		)
		return
	}
	if r.metrics != nil {
		r.metrics.IncDelivery("relay")
	}
	if err := r.handler.HandleUnlockCallback(ctx, cb.RequestID, cb.Material); err != nil {
		level := slog.LevelWarn
		if dErrors.IsRetryable(err) {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "unlock callback rejected",
			"unlock_request_id", cb.RequestID,
			"offset", record.Offset,
			"error", err,
		)
	}
}
