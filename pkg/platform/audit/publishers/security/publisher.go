// Package security provides a non-blocking publisher for integrity and
// access anomalies. Events are buffered in memory and flushed by the audit
// worker, so emitting never slows the callback path that detected them.
package security

import (
	"context"

	audit "unikyc/pkg/platform/audit"
	"unikyc/pkg/requestcontext"
)

type Publisher struct {
	buffer *RingBuffer
}

func New(buffer *RingBuffer) *Publisher {
	return &Publisher{buffer: buffer}
}

// Emit enqueues event. Timestamp, category and request correlation are filled if absent.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.Client == "" {
		event.Client = audit.DescribeClient(requestcontext.UserAgent(ctx))
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	event.Category = audit.CategorySecurity
	p.buffer.Enqueue(event)
}

// Buffer exposes the underlying buffer for the flushing worker.
func (p *Publisher) Buffer() *RingBuffer { return p.buffer }
