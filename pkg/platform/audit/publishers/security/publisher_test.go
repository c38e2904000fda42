package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "unikyc/pkg/platform/audit"
	"unikyc/pkg/requestcontext"
)

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := NewRingBuffer(2)
	b.Enqueue(audit.Event{Action: "a"})
	b.Enqueue(audit.Event{Action: "b"})
	b.Enqueue(audit.Event{Action: "c"})

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(1), b.Dropped())

	batch := b.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Action)
	assert.Equal(t, "c", batch[1].Action)
	assert.Nil(t, b.DequeueBatch(1))
}

func TestPublisher_EmitEnrichesFromContext(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-7")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.5", "relay")

	p := New(NewRingBuffer(4))
	p.Emit(ctx, audit.NewEvent(audit.EventCallbackUnknown, time.Time{}))

	batch := p.Buffer().DequeueBatch(1)
	require.Len(t, batch, 1)
	e := batch[0]
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, "req-7", e.RequestID)
	assert.Equal(t, "10.0.0.5", e.IP)
	assert.NotEmpty(t, e.Client)
	assert.Equal(t, audit.CategorySecurity, e.Category)
	assert.Equal(t, audit.SeverityWarning, e.Severity)
}
