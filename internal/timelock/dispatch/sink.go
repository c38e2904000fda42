// Package dispatch delivers unlock notifications to the record engine: a
// poller that asks the network about pending requests, and an HTTP webhook
// the network (or a chain listener) can call directly.
package dispatch

import (
	"context"

	"unikyc/internal/timelock/models"
	"unikyc/internal/timelock/ports"
)

// Sink receives released callbacks from the poller. Deliver may hand off to
// a queue instead of handling the callback inline.
type Sink interface {
	Deliver(ctx context.Context, cb models.Callback) error
}

// HandlerSink delivers callbacks straight to a CallbackHandler.
type HandlerSink struct {
	handler ports.CallbackHandler
}

func NewHandlerSink(handler ports.CallbackHandler) *HandlerSink {
	return &HandlerSink{handler: handler}
}

func (s *HandlerSink) Deliver(ctx context.Context, cb models.Callback) error {
	return s.handler.HandleUnlockCallback(ctx, cb.RequestID, cb.Material)
}
