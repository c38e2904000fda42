package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"unikyc/internal/timelock/models"
	"unikyc/internal/timelock/ports"
	"unikyc/internal/timelock/ports/mocks"
	id "unikyc/pkg/domain"
)

type stubLister struct {
	pending []*models.UnlockRequest
	err     error
}

func (s stubLister) PendingRequests(context.Context) ([]*models.UnlockRequest, error) {
	return s.pending, s.err
}

func TestPoller_Poll(t *testing.T) {
	ctx := context.Background()
	released := &models.UnlockRequest{ID: id.NewUnlockRequestID()}
	waiting := &models.UnlockRequest{ID: id.NewUnlockRequestID()}
	broken := &models.UnlockRequest{ID: id.NewUnlockRequestID()}

	t.Run("delivers only released requests", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		network := mocks.NewMockNetwork(ctrl)
		handler := mocks.NewMockCallbackHandler(ctrl)

		network.EXPECT().Status(gomock.Any(), released.ID).Return(ports.NetworkStatus{Released: true, Material: []byte("m")}, nil)
		network.EXPECT().Status(gomock.Any(), waiting.ID).Return(ports.NetworkStatus{}, nil)
		network.EXPECT().Status(gomock.Any(), broken.ID).Return(ports.NetworkStatus{}, errors.New("rpc down"))
		handler.EXPECT().HandleUnlockCallback(gomock.Any(), released.ID, []byte("m")).Return(nil)

		poller := NewPoller(stubLister{pending: []*models.UnlockRequest{released, waiting, broken}}, network, NewHandlerSink(handler))
		assert.Equal(t, 1, poller.Poll(ctx))
	})

	t.Run("failed delivery is not counted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		network := mocks.NewMockNetwork(ctrl)
		handler := mocks.NewMockCallbackHandler(ctrl)

		network.EXPECT().Status(gomock.Any(), released.ID).Return(ports.NetworkStatus{Released: true, Material: []byte("m")}, nil)
		handler.EXPECT().HandleUnlockCallback(gomock.Any(), released.ID, gomock.Any()).Return(errors.New("store down"))

		poller := NewPoller(stubLister{pending: []*models.UnlockRequest{released}}, network, NewHandlerSink(handler))
		assert.Zero(t, poller.Poll(ctx))
	})

	t.Run("listing failure delivers nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		poller := NewPoller(stubLister{err: errors.New("redis down")}, mocks.NewMockNetwork(ctrl), NewHandlerSink(mocks.NewMockCallbackHandler(ctrl)))
		assert.Zero(t, poller.Poll(ctx))
	})
}
