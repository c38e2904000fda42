package resolver

//go:generate mockgen -source=../ports/ports.go -destination=../ports/mocks/mocks.go -package=mocks NameService

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"unikyc/internal/identity/ports/mocks"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
)

const aliceAddr = id.Address("0x1111111111111111111111111111111111111111")

type ResolverSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	names    *mocks.MockNameService
	resolver *Resolver
	ctx      context.Context
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.names = mocks.NewMockNameService(s.ctrl)
	s.resolver = New(s.names)
	s.ctx = context.Background()
}

func (s *ResolverSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolverSuite) TestAddressLiteral() {
	s.Run("mixed case and lowercase literals yield the same identifier", func() {
		upper, err := s.resolver.Resolve(s.ctx, "0xABCDEFabcdef0123456789ABCDEF0123456789ab")
		s.Require().NoError(err)
		lower, err := s.resolver.Resolve(s.ctx, "0xabcdefabcdef0123456789abcdef0123456789ab")
		s.Require().NoError(err)
		s.Equal(upper, lower)
		s.Equal(id.Address("0xabcdefabcdef0123456789abcdef0123456789ab"), lower.Address)
		s.Empty(lower.Name)
	})

	s.Run("surrounding whitespace is trimmed", func() {
		got, err := s.resolver.Resolve(s.ctx, "  "+aliceAddr.String()+"\n")
		s.Require().NoError(err)
		s.Equal(aliceAddr, got.Address)
	})
}

func (s *ResolverSuite) TestInvalidInput() {
	for _, input := range []string{"", "   ", "alice", "alice..eth", "0x1234"} {
		_, err := s.resolver.Resolve(s.ctx, input)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "input %q: %v", input, err)
	}
}

func (s *ResolverSuite) TestForwardResolution() {
	s.Run("forward target wins when reverse record agrees", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return([]string{"alice.eth"}, nil)

		got, err := s.resolver.Resolve(s.ctx, "Alice.ETH")
		s.Require().NoError(err)
		s.Equal(aliceAddr, got.Address)
		s.Equal("alice.eth", got.Name)
	})

	s.Run("forward target wins with no reverse records", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "bob.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return(nil, nil)

		got, err := s.resolver.Resolve(s.ctx, "bob.eth")
		s.Require().NoError(err)
		s.Equal(aliceAddr, got.Address)
	})

	s.Run("single differing reverse name does not override forward", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "carol.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return([]string{"alice.eth", "ALICE.eth "}, nil)

		got, err := s.resolver.Resolve(s.ctx, "carol.eth")
		s.Require().NoError(err)
		s.Equal(aliceAddr, got.Address)
		s.Equal("carol.eth", got.Name)
	})

	s.Run("forward address is canonicalized", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "dave.eth").
			Return(id.Address("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"), true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), id.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")).Return(nil, nil)

		got, err := s.resolver.Resolve(s.ctx, "dave.eth")
		s.Require().NoError(err)
		s.Equal(id.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), got.Address)
	})
}

func (s *ResolverSuite) TestResolutionErrors() {
	s.Run("no forward record", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "ghost.eth").Return(id.Address(""), false, nil)

		_, err := s.resolver.Resolve(s.ctx, "ghost.eth")
		s.True(dErrors.HasCode(err, dErrors.CodeResolutionNotFound), "got %v", err)
	})

	s.Run("several distinct reverse names without the label", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return([]string{"mallory.eth", "trent.eth"}, nil)

		_, err := s.resolver.Resolve(s.ctx, "alice.eth")
		s.True(dErrors.HasCode(err, dErrors.CodeResolutionAmbiguous), "got %v", err)
	})

	s.Run("several reverse names including the label", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return([]string{"mallory.eth", "alice.eth"}, nil)

		got, err := s.resolver.Resolve(s.ctx, "alice.eth")
		s.Require().NoError(err)
		s.Equal(aliceAddr, got.Address)
	})

	s.Run("forward collaborator failure", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").Return(id.Address(""), false, errors.New("rpc down"))

		_, err := s.resolver.Resolve(s.ctx, "alice.eth")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
		s.True(dErrors.IsRetryable(err))
	})

	s.Run("backward collaborator failure", func() {
		s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").Return(aliceAddr, true, nil)
		s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return(nil, errors.New("rpc down"))

		_, err := s.resolver.Resolve(s.ctx, "alice.eth")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
	})
}

func (s *ResolverSuite) TestConcurrentLookupsAreCollapsed() {
	release := make(chan struct{})
	var calls atomic.Int32
	s.names.EXPECT().ResolveForward(gomock.Any(), "alice.eth").DoAndReturn(
		func(context.Context, string) (id.Address, bool, error) {
			calls.Add(1)
			<-release
			return aliceAddr, true, nil
		}).MinTimes(1)
	s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).Return([]string{"alice.eth"}, nil).MinTimes(1)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.resolver.Resolve(s.ctx, "alice.eth")
			if err == nil && got.Address != aliceAddr {
				err = errors.New("unexpected address " + got.Address.String())
			}
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Less(calls.Load(), int32(callers))
}

func (s *ResolverSuite) TestCancelledCallerDoesNotWait() {
	release := make(chan struct{})
	finished := make(chan struct{})
	s.names.EXPECT().ResolveForward(gomock.Any(), "slow.eth").DoAndReturn(
		func(context.Context, string) (id.Address, bool, error) {
			<-release
			return aliceAddr, true, nil
		})
	s.names.EXPECT().ResolveBackward(gomock.Any(), aliceAddr).DoAndReturn(
		func(context.Context, id.Address) ([]string, error) {
			close(finished)
			return nil, nil
		})

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Millisecond)
	defer cancel()
	_, err := s.resolver.Resolve(ctx, "slow.eth")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)

	close(release)
	<-finished
}
