// Package simnet simulates the public ledger and the conditional-encryption
// network in process, for development and tests.
package simnet

import (
	"context"
	"sync"
	"time"
)

// Chain derives block height from wall-clock time: StartHeight at genesis,
// one block every BlockTime, plus any blocks added with Advance.
type Chain struct {
	startHeight uint64
	blockTime   time.Duration
	genesis     time.Time
	now         func() time.Time

	mu       sync.Mutex
	advanced uint64
}

type ChainOption func(*Chain)

// WithClock replaces time.Now, freezing height unless the clock moves.
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) { c.now = now }
}

func NewChain(startHeight uint64, blockTime time.Duration, opts ...ChainOption) *Chain {
	c := &Chain{startHeight: startHeight, blockTime: blockTime, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.genesis = c.now()
	return c
}

func (c *Chain) CurrentHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	height := c.startHeight + c.advanced
	if c.blockTime > 0 {
		height += uint64(c.now().Sub(c.genesis) / c.blockTime)
	}
	return height, nil
}

// Advance mines n blocks immediately.
func (c *Chain) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanced += n
}
