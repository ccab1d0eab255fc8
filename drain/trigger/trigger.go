// Package trigger decides when a scoring round is due: once the external
// block height has advanced by an epoch since the last round.
package trigger

import (
	"context"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	log "github.com/sirupsen/logrus"
)

// HeightSource reports the current external block height.
type HeightSource interface {
	Height(ctx context.Context) (idx.Block, error)
}

// Clock derives a height from wall time: one block per BlockTime since
// Genesis.
type Clock struct {
	Genesis   time.Time
	BlockTime time.Duration
	Now       func() time.Time
}

// Height implements HeightSource.
func (c Clock) Height(context.Context) (idx.Block, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.BlockTime <= 0 {
		return 0, nil
	}
	elapsed := now().Sub(c.Genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return idx.Block(elapsed / c.BlockTime), nil
}

// BlockNumberer is any chain client with a head block.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Chain reads the height from a chain client.
type Chain struct {
	Client BlockNumberer
}

// Height implements HeightSource.
func (c Chain) Height(ctx context.Context) (idx.Block, error) {
	n, err := c.Client.BlockNumber(ctx)
	return idx.Block(n), err
}

// Epoch fires every Length blocks. The first Wait returns at once.
type Epoch struct {
	Length   uint64
	Source   HeightSource
	Interval time.Duration // how often to poll the source

	started bool
	last    idx.Block
}

// Ready reports whether a round is due at height h and, if so, marks it
// started.
func (e *Epoch) Ready(h idx.Block) bool {
	if e.started && uint64(h) < uint64(e.last)+e.Length {
		return false
	}
	e.started = true
	e.last = h
	return true
}

// Wait blocks until Ready or ctx is done. Height errors are logged and
// retried.
func (e *Epoch) Wait(ctx context.Context) error {
	interval := e.Interval
	if interval <= 0 {
		interval = 12 * time.Second
	}
	for {
		h, err := e.Source.Height(ctx)
		if err != nil {
			log.Warnf("Failed to read block height: %v", err)
		} else if e.Ready(h) {
			log.WithField("height", h).Debug("Epoch reached")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
