// Package scanner rebuilds the claims ledger from ChannelClaimed logs over a
// trailing block window.
//
// The window is split into sub-ranges no larger than the provider's
// eth_getLogs limit and fetched one after another; public Polygon endpoints
// rate-limit aggressively, so chunks are never fetched in parallel. A failed
// chunk is recorded as skipped and the scan moves on.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/contract"
	"github.com/rony4d/go-drain-scorer/drain/endpoint"
)

// Config parameterises a Scanner.
type Config struct {
	Contract     common.Address
	Topic        common.Hash
	WindowDays   uint64
	BlocksPerDay uint64
	ChunkSize    uint64
	Decimals     uint8
	// RequestsPerSecond paces chunk queries; 0 means unpaced.
	RequestsPerSecond float64
}

// DefaultConfig returns the mainnet DRAIN settings: 7-day window, ~43200
// Polygon blocks per day, 2000-block chunks.
func DefaultConfig() Config {
	return Config{
		Contract:     contract.DrainChannelAddress,
		Topic:        contract.ChannelClaimedTopic,
		WindowDays:   7,
		BlocksPerDay: 43200,
		ChunkSize:    2000,
		Decimals:     contract.USDCDecimals,
	}
}

// WindowBlocks is the window length in blocks.
func (c Config) WindowBlocks() uint64 {
	return c.WindowDays * c.BlocksPerDay
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.ChunkSize == 0 {
		return errors.New("chunk size must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("request rate must not be negative")
	}
	if c.Contract == (common.Address{}) {
		return errors.New("contract address is not set")
	}
	return nil
}

// LogSource is what a scan reads from.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Result is one complete scan.
type Result struct {
	Window BlockRange
	Ledger *claims.Ledger
	Stats  Stats
	Took   time.Duration
}

// Scanner owns the claims ledger and rebuilds it on every Scan.
type Scanner struct {
	cfg     Config
	source  LogSource
	url     string
	limiter *rate.Limiter

	mu     sync.RWMutex
	ledger *claims.Ledger
}

// New wraps an already connected source.
func New(cfg Config, source LogSource) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Scanner{
		cfg:     cfg,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		ledger:  claims.Empty(),
	}, nil
}

// Connect selects a live endpoint from candidates and builds a Scanner on
// it. It fails with endpoint.ErrNoEndpointAvailable when none answers.
func Connect(ctx context.Context, cfg Config, candidates []string, dial endpoint.DialFunc, probeTimeout time.Duration) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sel, err := endpoint.Select(ctx, candidates, dial, probeTimeout)
	if err != nil {
		return nil, err
	}
	s, err := New(cfg, sel.Client)
	if err != nil {
		sel.Client.Close()
		return nil, err
	}
	s.url = sel.URL
	return s, nil
}

// Close releases the underlying client when it has a Close method.
func (s *Scanner) Close() {
	if c, ok := s.source.(interface{ Close() }); ok {
		c.Close()
	}
}

// URL is the endpoint chosen by Connect, empty for a Scanner built with New.
func (s *Scanner) URL() string {
	return s.url
}

// BlockNumber reads the current head from the selected endpoint.
func (s *Scanner) BlockNumber(ctx context.Context) (uint64, error) {
	return s.source.BlockNumber(ctx)
}

// Ledger returns the ledger built by the last successful Scan.
func (s *Scanner) Ledger() *claims.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// Scan reads the trailing window ending at the current head and replaces
// the owned ledger. Only failure to read the head, or cancellation, is an
// error; chunk failures degrade the result.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	head, err := s.source.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read head block: %w", err)
	}

	window := Window(idx.Block(head), s.cfg.WindowBlocks())
	chunks := Split(window, s.cfg.ChunkSize)

	log.WithFields(log.Fields{
		"from":   window.From,
		"to":     window.To,
		"chunks": len(chunks),
		"days":   s.cfg.WindowDays,
	}).Info("Scanning ChannelClaimed events")

	outcomes := make([]ChunkOutcome, 0, len(chunks))
	for _, r := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		outcomes = append(outcomes, s.fetch(ctx, r))
	}

	ledger, stats := Fold(outcomes, s.cfg.Decimals)

	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()

	res := &Result{Window: window, Ledger: ledger, Stats: stats, Took: time.Since(start)}
	entry := log.WithFields(log.Fields{
		"events":    stats.Events,
		"providers": ledger.Len(),
		"skipped":   stats.SkippedChunks,
		"malformed": stats.Malformed,
		"took":      res.Took.Round(time.Millisecond),
	})
	if stats.Degraded() {
		entry.Warnf("Scan complete with %d unread blocks", stats.SkippedBlocks)
	} else {
		entry.Info("Scan complete")
	}
	return res, nil
}

// Claims runs a Scan and returns only the ledger.
func (s *Scanner) Claims(ctx context.Context) (*claims.Ledger, error) {
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return res.Ledger, nil
}

func (s *Scanner) fetch(ctx context.Context, r BlockRange) ChunkOutcome {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(uint64(r.From)),
		ToBlock:   new(big.Int).SetUint64(uint64(r.To)),
		Addresses: []common.Address{s.cfg.Contract},
		Topics:    [][]common.Hash{{s.cfg.Topic}},
	}
	logs, err := s.source.FilterLogs(ctx, q)
	if err != nil {
		log.WithField("blocks", r.String()).Warnf("Log query failed: %v", err)
		return Skipped(r, err)
	}
	return Ok(r, logs)
}
