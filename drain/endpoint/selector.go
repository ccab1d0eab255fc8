// Package endpoint picks a live Polygon JSON-RPC endpoint from an ordered
// candidate list. Selection happens once, when the scanner is built; a
// transient failure later in a scan is handled per chunk by the scanner and
// never triggers reselection.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

// DefaultProbeTimeout bounds dialing and probing a single candidate.
const DefaultProbeTimeout = 30 * time.Second

// ErrNoEndpointAvailable is returned when every candidate failed.
var ErrNoEndpointAvailable = errors.New("no Polygon RPC available, set POLYGON_RPC_URL")

// Client is the subset of an Ethereum JSON-RPC client the scanner uses.
// *ethclient.Client satisfies it.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

// DialFunc opens a client for url.
type DialFunc func(ctx context.Context, url string) (Client, error)

// DialEth dials url with go-ethereum's ethclient.
func DialEth(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Selected is the winning candidate.
type Selected struct {
	URL    string
	Client Client
	Head   uint64 // head block seen by the probe
}

// Select dials and probes candidates in order and returns the first that
// answers eth_blockNumber within timeout. Empty candidates are skipped; they
// stand for an unset preferred endpoint. A timeout of zero means
// DefaultProbeTimeout.
func Select(ctx context.Context, candidates []string, dial DialFunc, timeout time.Duration) (*Selected, error) {
	if dial == nil {
		dial = DialEth
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	var lastErr error
	for _, url := range candidates {
		if url == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel, err := probe(ctx, url, dial, timeout)
		if err != nil {
			log.WithField("rpc", Redact(url)).Warnf("RPC failed: %v", err)
			lastErr = err
			continue
		}
		log.WithFields(log.Fields{"rpc": Redact(url), "head": sel.Head}).Info("Connected to Polygon RPC")
		return sel, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrNoEndpointAvailable, lastErr)
	}
	return nil, ErrNoEndpointAvailable
}

func probe(ctx context.Context, url string, dial DialFunc, timeout time.Duration) (*Selected, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := dial(pctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	head, err := c.BlockNumber(pctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("probe: %w", err)
	}
	return &Selected{URL: url, Client: c, Head: head}, nil
}

// Redact shortens an endpoint URL for logs; hosted RPC URLs carry API keys
// in their path.
func Redact(url string) string {
	const keep = 40
	if len(url) <= keep {
		return url
	}
	return url[:keep] + "..."
}
