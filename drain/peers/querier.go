// Package peers asks providers for their identity-check record over
// JSON-RPC.
package peers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/inter/providercheck"
)

// ErrPeerUnreachable wraps every transport failure.
var ErrPeerUnreachable = errors.New("peer unreachable")

// RPCQuerier calls providercheck.Method on each peer's URL.
type RPCQuerier struct {
	dial func(ctx context.Context, url string) (*rpc.Client, error)
}

// NewRPCQuerier returns a querier dialing with rpc.DialContext.
func NewRPCQuerier() *RPCQuerier {
	return &RPCQuerier{dial: rpc.DialContext}
}

// Query implements scoring.Querier. A null result is returned as a nil
// response without error.
func (q *RPCQuerier) Query(ctx context.Context, p scoring.Peer) (*providercheck.Response, error) {
	c, err := q.dial(ctx, p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: uid %d: %v", ErrPeerUnreachable, p.UID, err)
	}
	defer c.Close()

	var resp *providercheck.Response
	if err := c.CallContext(ctx, &resp, providercheck.Method); err != nil {
		return nil, fmt.Errorf("%w: uid %d: %v", ErrPeerUnreachable, p.UID, err)
	}
	return resp, nil
}
