package endpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	url    string
	head   uint64
	err    error
	hang   bool
	closed bool
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if c.hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return c.head, c.err
}

func (c *fakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *fakeClient) Close() { c.closed = true }

type fakeNet struct {
	clients map[string]*fakeClient
	dialErr map[string]error
	dialed  []string
}

func (n *fakeNet) dial(_ context.Context, url string) (Client, error) {
	n.dialed = append(n.dialed, url)
	if err := n.dialErr[url]; err != nil {
		return nil, err
	}
	return n.clients[url], nil
}

func TestSelect_FirstLiveWins(t *testing.T) {
	require := require.New(t)

	net := &fakeNet{
		clients: map[string]*fakeClient{
			"https://down": {err: errors.New("503")},
			"https://up-1": {head: 100},
			"https://up-2": {head: 200},
		},
		dialErr: map[string]error{"https://bad": errors.New("no such host")},
	}

	sel, err := Select(context.Background(),
		[]string{"", "https://bad", "https://down", "https://up-1", "https://up-2"},
		net.dial, time.Second)
	require.NoError(err)
	require.Equal("https://up-1", sel.URL)
	require.Equal(uint64(100), sel.Head)

	// empty preferred entry skipped, nothing after the winner dialed
	require.Equal([]string{"https://bad", "https://down", "https://up-1"}, net.dialed)
	require.True(net.clients["https://down"].closed, "failed probe must release its client")
	require.False(net.clients["https://up-1"].closed)
}

func TestSelect_Exhausted(t *testing.T) {
	net := &fakeNet{
		clients: map[string]*fakeClient{"https://down": {err: errors.New("503")}},
	}

	_, err := Select(context.Background(), []string{"", "https://down"}, net.dial, time.Second)
	require.ErrorIs(t, err, ErrNoEndpointAvailable)

	_, err = Select(context.Background(), []string{"", ""}, net.dial, time.Second)
	require.ErrorIs(t, err, ErrNoEndpointAvailable)

	_, err = Select(context.Background(), nil, net.dial, time.Second)
	require.ErrorIs(t, err, ErrNoEndpointAvailable)
}

// TestSelect_ProbeTimeout checks that a hanging candidate is abandoned after
// the probe timeout and the next one is tried.
func TestSelect_ProbeTimeout(t *testing.T) {
	net := &fakeNet{
		clients: map[string]*fakeClient{
			"https://slow": {hang: true},
			"https://fast": {head: 9},
		},
	}

	start := time.Now()
	sel, err := Select(context.Background(), []string{"https://slow", "https://fast"}, net.dial, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "https://fast", sel.URL)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestSelect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Select(ctx, []string{"https://up"}, (&fakeNet{}).dial, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedact(t *testing.T) {
	require.Equal(t, "https://polygon-rpc.com", Redact("https://polygon-rpc.com"))
	long := "https://polygon-mainnet.g.alchemy.com/v2/secret-api-key"
	require.Equal(t, long[:40]+"...", Redact(long))
}
