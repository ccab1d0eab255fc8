package peers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-drain-scorer/drain/ownership"
	"github.com/rony4d/go-drain-scorer/drain/provider"
	"github.com/rony4d/go-drain-scorer/drain/scoring"
)

const (
	identity = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	keyHex   = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
)

func serveProvider(t *testing.T, cfg provider.Config) *httptest.Server {
	api, err := provider.NewAPI(cfg)
	require.NoError(t, err)
	h, err := provider.Handler(api)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCQuerier_Query(t *testing.T) {
	srv := serveProvider(t, provider.Config{Identity: identity, PrivateKey: keyHex, APIURL: "https://api.example.org"})

	resp, err := NewRPCQuerier().Query(context.Background(), scoring.Peer{UID: 3, Identity: identity, URL: srv.URL})
	require.NoError(t, err)
	require.True(t, resp.Complete())

	wallet, _ := resp.Wallet()
	sig, _ := resp.Proof()
	require.True(t, ownership.Verify(wallet, sig, identity))
	require.False(t, ownership.Verify(wallet, sig, "5SomeoneElse"))
}

func TestRPCQuerier_Unreachable(t *testing.T) {
	srv := serveProvider(t, provider.Config{Identity: identity})
	url := srv.URL
	srv.Close()

	_, err := NewRPCQuerier().Query(context.Background(), scoring.Peer{URL: url})
	require.ErrorIs(t, err, ErrPeerUnreachable)

	_, err = NewRPCQuerier().Query(context.Background(), scoring.Peer{URL: "ftp://nowhere"})
	require.ErrorIs(t, err, ErrPeerUnreachable)
}

func TestRPCQuerier_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewRPCQuerier().Query(ctx, scoring.Peer{URL: srv.URL})
	require.ErrorIs(t, err, ErrPeerUnreachable)
}

// TestRPCQuerier_NullResult: a peer that answers null is reachable but has
// nothing to prove.
func TestRPCQuerier_NullResult(t *testing.T) {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("provider", new(nullService)))
	hs := httptest.NewServer(srv)
	defer hs.Close()

	resp, err := NewRPCQuerier().Query(context.Background(), scoring.Peer{URL: hs.URL})
	require.NoError(t, err)
	require.Nil(t, resp)
	require.False(t, resp.Complete())
}

type nullService struct{}

func (nullService) Check() *struct{} { return nil }
