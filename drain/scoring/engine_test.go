package scoring

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/ownership"
	"github.com/rony4d/go-drain-scorer/inter/providercheck"
)

type staticDirectory []Peer

func (d staticDirectory) Peers(context.Context) ([]Peer, error) { return d, nil }

type fakeQuerier struct {
	mu        sync.Mutex
	responses map[string]*providercheck.Response
	hang      map[string]bool
	inflight  int
	maxFlight int
}

func (q *fakeQuerier) Query(ctx context.Context, p Peer) (*providercheck.Response, error) {
	q.mu.Lock()
	q.inflight++
	if q.inflight > q.maxFlight {
		q.maxFlight = q.inflight
	}
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.inflight--
		q.mu.Unlock()
	}()

	if q.hang[p.Identity] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	time.Sleep(time.Millisecond)
	resp, ok := q.responses[p.Identity]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return resp, nil
}

type fakeClaims struct {
	ledger *claims.Ledger
	err    error
}

func (c fakeClaims) Claims(context.Context) (*claims.Ledger, error) { return c.ledger, c.err }

type memStore struct {
	saved   []State
	err     error
	load    *State
	loadErr error
}

func (s *memStore) Load() (State, error) {
	if s.loadErr != nil {
		return State{}, s.loadErr
	}
	if s.load == nil {
		return State{}, ErrNoState
	}
	return *s.load, nil
}

func (s *memStore) Save(st State) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, st)
	return nil
}

type countingPublisher struct{ got []State }

func (p *countingPublisher) Publish(_ context.Context, s State) error {
	p.got = append(p.got, s)
	return nil
}

// provider is a peer with a real key that signs its own proof.
type provider struct {
	identity string
	key      *ecdsa.PrivateKey
}

func newProvider(t *testing.T, identity string) provider {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return provider{identity: identity, key: key}
}

func (p provider) wallet() string {
	return crypto.PubkeyToAddress(p.key.PublicKey).Hex()
}

func (p provider) response(t *testing.T) *providercheck.Response {
	sig, err := ownership.Sign(p.key, p.identity)
	require.NoError(t, err)
	return providercheck.NewResponse(p.wallet(), sig, "https://api.example.org")
}

func usdcUnits(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e6))
}

type fixture struct {
	peers     []provider
	directory staticDirectory
	querier   *fakeQuerier
	store     *memStore
	publisher *countingPublisher
}

// newFixture builds 5 peers:
// 0 top claimant, 1 claims 30%, 2 verified without claims,
// 3 proof signed for another identity, 4 offline.
func newFixture(t *testing.T) (*fixture, *claims.Ledger) {
	f := &fixture{
		querier:   &fakeQuerier{responses: map[string]*providercheck.Response{}},
		store:     &memStore{},
		publisher: &countingPublisher{},
	}
	for i := 0; i < 5; i++ {
		p := newProvider(t, fmt.Sprintf("5Peer%d", i))
		f.peers = append(f.peers, p)
		f.directory = append(f.directory, Peer{UID: i, Identity: p.identity, URL: "http://peer"})
	}
	for _, p := range f.peers[:3] {
		f.querier.responses[p.identity] = p.response(t)
	}
	forged := f.peers[3]
	sig, err := ownership.Sign(forged.key, "5SomeoneElse")
	require.NoError(t, err)
	f.querier.responses[forged.identity] = providercheck.NewResponse(forged.wallet(), sig, "")

	b := claims.NewBuilder(6)
	b.Add(f.peers[0].wallet(), usdcUnits(100))
	b.Add(f.peers[1].wallet(), usdcUnits(30))
	b.Add(f.peers[3].wallet(), usdcUnits(500))
	return f, b.Build()
}

func (f *fixture) engine(t *testing.T, cfg Config, src ClaimsSource) *Engine {
	e, err := New(cfg, Deps{
		Directory: f.directory,
		Querier:   f.querier,
		Claims:    src,
		Store:     f.store,
		Publisher: f.publisher,
	})
	require.NoError(t, err)
	return e
}

func TestEngine_RunRound(t *testing.T) {
	require := require.New(t)

	f, ledger := newFixture(t)
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})

	rep, err := e.RunRound(context.Background())
	require.NoError(err)
	require.NotEmpty(rep.ID)
	require.Equal(uint64(1), rep.Round)
	// the maximum is taken over the whole ledger, proven or not
	require.Equal(500.0, rep.MaxClaims)

	verdicts := make([]Verdict, len(rep.Assessments))
	for i, a := range rep.Assessments {
		verdicts[i] = a.Verdict
	}
	require.Equal([]Verdict{Scored, Scored, Scored, Unverified, Offline}, verdicts)
	require.Equal(3, rep.Count(Scored))

	require.InDelta(0.4+0.6*100/500, rep.Assessments[0].Reward, 1e-12)
	require.InDelta(0.4+0.6*30/500, rep.Assessments[1].Reward, 1e-12)
	require.InDelta(0.4, rep.Assessments[2].Reward, 1e-12)
	require.Zero(rep.Assessments[3].Reward)
	require.Zero(rep.Assessments[4].Reward)

	st := e.State()
	require.Equal(5, st.Len())
	for i, a := range rep.Assessments {
		require.InDelta(0.1*a.Reward, st.Scores[i], 1e-12)
	}

	require.True(rep.Persisted)
	require.True(rep.Published)
	require.Len(f.store.saved, 1)
	require.Equal(st, f.store.saved[0])
	require.Len(f.publisher.got, 1)
}

// TestEngine_RewardWithoutForgery covers two peers: a wallet
// with 30 against a maximum of 100 earns 0.58.
func TestEngine_RewardWithoutForgery(t *testing.T) {
	f, _ := newFixture(t)
	b := claims.NewBuilder(6)
	b.Add(f.peers[0].wallet(), usdcUnits(100))
	b.Add(f.peers[1].wallet(), usdcUnits(30))

	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: b.Build()})
	rep, err := e.RunRound(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1.0, rep.Assessments[0].Reward, 1e-12)
	require.InDelta(t, 0.58, rep.Assessments[1].Reward, 1e-12)
}

func TestEngine_NoClaims(t *testing.T) {
	f, _ := newFixture(t)
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: claims.Empty()})

	rep, err := e.RunRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, rep.MaxClaims)
	for _, a := range rep.Assessments[:3] {
		require.InDelta(t, 0.4, a.Reward, 1e-12)
	}
}

func TestEngine_ScanFailurePolicy(t *testing.T) {
	scanErr := errors.New("no Polygon RPC available")

	t.Run("availability only by default", func(t *testing.T) {
		f, _ := newFixture(t)
		e := f.engine(t, DefaultConfig(), fakeClaims{err: scanErr})

		rep, err := e.RunRound(context.Background())
		require.NoError(t, err)
		require.False(t, rep.ClaimsRead)
		require.InDelta(t, 0.4, rep.Assessments[0].Reward, 1e-12)
		require.Equal(t, 5, e.State().Len())
		require.Len(t, f.store.saved, 1)
	})

	t.Run("abort", func(t *testing.T) {
		f, _ := newFixture(t)
		cfg := DefaultConfig()
		cfg.AbortOnScanError = true
		e := f.engine(t, cfg, fakeClaims{err: scanErr})

		_, err := e.RunRound(context.Background())
		require.ErrorIs(t, err, scanErr)
		require.Zero(t, e.State().Len(), "aborted round must not touch scores")
		require.Empty(t, f.store.saved)
	})
}

func TestEngine_SlotChangesHands(t *testing.T) {
	require := require.New(t)

	f, ledger := newFixture(t)
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})

	_, err := e.RunRound(context.Background())
	require.NoError(err)
	before := e.State()
	require.Greater(before.Scores[0], 0.0)

	// slot 0 re-registered by a new peer that does not answer
	f.directory[0] = Peer{UID: 0, Identity: "5Newcomer", URL: "http://peer"}
	_, err = e.RunRound(context.Background())
	require.NoError(err)

	after := e.State()
	require.Zero(after.Scores[0])
	require.Equal("5Newcomer", after.Identities[0])
	require.Greater(after.Scores[1], before.Scores[1])
	require.Equal(uint64(2), after.Round)
}

func TestEngine_PollTimeoutAndConcurrency(t *testing.T) {
	f, ledger := newFixture(t)
	f.querier.hang = map[string]bool{f.peers[2].identity: true}

	cfg := DefaultConfig()
	cfg.PollTimeout = 50 * time.Millisecond
	cfg.PollConcurrency = 2
	e := f.engine(t, cfg, fakeClaims{ledger: ledger})

	start := time.Now()
	rep, err := e.RunRound(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Offline, rep.Assessments[2].Verdict)
	assert.LessOrEqual(t, f.querier.maxFlight, 2)
}

func TestEngine_Load(t *testing.T) {
	f, ledger := newFixture(t)
	saved := State{Round: 7, Scores: []float64{0.3}, Identities: []string{f.peers[0].identity}}
	f.store.load = &saved
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})

	require.NoError(t, e.Load())
	require.Equal(t, saved, e.State())

	rep, err := e.RunRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(8), rep.Round)
	require.InDelta(t, 0.9*0.3+0.1*rep.Assessments[0].Reward, e.State().Scores[0], 1e-12)

	// an invalid snapshot is dropped, the engine keeps running from zero
	f.store.load = &State{Scores: []float64{1}}
	e = f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})
	require.NoError(t, e.Load())
	require.Zero(t, e.State().Len())

	f.store.load = nil
	f.store.loadErr = errors.New("snapshot checksum mismatch")
	e = f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})
	require.NoError(t, e.Load())
	require.Zero(t, e.State().Len())
	require.Zero(t, e.State().Round)
}

func TestEngine_PersistFailureIsNotFatal(t *testing.T) {
	f, ledger := newFixture(t)
	f.store.err = errors.New("disk full")
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})

	rep, err := e.RunRound(context.Background())
	require.NoError(t, err)
	require.False(t, rep.Persisted)
	require.Equal(t, 5, e.State().Len())
}

type countdownTrigger struct{ left int }

func (c *countdownTrigger) Wait(ctx context.Context) error {
	if c.left == 0 {
		return context.Canceled
	}
	c.left--
	return ctx.Err()
}

func TestEngine_Run(t *testing.T) {
	f, ledger := newFixture(t)
	e := f.engine(t, DefaultConfig(), fakeClaims{ledger: ledger})

	err := e.Run(context.Background(), &countdownTrigger{left: 3})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, uint64(3), e.State().Round)
	require.Len(t, f.publisher.got, 3)
}

func TestNew_Validation(t *testing.T) {
	f, ledger := newFixture(t)
	cfg := DefaultConfig()
	cfg.Alpha = 0
	_, err := New(cfg, Deps{Directory: f.directory, Querier: f.querier, Claims: fakeClaims{ledger: ledger}})
	require.ErrorIs(t, err, ErrBadAlpha)

	_, err = New(DefaultConfig(), Deps{})
	require.Error(t, err)
}
