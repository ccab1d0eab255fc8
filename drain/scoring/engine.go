// Package scoring turns peer availability, wallet ownership and on-chain
// claim volume into a persistent score vector.
//
// A round runs in phases: resync with the peer directory, poll every peer
// concurrently, rebuild the claims ledger, score each peer, fold the rewards
// into the EMA vector, persist it and hand it to the weight publisher. Only
// one round runs at a time; the vector is replaced as a whole under a lock so
// readers always see a consistent snapshot.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/ownership"
	"github.com/rony4d/go-drain-scorer/inter/providercheck"
)

// ErrNoState is returned by a StateStore with nothing saved yet.
var ErrNoState = errors.New("no saved score state")

// Peer is one slot of the peer set.
type Peer struct {
	UID      int
	Identity string
	URL      string
}

// Directory lists the current peer set, ordered by UID from 0.
type Directory interface {
	Peers(ctx context.Context) ([]Peer, error)
}

// Querier asks a peer for its identity-check record.
type Querier interface {
	Query(ctx context.Context, p Peer) (*providercheck.Response, error)
}

// ClaimsSource rebuilds the claims ledger.
type ClaimsSource interface {
	Claims(ctx context.Context) (*claims.Ledger, error)
}

// StateStore persists the score vector.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Publisher hands finished scores to the outside world.
type Publisher interface {
	Publish(ctx context.Context, s State) error
}

// Trigger blocks until the next round is due.
type Trigger interface {
	Wait(ctx context.Context) error
}

// VerifyFunc checks a wallet ownership proof.
type VerifyFunc func(wallet, signature, identity string) bool

// PollResult is the answer of one peer, or why there was none.
type PollResult struct {
	Peer     Peer
	Response *providercheck.Response
	Err      error
}

// Config tunes an Engine.
type Config struct {
	Weights         Weights
	Alpha           float64
	PollTimeout     time.Duration
	PollConcurrency int
	// AbortOnScanError abandons the round when the claims scan fails. By
	// default the round goes on and scores availability only.
	AbortOnScanError bool
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		Alpha:           DefaultAlpha,
		PollTimeout:     30 * time.Second,
		PollConcurrency: 32,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := ValidateAlpha(c.Alpha); err != nil {
		return err
	}
	if c.PollTimeout <= 0 {
		return errors.New("poll timeout must be positive")
	}
	return nil
}

// Deps are the engine's collaborators. Store and Publisher may be nil.
type Deps struct {
	Directory Directory
	Querier   Querier
	Claims    ClaimsSource
	Store     StateStore
	Publisher Publisher
	Verify    VerifyFunc
}

// Report summarises a finished round.
type Report struct {
	ID          string
	Round       uint64
	Assessments []Assessment
	MaxClaims   float64
	ClaimsRead  bool
	Persisted   bool
	Published   bool
}

// Count returns how many peers got verdict v.
func (r *Report) Count(v Verdict) int {
	n := 0
	for _, a := range r.Assessments {
		if a.Verdict == v {
			n++
		}
	}
	return n
}

// Engine runs scoring rounds.
type Engine struct {
	cfg  Config
	deps Deps

	round sync.Mutex // serialises rounds

	mu    sync.RWMutex
	state State
}

// New builds an Engine with an empty state.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Directory == nil || deps.Querier == nil || deps.Claims == nil {
		return nil, errors.New("scoring engine needs a directory, a querier and a claims source")
	}
	if deps.Verify == nil {
		deps.Verify = ownership.Verify
	}
	if cfg.PollConcurrency <= 0 {
		cfg.PollConcurrency = 1
	}
	return &Engine{cfg: cfg, deps: deps}, nil
}

// Load restores the state from the store. A missing or unreadable snapshot
// leaves the scores at zero; the error is only logged.
func (e *Engine) Load() error {
	if e.deps.Store == nil {
		return nil
	}
	s, err := e.deps.Store.Load()
	if errors.Is(err, ErrNoState) {
		log.Info("No saved scores, starting from zero")
		return nil
	}
	if err == nil {
		err = s.Validate()
	}
	if err != nil {
		log.Warnf("Discarding saved scores, starting from zero: %v", err)
		return nil
	}
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	log.WithFields(log.Fields{"round": s.Round, "slots": s.Len()}).Info("Loaded saved scores")
	return nil
}

// State returns a copy of the current scores.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Copy()
}

// Run executes a round every time trigger fires, until ctx is done. A failed
// round is logged and does not stop the loop.
func (e *Engine) Run(ctx context.Context, trigger Trigger) error {
	for {
		if err := trigger.Wait(ctx); err != nil {
			return err
		}
		if _, err := e.RunRound(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("Scoring round failed: %v", err)
		}
	}
}

// RunRound executes one complete round.
func (e *Engine) RunRound(ctx context.Context) (*Report, error) {
	e.round.Lock()
	defer e.round.Unlock()

	report := &Report{ID: uuid.New().String()}
	logger := log.WithField("round_id", report.ID)
	start := time.Now()

	// resync
	peers, err := e.deps.Directory.Peers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	identities := make([]string, len(peers))
	for i, p := range peers {
		if p.UID != i {
			return nil, fmt.Errorf("peer directory is not dense: slot %d holds uid %d", i, p.UID)
		}
		identities[i] = p.Identity
	}

	// poll
	polls, err := e.poll(ctx, peers)
	if err != nil {
		return nil, err
	}

	// claims
	ledger, err := e.deps.Claims.Claims(ctx)
	switch {
	case err == nil:
		report.ClaimsRead = true
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case e.cfg.AbortOnScanError:
		return nil, fmt.Errorf("scan claims: %w", err)
	default:
		logger.Warnf("Claims scan failed, scoring availability only: %v", err)
		ledger = claims.Empty()
	}
	report.MaxClaims = ledger.Max()
	if report.MaxClaims == 0 {
		report.MaxClaims = 1
	}

	// score
	report.Assessments = make([]Assessment, len(polls))
	rewards := make([]float64, len(polls))
	uids := make([]int, len(polls))
	for i, pr := range polls {
		a := e.assess(pr, ledger, report.MaxClaims)
		report.Assessments[i] = a
		rewards[i] = a.Reward
		uids[i] = a.UID
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// update
	e.mu.Lock()
	next, replaced := e.state.Resync(identities)
	next = next.Blend(rewards, uids, e.cfg.Alpha)
	next.Round = e.state.Round + 1
	e.state = next
	e.mu.Unlock()
	report.Round = next.Round

	for _, uid := range replaced {
		logger.WithField("uid", uid).Debug("Slot changed hands, score reset")
	}

	// persist
	if e.deps.Store != nil {
		if err := e.deps.Store.Save(next.Copy()); err != nil {
			logger.Errorf("Failed to save scores: %v", err)
		} else {
			report.Persisted = true
		}
	}

	// publish
	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.Publish(ctx, next.Copy()); err != nil {
			logger.Errorf("Failed to publish weights: %v", err)
		} else {
			report.Published = true
		}
	}

	logger.WithFields(log.Fields{
		"round":      report.Round,
		"peers":      len(peers),
		"scored":     report.Count(Scored),
		"unverified": report.Count(Unverified),
		"offline":    report.Count(Offline),
		"claimants":  ledger.Len(),
		"max_claims": report.MaxClaims,
		"took":       time.Since(start).Round(time.Millisecond),
	}).Info("Scoring round complete")

	return report, nil
}

func (e *Engine) poll(ctx context.Context, peers []Peer) ([]PollResult, error) {
	results := make([]PollResult, len(peers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PollConcurrency)
	for i, p := range peers {
		i, p := i, p
		results[i].Peer = p
		if p.URL == "" {
			results[i].Err = errors.New("peer has no address")
			continue
		}
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, e.cfg.PollTimeout)
			defer cancel()
			resp, err := e.deps.Querier.Query(pctx, p)
			results[i].Response, results[i].Err = resp, err
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) assess(pr PollResult, ledger *claims.Ledger, maxClaims float64) Assessment {
	a := Assessment{UID: pr.Peer.UID, Verdict: Offline}
	entry := log.WithFields(log.Fields{"uid": pr.Peer.UID, "identity": pr.Peer.Identity})

	if pr.Err != nil {
		entry.Debugf("Peer unreachable: %v", pr.Err)
		return a
	}
	if !pr.Response.Complete() {
		entry.Debug("Peer answered without a wallet proof")
		return a
	}
	wallet, _ := pr.Response.Wallet()
	sig, _ := pr.Response.Proof()
	a.Wallet = claims.Key(wallet)

	if !e.deps.Verify(wallet, sig, pr.Peer.Identity) {
		a.Verdict = Unverified
		entry.WithField("wallet", a.Wallet).Debug("Wallet proof rejected")
		return a
	}

	a.Verdict = Scored
	a.Claims = ledger.Get(wallet)
	a.Reward = e.cfg.Weights.Reward(a.Claims, maxClaims)
	entry.WithFields(log.Fields{
		"wallet": a.Wallet,
		"claims": a.Claims,
		"reward": a.Reward,
	}).Debug("Peer scored")
	return a
}
