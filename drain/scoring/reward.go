package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Weights splits a reward between being reachable with a verified wallet
// and the wallet's share of claimed volume. They must sum to 1.
type Weights struct {
	Availability float64
	Claims       float64
}

// DefaultWeights is the production 40/60 split.
func DefaultWeights() Weights {
	return Weights{Availability: 0.4, Claims: 0.6}
}

const weightsEpsilon = 1e-9

// Validate checks both weights are in [0,1] and sum to 1.
func (w Weights) Validate() error {
	if math.IsNaN(w.Availability) || math.IsNaN(w.Claims) {
		return errors.New("reward weights must be numbers")
	}
	if w.Availability < 0 || w.Claims < 0 {
		return fmt.Errorf("reward weights must be non-negative, got %v/%v", w.Availability, w.Claims)
	}
	if math.Abs(w.Availability+w.Claims-1) > weightsEpsilon {
		return fmt.Errorf("reward weights must sum to 1, got %v", w.Availability+w.Claims)
	}
	return nil
}

// Reward of a verified peer: the availability part, plus the claims part
// scaled by the peer's claims relative to the best claimant. maxClaims of 0
// is treated as 1. The ratio is clamped to [0,1].
func (w Weights) Reward(claims, maxClaims float64) float64 {
	if maxClaims <= 0 || math.IsNaN(maxClaims) {
		maxClaims = 1
	}
	ratio := claims / maxClaims
	switch {
	case math.IsNaN(ratio) || ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return w.Availability + w.Claims*ratio
}

// Verdict classifies a polled peer.
type Verdict uint8

const (
	// Offline peers did not answer, or answered without a wallet and proof.
	Offline Verdict = iota
	// Unverified peers answered, but the proof does not recover to the wallet.
	Unverified
	// Scored peers proved their wallet.
	Scored
)

func (v Verdict) String() string {
	switch v {
	case Offline:
		return "offline"
	case Unverified:
		return "unverified"
	case Scored:
		return "scored"
	}
	return fmt.Sprintf("verdict(%d)", uint8(v))
}

// Assessment is the outcome of scoring one peer.
type Assessment struct {
	UID     int
	Wallet  string
	Verdict Verdict
	Claims  float64
	Reward  float64
}
