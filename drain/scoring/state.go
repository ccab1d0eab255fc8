package scoring

import (
	"errors"
	"fmt"
	"math"
)

// DefaultAlpha is the EMA smoothing factor.
const DefaultAlpha = 0.1

var ErrBadAlpha = errors.New("alpha must be in (0, 1]")

// ValidateAlpha checks the smoothing factor.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return fmt.Errorf("%w, got %v", ErrBadAlpha, alpha)
	}
	return nil
}

// State is the persistent score vector, one slot per peer, together with
// the identity that held each slot when it was last scored.
//
// A State is never mutated in place once published: Resync and Blend return
// new values.
type State struct {
	Round      uint64
	Scores     []float64
	Identities []string
}

// NewState returns an all-zero state for the given identities.
func NewState(identities []string) State {
	ids := make([]string, len(identities))
	copy(ids, identities)
	return State{
		Scores:     make([]float64, len(ids)),
		Identities: ids,
	}
}

// Len returns the number of slots.
func (s State) Len() int {
	return len(s.Scores)
}

// Copy returns a deep copy.
func (s State) Copy() State {
	out := State{
		Round:      s.Round,
		Scores:     make([]float64, len(s.Scores)),
		Identities: make([]string, len(s.Identities)),
	}
	copy(out.Scores, s.Scores)
	copy(out.Identities, s.Identities)
	return out
}

// Validate checks that scores and identities line up and every score is a
// finite, non-negative number.
func (s State) Validate() error {
	if len(s.Scores) != len(s.Identities) {
		return fmt.Errorf("state has %d scores for %d identities", len(s.Scores), len(s.Identities))
	}
	for i, v := range s.Scores {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("slot %d has invalid score %v", i, v)
		}
	}
	return nil
}

// Resync aligns the state with the current peer set. Slots whose identity
// changed are zeroed, then the vector is truncated or zero-extended to the
// new size. Surviving slots keep their scores.
func (s State) Resync(identities []string) (State, []int) {
	out := State{
		Round:      s.Round,
		Scores:     make([]float64, len(identities)),
		Identities: make([]string, len(identities)),
	}
	copy(out.Identities, identities)

	var replaced []int
	for i := range identities {
		if i >= len(s.Scores) {
			break
		}
		if i < len(s.Identities) && s.Identities[i] == identities[i] {
			out.Scores[i] = s.Scores[i]
			continue
		}
		replaced = append(replaced, i)
	}
	return out, replaced
}

// Blend folds rewards for the given slots into the scores with an
// exponential moving average:
//
//	score[uid] = alpha*reward + (1-alpha)*score[uid]
//
// Slots without a reward decay as if rewarded 0. NaN rewards count as 0 and
// slots outside the vector are ignored. rewards and uids are parallel.
func (s State) Blend(rewards []float64, uids []int, alpha float64) State {
	scattered := make([]float64, len(s.Scores))
	for i, uid := range uids {
		if i >= len(rewards) || uid < 0 || uid >= len(scattered) {
			continue
		}
		r := rewards[i]
		if math.IsNaN(r) {
			r = 0
		}
		scattered[uid] = r
	}

	out := s.Copy()
	for i := range out.Scores {
		out.Scores[i] = alpha*scattered[i] + (1-alpha)*s.Scores[i]
	}
	return out
}

// Max returns the highest score, 0 for an empty state.
func (s State) Max() float64 {
	max := 0.0
	for _, v := range s.Scores {
		if v > max {
			max = v
		}
	}
	return max
}
