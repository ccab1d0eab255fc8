// Package publish turns scores into normalised weights and hands them on.
package publish

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	log "github.com/sirupsen/logrus"

	"github.com/rony4d/go-drain-scorer/drain/scoring"
)

// MaxWeight is the weight of a peer holding the entire score mass.
const MaxWeight = 65535

// FileName is where the last weight set is written inside the data dir.
const FileName = "weights.json"

// ValidatorID maps a slot to a weight id; ids start at 1.
func ValidatorID(uid int) idx.ValidatorID {
	return idx.ValidatorID(uid + 1)
}

// UID is the inverse of ValidatorID.
func UID(id idx.ValidatorID) int {
	return int(id) - 1
}

// Normalize scales scores to sum to 1. NaN and negative scores count as 0.
// ok is false when nothing is left to normalise.
func Normalize(scores []float64) (weights []float64, ok bool) {
	sum := 0.0
	clean := make([]float64, len(scores))
	for i, v := range scores {
		if math.IsNaN(v) || v < 0 || math.IsInf(v, 0) {
			continue
		}
		clean[i] = v
		sum += v
	}
	if sum == 0 {
		return clean, false
	}
	for i := range clean {
		clean[i] /= sum
	}
	return clean, true
}

// Weights converts scores into a pos weight set. Peers with no weight are
// left out. ok is false when every score is zero.
func Weights(scores []float64) (*pos.Validators, bool) {
	norm, ok := Normalize(scores)
	if !ok {
		return pos.NewBuilder().Build(), false
	}
	b := pos.NewBuilder()
	for uid, w := range norm {
		if v := pos.Weight(math.Round(w * MaxWeight)); v > 0 {
			b.Set(ValidatorID(uid), v)
		}
	}
	return b.Build(), true
}

// Entry is one published weight.
type Entry struct {
	UID      int     `json:"uid"`
	Identity string  `json:"hotkey"`
	Score    float64 `json:"score"`
	Weight   uint32  `json:"weight"`
}

// Record is one weight publication.
type Record struct {
	Round       uint64  `json:"round"`
	TotalWeight uint32  `json:"total_weight"`
	Weights     []Entry `json:"weights"`
}

// Publisher writes the weight set to the data directory.
type Publisher struct {
	dir      string
	disabled bool
}

// New returns a Publisher writing under dir. When disabled, weights are
// computed and logged but not written.
func New(dir string, disabled bool) *Publisher {
	return &Publisher{dir: dir, disabled: disabled}
}

// Path of the weights file.
func (p *Publisher) Path() string {
	return filepath.Join(p.dir, FileName)
}

// Build computes the record for s without publishing it. ok is false when
// there is nothing to publish.
func Build(s scoring.State) (*Record, bool) {
	for uid, v := range s.Scores {
		if math.IsNaN(v) {
			log.WithField("uid", uid).Warn("Scores contain NaN values")
			break
		}
	}
	vv, ok := Weights(s.Scores)
	if !ok {
		return nil, false
	}
	rec := &Record{Round: s.Round, TotalWeight: uint32(vv.TotalWeight())}
	for _, id := range vv.SortedIDs() {
		uid := UID(id)
		e := Entry{UID: uid, Score: s.Scores[uid], Weight: uint32(vv.Get(id))}
		if uid < len(s.Identities) {
			e.Identity = s.Identities[uid]
		}
		rec.Weights = append(rec.Weights, e)
	}
	return rec, true
}

// Publish implements scoring.Publisher. An all-zero vector is skipped with a
// warning.
func (p *Publisher) Publish(ctx context.Context, s scoring.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := Build(s)
	if !ok {
		log.WithField("round", s.Round).Warn("All scores are zero, skipping weight publication")
		return nil
	}
	entry := log.WithFields(log.Fields{"round": rec.Round, "peers": len(rec.Weights), "total": rec.TotalWeight})
	if p.disabled {
		entry.Info("Weight publication disabled, not writing weights")
		return nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return err
	}
	tmp := p.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.Path()); err != nil {
		return err
	}
	entry.Info("Published weights")
	return nil
}
