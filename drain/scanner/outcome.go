package scanner

import (
	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"

	"github.com/rony4d/go-drain-scorer/drain/claims"
	"github.com/rony4d/go-drain-scorer/drain/contract"
)

// ChunkOutcome is the result of fetching one sub-range: either the logs it
// returned, or the reason it was skipped.
type ChunkOutcome struct {
	Range BlockRange
	Logs  []types.Log
	Err   error
}

// Ok wraps a successful fetch.
func Ok(r BlockRange, logs []types.Log) ChunkOutcome {
	return ChunkOutcome{Range: r, Logs: logs}
}

// Skipped wraps a failed fetch.
func Skipped(r BlockRange, reason error) ChunkOutcome {
	return ChunkOutcome{Range: r, Err: reason}
}

// IsSkipped reports whether the chunk contributed nothing.
func (o ChunkOutcome) IsSkipped() bool {
	return o.Err != nil
}

// Stats summarises a fold.
type Stats struct {
	Chunks        int
	SkippedChunks int
	SkippedBlocks uint64
	Events        int
	Malformed     int
}

// Degraded reports whether any part of the window was not read.
func (s Stats) Degraded() bool {
	return s.SkippedChunks > 0
}

// Fold reduces chunk outcomes into a claims ledger. Skipped chunks and
// undecodable logs are counted and otherwise ignored, so a partial scan
// undercounts rather than fails. The result does not depend on the order of
// outcomes.
func Fold(outcomes []ChunkOutcome, decimals uint8) (*claims.Ledger, Stats) {
	b := claims.NewBuilder(decimals)
	var st Stats
	for _, o := range outcomes {
		st.Chunks++
		if o.IsSkipped() {
			st.SkippedChunks++
			st.SkippedBlocks += o.Range.Len()
			continue
		}
		for _, lg := range o.Logs {
			if lg.Removed {
				continue
			}
			c, err := contract.DecodeClaim(lg)
			if err != nil {
				st.Malformed++
				log.WithFields(log.Fields{
					"block": lg.BlockNumber,
					"tx":    lg.TxHash.Hex(),
				}).Debugf("Skipping undecodable claim log: %v", err)
				continue
			}
			b.Add(claims.AddressKey(c.Provider), c.Amount)
			st.Events++
		}
	}
	return b.Build(), st
}
