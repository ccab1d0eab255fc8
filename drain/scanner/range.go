package scanner

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// BlockRange is an inclusive block interval.
type BlockRange struct {
	From idx.Block
	To   idx.Block
}

// Len returns the number of blocks in r.
func (r BlockRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return uint64(r.To-r.From) + 1
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Window returns the range from windowBlocks below head up to head, both
// ends included, clamped at genesis.
func Window(head idx.Block, windowBlocks uint64) BlockRange {
	from := idx.Block(0)
	if uint64(head) > windowBlocks {
		from = head - idx.Block(windowBlocks)
	}
	return BlockRange{From: from, To: head}
}

// Split partitions r into consecutive, non-overlapping sub-ranges of at most
// chunkSize blocks, in ascending order. chunkSize must be positive.
func Split(r BlockRange, chunkSize uint64) []BlockRange {
	if chunkSize == 0 || r.Len() == 0 {
		return nil
	}
	out := make([]BlockRange, 0, (r.Len()+chunkSize-1)/chunkSize)
	for start := r.From; ; {
		end := r.To
		if uint64(r.To-start) >= chunkSize {
			end = start + idx.Block(chunkSize) - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == r.To {
			return out
		}
		start = end + 1
	}
}
