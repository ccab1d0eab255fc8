// Package claims aggregates ChannelClaimed events into per-provider totals.
//
// A Ledger is an immutable snapshot of one scan window. Amounts are summed
// exactly in token base units, so no amount of adversarial event data can
// lose precision during aggregation; conversion to a float happens only when
// a value is read.
package claims

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Key normalises a wallet address for lookup: trimmed and lower-cased.
func Key(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// AddressKey is Key for a parsed address.
func AddressKey(addr common.Address) string {
	return Key(addr.Hex())
}

// Builder accumulates claims. The zero value is not usable; call NewBuilder.
type Builder struct {
	decimals uint8
	totals   map[string]*big.Int
	events   int
}

// NewBuilder returns a Builder for a token with the given decimals.
func NewBuilder(decimals uint8) *Builder {
	return &Builder{
		decimals: decimals,
		totals:   make(map[string]*big.Int),
	}
}

// Add records a claim of amount base units for addr. Negative amounts are
// ignored; they cannot come from a uint256 payload.
func (b *Builder) Add(addr string, amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		return
	}
	k := Key(addr)
	total, ok := b.totals[k]
	if !ok {
		total = new(big.Int)
		b.totals[k] = total
	}
	total.Add(total, amount)
	b.events++
}

// Build freezes the accumulated totals. The Builder must not be used after.
func (b *Builder) Build() *Ledger {
	l := &Ledger{
		scale:  new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(b.decimals)), nil)),
		totals: b.totals,
		events: b.events,
		max:    new(big.Int),
	}
	for _, v := range b.totals {
		if v.Cmp(l.max) > 0 {
			l.max = v
		}
	}
	b.totals = nil
	return l
}

// Ledger is a read-only view of claims per wallet.
type Ledger struct {
	scale  *big.Float
	totals map[string]*big.Int
	max    *big.Int
	events int
}

// Empty returns a ledger with no claims.
func Empty() *Ledger {
	return NewBuilder(0).Build()
}

func (l *Ledger) toFloat(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), l.scale).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}

// Get returns the claimed amount for addr in token units, 0 if unknown.
func (l *Ledger) Get(addr string) float64 {
	if l == nil {
		return 0
	}
	v, ok := l.totals[Key(addr)]
	if !ok {
		return 0
	}
	return l.toFloat(v)
}

// Max returns the largest claimed amount in token units, 0 if empty.
func (l *Ledger) Max() float64 {
	if l == nil {
		return 0
	}
	return l.toFloat(l.max)
}

// Len returns the number of distinct wallets with claims.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.totals)
}

// Events returns how many claim events were folded into the ledger.
func (l *Ledger) Events() int {
	if l == nil {
		return 0
	}
	return l.events
}

// Addresses returns the normalised wallet keys in ascending order.
func (l *Ledger) Addresses() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.totals))
	for k := range l.totals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two ledgers hold identical totals.
func (l *Ledger) Equal(o *Ledger) bool {
	if l.Len() != o.Len() {
		return false
	}
	if l.Len() == 0 {
		return true
	}
	for k, v := range l.totals {
		ov, ok := o.totals[k]
		if !ok || v.Cmp(ov) != 0 {
			return false
		}
	}
	return true
}
