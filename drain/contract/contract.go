// Package contract describes the one DRAIN contract event the scorer reads:
//
//	event ChannelClaimed(bytes32 indexed channelId, address indexed provider, uint256 amount)
//
// emitted by the DrainChannel contract on Polygon whenever a provider settles
// a payment channel. The provider is the third topic; the amount is the only
// non-indexed field, so it is the whole log payload.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// DrainChannelAddress is the DrainChannel deployment on Polygon mainnet.
	DrainChannelAddress = common.HexToAddress("0x0C2B3aA1e80629D572b1f200e6DF3586B3946A8A")

	// ContractABI holds the subset of the DrainChannel ABI the scorer needs.
	ContractABI = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"channelId","type":"bytes32"},{"indexed":true,"internalType":"address","name":"provider","type":"address"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"ChannelClaimed","type":"event"}]`
)

// EventSignature is the canonical signature whose keccak256 is topic 0.
const EventSignature = "ChannelClaimed(bytes32,address,uint256)"

// USDCDecimals is the decimals of the settlement token.
const USDCDecimals = 6

var (
	ErrTooFewTopics = errors.New("claim log has fewer than 3 topics")
	ErrWrongTopic   = errors.New("claim log has an unexpected topic 0")
)

var (
	drainABI       abi.ABI
	channelClaimed abi.Event

	// ChannelClaimedTopic is keccak256(EventSignature).
	ChannelClaimedTopic common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}
	ev, ok := parsed.Events["ChannelClaimed"]
	if !ok {
		panic("ChannelClaimed missing from DrainChannel ABI")
	}
	if ev.Sig != EventSignature {
		panic(fmt.Sprintf("unexpected ChannelClaimed signature %q", ev.Sig))
	}
	drainABI = parsed
	channelClaimed = ev
	ChannelClaimedTopic = ev.ID
}

// Claim is one decoded ChannelClaimed log.
type Claim struct {
	Provider    common.Address
	Amount      *big.Int // token base units
	BlockNumber uint64
	LogIndex    uint
}

// DecodeClaim extracts the provider and amount from a ChannelClaimed log.
func DecodeClaim(lg types.Log) (Claim, error) {
	if len(lg.Topics) < 3 {
		return Claim{}, ErrTooFewTopics
	}
	if lg.Topics[0] != ChannelClaimedTopic {
		return Claim{}, ErrWrongTopic
	}
	values, err := drainABI.Unpack(channelClaimed.Name, lg.Data)
	if err != nil {
		return Claim{}, fmt.Errorf("unpack claim amount: %w", err)
	}
	if len(values) != 1 {
		return Claim{}, fmt.Errorf("unpack claim amount: got %d values", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return Claim{}, fmt.Errorf("unpack claim amount: got %T", values[0])
	}
	return Claim{
		// the provider address is the low 20 bytes of the 32-byte topic
		Provider:    common.BytesToAddress(lg.Topics[2].Bytes()),
		Amount:      amount,
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}, nil
}

// PackClaimData encodes an amount as a ChannelClaimed payload.
func PackClaimData(amount *big.Int) ([]byte, error) {
	return channelClaimed.Inputs.NonIndexed().Pack(amount)
}

// NewClaimLog builds a ChannelClaimed log as the contract would emit it.
func NewClaimLog(channelID common.Hash, provider common.Address, amount *big.Int, block uint64) (types.Log, error) {
	data, err := PackClaimData(amount)
	if err != nil {
		return types.Log{}, err
	}
	return types.Log{
		Address:     DrainChannelAddress,
		Topics:      []common.Hash{ChannelClaimedTopic, channelID, common.BytesToHash(provider.Bytes())},
		Data:        data,
		BlockNumber: block,
	}, nil
}
