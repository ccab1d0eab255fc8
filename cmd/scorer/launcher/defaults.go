package launcher

import (
	"time"

	"github.com/rony4d/go-drain-scorer/drain/contract"
	"github.com/rony4d/go-drain-scorer/drain/endpoint"
	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/integration"
)

// Defaults bundles the baseline values applied before the config file,
// environment and flags.
type Defaults struct {
	Node     NodeDefaults
	Scanner  ScannerDefaults
	Scoring  ScoringDefaults
	Provider ProviderDefaults
	Logging  LoggingDefaults
}

// NodeDefaults holds where the scorer keeps its state.
type NodeDefaults struct {
	DataDir string // scores.snap and weights.json live here
}

// ScannerDefaults describe the claims scan.
type ScannerDefaults struct {
	Endpoints    []string      // fallbacks tried after $POLYGON_RPC_URL
	ProbeTimeout time.Duration // per endpoint dial + eth_blockNumber
	ChunkSize    uint64        // blocks per eth_getLogs; public RPCs reject wide ranges
	WindowDays   uint64
	BlocksPerDay uint64 // ~2s Polygon blocks
	Contract     string
	Decimals     uint8 // USDC
}

// ScoringDefaults tune rounds.
type ScoringDefaults struct {
	AvailabilityWeight float64
	ClaimsWeight       float64
	Alpha              float64
	PollTimeout        time.Duration
	PollConcurrency    int
	EpochLength        uint64        // blocks between rounds
	EpochSource        string        // chain or clock
	BlockTime          time.Duration // head poll interval and clock tick
}

// ProviderDefaults configure the provider responder.
type ProviderDefaults struct {
	ListenAddr string
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool
}

// DefaultConfig returns a fully populated Defaults instance.
func DefaultConfig() Defaults {
	w := scoring.DefaultWeights()
	return Defaults{
		Node: NodeDefaults{
			DataDir: "~/.drain-scorer",
		},
		Scanner: ScannerDefaults{
			Endpoints:    integration.DefaultPreset().Endpoints,
			ProbeTimeout: endpoint.DefaultProbeTimeout,
			ChunkSize:    integration.DefaultPreset().ChunkSize,
			WindowDays:   7,
			BlocksPerDay: 43200,
			Contract:     contract.DrainChannelAddress.Hex(),
			Decimals:     contract.USDCDecimals,
		},
		Scoring: ScoringDefaults{
			AvailabilityWeight: w.Availability,
			ClaimsWeight:       w.Claims,
			Alpha:              scoring.DefaultAlpha,
			PollTimeout:        30 * time.Second,
			PollConcurrency:    32,
			EpochLength:        100,
			EpochSource:        EpochSourceChain,
			BlockTime:          12 * time.Second,
		},
		Provider: ProviderDefaults{
			ListenAddr: "0.0.0.0:8091",
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     false,
		},
	}
}
