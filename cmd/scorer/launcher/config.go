// This file maps defaults, the YAML config file, the environment and CLI
// flags onto the Config struct, in that order of precedence.

package launcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/rony4d/go-drain-scorer/drain/provider"
	"github.com/rony4d/go-drain-scorer/drain/scanner"
	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/drain/trigger"
	"github.com/rony4d/go-drain-scorer/integration"
	"github.com/rony4d/go-drain-scorer/utils/logger"
)

// Epoch height sources.
const (
	EpochSourceChain = "chain"
	EpochSourceClock = "clock"
)

// Environment variables read by MakeAllConfigs.
const (
	EnvRPCURL     = "POLYGON_RPC_URL"
	EnvChunkSize  = "LOG_CHUNK_SIZE"
	EnvWallet     = "POLYGON_WALLET"
	EnvPrivateKey = "POLYGON_PRIVATE_KEY"
	EnvAPIURL     = "API_URL"
)

// Config aggregates everything the launcher needs.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Provider ProviderConfig `yaml:"provider"`
}

type NodeConfig struct {
	DataDir string        `yaml:"datadir"`
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Format    string `yaml:"format"`
	Color     bool   `yaml:"color"`
	File      string `yaml:"file"`
	SentryDSN string `yaml:"sentry_dsn"`
}

type ScannerConfig struct {
	// Preferred is tried before Endpoints; it normally comes from
	// $POLYGON_RPC_URL.
	Preferred         string        `yaml:"preferred"`
	Endpoints         []string      `yaml:"endpoints"`
	Profile           string        `yaml:"profile"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	ChunkSize         uint64        `yaml:"chunk_size"`
	WindowDays        uint64        `yaml:"window_days"`
	BlocksPerDay      uint64        `yaml:"blocks_per_day"`
	Contract          string        `yaml:"contract"`
	Decimals          uint8         `yaml:"decimals"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	AbortOnError      bool          `yaml:"abort_on_error"`
}

type ScoringConfig struct {
	PeersFile          string        `yaml:"peers_file"`
	AvailabilityWeight float64       `yaml:"availability_weight"`
	ClaimsWeight       float64       `yaml:"claims_weight"`
	Alpha              float64       `yaml:"alpha"`
	PollTimeout        time.Duration `yaml:"poll_timeout"`
	PollConcurrency    int           `yaml:"poll_concurrency"`
	EpochLength        uint64        `yaml:"epoch_length"`
	EpochSource        string        `yaml:"epoch_source"`
	BlockTime          time.Duration `yaml:"block_time"`
	DisableSetWeights  bool          `yaml:"disable_set_weights"`
}

type ProviderConfig struct {
	Hotkey     string `yaml:"hotkey"`
	Wallet     string `yaml:"wallet"`
	PrivateKey string `yaml:"private_key"`
	APIURL     string `yaml:"api_url"`
	ListenAddr string `yaml:"listen_addr"`
}

// Candidates is the ordered endpoint list handed to the selector. An empty
// Preferred is kept; the selector skips it.
func (c ScannerConfig) Candidates() []string {
	return append([]string{c.Preferred}, c.Endpoints...)
}

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir: resolvePath(d.Node.DataDir),
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
			},
		},
		Scanner: ScannerConfig{
			Endpoints:    append([]string(nil), d.Scanner.Endpoints...),
			ProbeTimeout: d.Scanner.ProbeTimeout,
			ChunkSize:    d.Scanner.ChunkSize,
			WindowDays:   d.Scanner.WindowDays,
			BlocksPerDay: d.Scanner.BlocksPerDay,
			Contract:     d.Scanner.Contract,
			Decimals:     d.Scanner.Decimals,
		},
		Scoring: ScoringConfig{
			AvailabilityWeight: d.Scoring.AvailabilityWeight,
			ClaimsWeight:       d.Scoring.ClaimsWeight,
			Alpha:              d.Scoring.Alpha,
			PollTimeout:        d.Scoring.PollTimeout,
			PollConcurrency:    d.Scoring.PollConcurrency,
			EpochLength:        d.Scoring.EpochLength,
			EpochSource:        d.Scoring.EpochSource,
			BlockTime:          d.Scoring.BlockTime,
		},
		Provider: ProviderConfig{
			ListenAddr: d.Provider.ListenAddr,
		},
	}
}

// MakeAllConfigs merges defaults, the config file, the environment and CLI
// overrides into a single validated config and makes sure the data
// directory exists.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}
	if ctx.GlobalIsSet("rpc.profile") {
		cfg.Scanner.Profile = ctx.GlobalString("rpc.profile")
	}
	if cfg.Scanner.Profile != "" {
		preset, err := integration.GetPresetByName(cfg.Scanner.Profile)
		if err != nil {
			return cfg, err
		}
		cfg.Scanner.ChunkSize = preset.ChunkSize
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyCLIOverrides(ctx, &cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if err := scoring.ValidateAlpha(c.Scoring.Alpha); err != nil {
		return err
	}
	if c.Scanner.ChunkSize == 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Scanner.RequestsPerSecond < 0 {
		return errors.New("request rate must not be negative")
	}
	if !common.IsHexAddress(c.Scanner.Contract) {
		return fmt.Errorf("invalid contract address %q", c.Scanner.Contract)
	}
	if c.Scoring.EpochLength == 0 {
		return errors.New("epoch length must be positive")
	}
	switch c.Scoring.EpochSource {
	case EpochSourceChain, EpochSourceClock:
	default:
		return fmt.Errorf("unknown epoch source %q, want %s or %s", c.Scoring.EpochSource, EpochSourceChain, EpochSourceClock)
	}
	if c.Scoring.PollConcurrency <= 0 {
		return errors.New("poll concurrency must be positive")
	}
	if c.Scoring.PollTimeout <= 0 {
		return errors.New("poll timeout must be positive")
	}
	return nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		cfg.Scanner.Preferred = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvChunkSize)); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvChunkSize, err)
		}
		cfg.Scanner.ChunkSize = n
	}
	if v := os.Getenv(EnvWallet); v != "" {
		cfg.Provider.Wallet = v
	}
	if v := os.Getenv(EnvPrivateKey); v != "" {
		cfg.Provider.PrivateKey = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Provider.APIURL = v
	}
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.GlobalIsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.GlobalString("datadir"))
	}
	if ctx.GlobalIsSet("log.format") {
		cfg.Node.Logging.Format = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Node.Logging.Color = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("log.file") {
		cfg.Node.Logging.File = ctx.GlobalString("log.file")
	}
	if ctx.GlobalIsSet("log.sentry") {
		cfg.Node.Logging.SentryDSN = ctx.GlobalString("log.sentry")
	}

	if ctx.GlobalIsSet("rpc") {
		cfg.Scanner.Preferred = ""
		cfg.Scanner.Endpoints = splitCSV(ctx.GlobalString("rpc"))
	}
	if ctx.GlobalIsSet("rpc.timeout") {
		cfg.Scanner.ProbeTimeout = ctx.GlobalDuration("rpc.timeout")
	}
	if ctx.GlobalIsSet("scan.chunk") {
		cfg.Scanner.ChunkSize = ctx.GlobalUint64("scan.chunk")
	}
	if ctx.GlobalIsSet("scan.days") {
		cfg.Scanner.WindowDays = ctx.GlobalUint64("scan.days")
	}
	if ctx.GlobalIsSet("scan.blocksperday") {
		cfg.Scanner.BlocksPerDay = ctx.GlobalUint64("scan.blocksperday")
	}
	if ctx.GlobalIsSet("scan.contract") {
		cfg.Scanner.Contract = ctx.GlobalString("scan.contract")
	}
	if ctx.GlobalIsSet("scan.decimals") {
		cfg.Scanner.Decimals = uint8(ctx.GlobalUint("scan.decimals"))
	}
	if ctx.GlobalIsSet("scan.rps") {
		cfg.Scanner.RequestsPerSecond = ctx.GlobalFloat64("scan.rps")
	}
	if ctx.GlobalIsSet("scan.abort-on-error") {
		cfg.Scanner.AbortOnError = ctx.GlobalBool("scan.abort-on-error")
	}

	if ctx.GlobalIsSet("peers") {
		cfg.Scoring.PeersFile = ctx.GlobalString("peers")
	}
	if ctx.GlobalIsSet("score.availability") {
		cfg.Scoring.AvailabilityWeight = ctx.GlobalFloat64("score.availability")
	}
	if ctx.GlobalIsSet("score.claims") {
		cfg.Scoring.ClaimsWeight = ctx.GlobalFloat64("score.claims")
	}
	if ctx.GlobalIsSet("score.alpha") {
		cfg.Scoring.Alpha = ctx.GlobalFloat64("score.alpha")
	}
	if ctx.GlobalIsSet("poll.timeout") {
		cfg.Scoring.PollTimeout = ctx.GlobalDuration("poll.timeout")
	}
	if ctx.GlobalIsSet("poll.concurrency") {
		cfg.Scoring.PollConcurrency = ctx.GlobalInt("poll.concurrency")
	}
	if ctx.GlobalIsSet("epoch.length") {
		cfg.Scoring.EpochLength = ctx.GlobalUint64("epoch.length")
	}
	if ctx.GlobalIsSet("epoch.source") {
		cfg.Scoring.EpochSource = ctx.GlobalString("epoch.source")
	}
	if ctx.GlobalIsSet("epoch.blocktime") {
		cfg.Scoring.BlockTime = ctx.GlobalDuration("epoch.blocktime")
	}
	if ctx.GlobalIsSet("disable-set-weights") {
		cfg.Scoring.DisableSetWeights = ctx.GlobalBool("disable-set-weights")
	}

	if ctx.IsSet("provider.hotkey") {
		cfg.Provider.Hotkey = ctx.String("provider.hotkey")
	}
	if ctx.IsSet("provider.wallet") {
		cfg.Provider.Wallet = ctx.String("provider.wallet")
	}
	if ctx.IsSet("provider.key") {
		cfg.Provider.PrivateKey = ctx.String("provider.key")
	}
	if ctx.IsSet("provider.apiurl") {
		cfg.Provider.APIURL = ctx.String("provider.apiurl")
	}
	if ctx.IsSet("provider.listen") {
		cfg.Provider.ListenAddr = ctx.String("provider.listen")
	}
}

// Weights is the reward split.
func (c Config) Weights() scoring.Weights {
	return scoring.Weights{Availability: c.Scoring.AvailabilityWeight, Claims: c.Scoring.ClaimsWeight}
}

// ScannerConfig converts to the scanner's settings.
func (c Config) ScannerConfig() scanner.Config {
	cfg := scanner.DefaultConfig()
	cfg.Contract = common.HexToAddress(c.Scanner.Contract)
	cfg.WindowDays = c.Scanner.WindowDays
	cfg.BlocksPerDay = c.Scanner.BlocksPerDay
	cfg.ChunkSize = c.Scanner.ChunkSize
	cfg.Decimals = c.Scanner.Decimals
	cfg.RequestsPerSecond = c.Scanner.RequestsPerSecond
	return cfg
}

// EpochTrigger builds the round trigger. The chain source polls head for
// the current block height every BlockTime.
func (c Config) EpochTrigger(head trigger.BlockNumberer) *trigger.Epoch {
	var src trigger.HeightSource = trigger.Chain{Client: head}
	if c.Scoring.EpochSource == EpochSourceClock {
		src = trigger.Clock{Genesis: time.Unix(0, 0), BlockTime: c.Scoring.BlockTime}
	}
	return &trigger.Epoch{
		Length:   c.Scoring.EpochLength,
		Source:   src,
		Interval: c.Scoring.BlockTime,
	}
}

// EngineConfig converts to the scoring engine's settings.
func (c Config) EngineConfig() scoring.Config {
	return scoring.Config{
		Weights:          c.Weights(),
		Alpha:            c.Scoring.Alpha,
		PollTimeout:      c.Scoring.PollTimeout,
		PollConcurrency:  c.Scoring.PollConcurrency,
		AbortOnScanError: c.Scanner.AbortOnError,
	}
}

// ProviderConfig converts to the responder's settings.
func (c Config) ProviderConfig() provider.Config {
	return provider.Config{
		Identity:   c.Provider.Hotkey,
		Wallet:     c.Provider.Wallet,
		PrivateKey: c.Provider.PrivateKey,
		APIURL:     c.Provider.APIURL,
		ListenAddr: c.Provider.ListenAddr,
	}
}

// LoggerConfig converts to the logger's settings.
func (c Config) LoggerConfig() logger.Config {
	l := c.Node.Logging
	return logger.Config{
		Verbosity: l.Verbosity,
		Format:    l.Format,
		Color:     l.Color,
		File:      l.File,
		SentryDSN: l.SentryDSN,
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
