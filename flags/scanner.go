package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// ScannerFlags configure the Polygon endpoint and the claims scan.
func ScannerFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rpc",
			Usage: "Comma-separated Polygon JSON-RPC endpoints tried in order, after $POLYGON_RPC_URL",
		},
		cli.StringFlag{
			Name:  "rpc.profile",
			Usage: "RPC provider profile (alchemy|public), sets the chunk size",
		},
		cli.DurationFlag{
			Name:  "rpc.timeout",
			Usage: "Timeout for dialing and probing one endpoint",
			Value: 30 * time.Second,
		},
		cli.Uint64Flag{
			Name:  "scan.chunk",
			Usage: "Maximum blocks per eth_getLogs query",
			Value: 2000,
		},
		cli.Uint64Flag{
			Name:  "scan.days",
			Usage: "Length of the claims window in days",
			Value: 7,
		},
		cli.Uint64Flag{
			Name:  "scan.blocksperday",
			Usage: "Polygon blocks per day",
			Value: 43200,
		},
		cli.StringFlag{
			Name:  "scan.contract",
			Usage: "DrainChannel contract address",
		},
		cli.UintFlag{
			Name:  "scan.decimals",
			Usage: "Settlement token decimals",
			Value: 6,
		},
		cli.Float64Flag{
			Name:  "scan.rps",
			Usage: "Maximum eth_getLogs queries per second (0 = unlimited)",
		},
		cli.BoolFlag{
			Name:  "scan.abort-on-error",
			Usage: "Abandon the round when the claims scan fails instead of scoring availability only",
		},
	}
}
