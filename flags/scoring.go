package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// ScoringFlags tune rounds, rewards and publication.
func ScoringFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "peers",
			Usage: "YAML file listing peers (uid, hotkey, url)",
		},
		cli.Float64Flag{
			Name:  "score.availability",
			Usage: "Reward weight of a verified, reachable peer",
			Value: 0.4,
		},
		cli.Float64Flag{
			Name:  "score.claims",
			Usage: "Reward weight of claimed volume",
			Value: 0.6,
		},
		cli.Float64Flag{
			Name:  "score.alpha",
			Usage: "EMA smoothing factor in (0, 1]",
			Value: 0.1,
		},
		cli.DurationFlag{
			Name:  "poll.timeout",
			Usage: "Timeout for one peer query",
			Value: 30 * time.Second,
		},
		cli.IntFlag{
			Name:  "poll.concurrency",
			Usage: "Peers queried at once",
			Value: 32,
		},
		cli.Uint64Flag{
			Name:  "epoch.length",
			Usage: "Blocks between scoring rounds",
			Value: 100,
		},
		cli.StringFlag{
			Name:  "epoch.source",
			Usage: "Block height source for epochs: chain (RPC head) or clock",
			Value: "chain",
		},
		cli.DurationFlag{
			Name:  "epoch.blocktime",
			Usage: "Head polling interval, and block time of the height clock",
			Value: 12 * time.Second,
		},
		cli.BoolFlag{
			Name:  "disable-set-weights",
			Usage: "Compute weights but do not publish them",
		},
	}
}
