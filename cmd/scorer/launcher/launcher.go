package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-drain-scorer/drain/directory"
	"github.com/rony4d/go-drain-scorer/drain/endpoint"
	"github.com/rony4d/go-drain-scorer/drain/peers"
	"github.com/rony4d/go-drain-scorer/drain/provider"
	"github.com/rony4d/go-drain-scorer/drain/publish"
	"github.com/rony4d/go-drain-scorer/drain/scanner"
	"github.com/rony4d/go-drain-scorer/drain/scoring"
	"github.com/rony4d/go-drain-scorer/drain/snapshot"
	"github.com/rony4d/go-drain-scorer/flags"
	"github.com/rony4d/go-drain-scorer/utils/logger"
)

// NewApp wires commands and flags. The default action runs the scorer.
func NewApp() *cli.App {
	app := flags.NewApp("DRAIN reputation scorer")
	app.Flags = flags.Merge(flags.CommonFlags(), flags.ScannerFlags(), flags.ScoringFlags())
	app.Action = runScorer
	app.Commands = []cli.Command{
		{
			Name:   "validator",
			Usage:  "Score providers every epoch (default)",
			Action: runScorer,
		},
		{
			Name:   "provider",
			Usage:  "Serve a signed wallet ownership proof to scorers",
			Flags:  flags.ProviderFlags(),
			Action: runProvider,
		},
	}
	return app
}

// Launch runs the app with args.
func Launch(args []string) error {
	return NewApp().Run(args)
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setup(ctx *cli.Context) (Config, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return cfg, err
	}
	if err := logger.Setup(log.StandardLogger(), cfg.LoggerConfig()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runScorer(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.Scoring.PeersFile == "" {
		return errors.New("no peer directory, set --peers")
	}

	rctx, stop := interruptContext()
	defer stop()

	sc, err := scanner.Connect(rctx, cfg.ScannerConfig(), cfg.Scanner.Candidates(), endpoint.DialEth, cfg.Scanner.ProbeTimeout)
	if err != nil {
		return err
	}
	defer sc.Close()

	engine, err := scoring.New(cfg.EngineConfig(), scoring.Deps{
		Directory: directory.File{Path: cfg.Scoring.PeersFile},
		Querier:   peers.NewRPCQuerier(),
		Claims:    sc,
		Store:     snapshot.NewStore(cfg.Node.DataDir),
		Publisher: publish.New(cfg.Node.DataDir, cfg.Scoring.DisableSetWeights),
	})
	if err != nil {
		return err
	}
	if err := engine.Load(); err != nil {
		return err
	}

	epoch := cfg.EpochTrigger(sc)

	log.WithFields(log.Fields{
		"rpc":     endpoint.Redact(sc.URL()),
		"datadir": cfg.Node.DataDir,
		"epoch":   cfg.Scoring.EpochLength,
		"source":  cfg.Scoring.EpochSource,
	}).Info("Scorer started")

	err = engine.Run(rctx, epoch)
	if errors.Is(err, context.Canceled) {
		log.Info("Scorer stopped")
		return nil
	}
	return err
}

func runProvider(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if !directory.ValidIdentity(cfg.Provider.Hotkey) {
		return fmt.Errorf("invalid hotkey %q, set --provider.hotkey", cfg.Provider.Hotkey)
	}

	api, err := provider.NewAPI(cfg.ProviderConfig())
	if err != nil {
		return err
	}

	rctx, stop := interruptContext()
	defer stop()
	return provider.Serve(rctx, cfg.ProviderConfig(), api)
}
