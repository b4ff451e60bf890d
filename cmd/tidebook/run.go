package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"code.tidebook.io/tidebook/blockwatch"
	"code.tidebook.io/tidebook/broker"
	"code.tidebook.io/tidebook/config"
	"code.tidebook.io/tidebook/execution"
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/market"
	"code.tidebook.io/tidebook/metrics"
	"code.tidebook.io/tidebook/provision"
	"code.tidebook.io/tidebook/subscribers"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

type RunCmd struct {
	RootPathFlag

	ctx context.Context
}

var runCmd RunCmd

// Run registers the run subcommand, which starts the node.
func Run(ctx context.Context, parser *flags.Parser) error {
	runCmd = RunCmd{
		RootPathFlag: NewRootPathFlag(),
		ctx:          ctx,
	}
	_, err := parser.AddCommand("run", "Run a tidebook node", "Load the configuration and serve the configured pairs until interrupted", &runCmd)
	return err
}

func (opts *RunCmd) Execute(_ []string) error {
	log := logging.NewLoggerFromEnv(os.Getenv("TIDEBOOK_ENV"))
	defer log.AtExit()

	cfg, err := config.Read(opts.RootPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(opts.ctx)
	defer cancel()

	if cfg.MetricsAddress != "" {
		if err := metrics.Start(cfg.MetricsAddress); err != nil {
			return err
		}
		log.Info("metrics endpoint up",
			logging.String("address", cfg.MetricsAddress),
		)
	}

	ledger := provision.New(log, cfg.Provision)
	bkr := broker.New(ctx, log, cfg.Broker)
	bkr.Subscribe(subscribers.NewOfferEventLogger(ctx, log))
	exec := execution.New(log, cfg.Execution)
	watcher := blockwatch.New(log, cfg.Blockwatch)

	markets := make([]*market.Market, 0, len(cfg.Pairs))
	for _, pc := range cfg.Pairs {
		density, err := pc.DensityDecimal()
		if err != nil {
			return err
		}
		conf := types.Config{
			Global: types.GlobalConfig{
				GasPrice: num.NewUint(pc.GasPrice),
				GasMax:   pc.GasMax,
			},
			Local: types.LocalConfig{
				Active:       true,
				Fee:          pc.Fee,
				Density:      density,
				OfferGasbase: pc.OfferGasbase,
			},
		}
		mkt := market.New(log, cfg.Market, types.Pair{Base: pc.Base, Quote: pc.Quote}, conf, ledger, bkr, exec, watcher, cfg.Semibook)
		if err := mkt.StartCaches(ctx); err != nil {
			return err
		}
		markets = append(markets, mkt)
		log.Info("market up",
			logging.String("pair", mkt.Pair().String()),
		)
	}

	log.Info("tidebook node started",
		logging.Int("markets", len(markets)),
		logging.String("root-path", opts.RootPath),
	)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-ch:
		log.Info("shutting down",
			logging.String("signal", sig.String()),
		)
	case <-ctx.Done():
	}
	return nil
}
