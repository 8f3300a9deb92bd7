// Command telescope is the process entry point (§6): one binary, two
// subcommands (`indexer bitcoin`, `client bitcoin`), each readable from
// flags or TELESCOPE_-prefixed environment variables. Grounded on the
// teacher's cmd/root.go (cobra root command, Execute) and cmd/server/
// main.go (the plain main() that wires logging, signal handling, and the
// long-running service together), merged into cobra's subcommand style
// since this spec needs two leaves instead of one flat command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fanatid/telescope/internal/bitcoinclient"
	"github.com/fanatid/telescope/internal/config"
	"github.com/fanatid/telescope/internal/dbgateway"
	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/health"
	"github.com/fanatid/telescope/internal/indexer"
	"github.com/fanatid/telescope/internal/logging"
	"github.com/fanatid/telescope/internal/shutdown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:           "telescope",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("Unknown subcommand")
		},
	}
	root.AddCommand(newIndexerCmd(), newClientCmd())

	if err := root.Execute(); err != nil {
		if errs.IsCancelled(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newIndexerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "indexer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("Unknown subcommand")
		},
	}
	cmd.AddCommand(newIndexerBitcoinCmd())
	return cmd
}

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("Unknown subcommand")
		},
	}
	cmd.AddCommand(newClientBitcoinCmd())
	return cmd
}

func newIndexerBitcoinCmd() *cobra.Command {
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:           "bitcoin",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runIndexer(cfg)
		},
	}
	config.BindFlags(cmd, v)
	return cmd
}

func newClientBitcoinCmd() *cobra.Command {
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:           "bitcoin",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runClient(cfg)
		},
	}
	config.BindFlags(cmd, v)
	return cmd
}

// runIndexer wires components 4.A-4.F and runs the orchestrator to
// completion or cancellation.
func runIndexer(cfg config.Config) error {
	log := logging.New(cfg.LogLevel, "telescope-indexer", cfg.Coin, cfg.Chain)
	latch := shutdown.New()
	shutdown.ListenForSignals(latch, log)

	ctx, cancel := latch.Context(context.Background())
	defer cancel()

	client, err := bitcoinclient.New(cfg.Bitcoind, cfg.BitcoindREST)
	if err != nil {
		return err
	}

	dbCfg, err := dbgateway.NewConfig(cfg.Postgres, cfg.PostgresPoolSize, cfg.PostgresConnectionTimeout,
		cfg.PostgresSchema, cfg.Coin, cfg.Chain, !cfg.SyncSegment.IsFullRange())
	if err != nil {
		return err
	}
	db, err := dbgateway.New(ctx, dbCfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	go func() {
		if err := health.Serve(ctx, cfg.ListenHTTP, latch, log); err != nil {
			log.WithError(err).Error("probes/metrics listener failed")
			latch.Trip()
		}
	}()

	orch := indexer.New(cfg, client, db, latch, log)
	return orch.Run(ctx)
}

// runClient is the thin relational-query stub (§6's `client bitcoin`
// leaf): it opens the same database gateway the indexer writes through
// and reports the current sync position, for operators checking progress
// without a psql session.
func runClient(cfg config.Config) error {
	log := logging.New(cfg.LogLevel, "telescope-client", cfg.Coin, cfg.Chain)
	latch := shutdown.New()
	shutdown.ListenForSignals(latch, log)

	ctx, cancel := latch.Context(context.Background())
	defer cancel()

	dbCfg, err := dbgateway.NewConfig(cfg.Postgres, cfg.PostgresPoolSize, cfg.PostgresConnectionTimeout,
		cfg.PostgresSchema, cfg.Coin, cfg.Chain, !cfg.SyncSegment.IsFullRange())
	if err != nil {
		return err
	}
	db, err := dbgateway.New(ctx, dbCfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Validate(ctx, latch); err != nil {
		return err
	}

	height, hash, ok, err := db.BestBlockInfo(ctx)
	if err != nil {
		return err
	}
	stage, progress := db.Stage()
	if !ok {
		fmt.Println("no blocks persisted yet")
	} else {
		fmt.Printf("best block: height=%d hash=%s\n", height, hash.Encode())
	}
	fmt.Printf("stage: %s progress: %s\n", stage, progress)
	return nil
}
