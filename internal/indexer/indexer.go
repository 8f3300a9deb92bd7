// Package indexer is the orchestrator (component 4.F): it owns the node
// client, database gateway, and shutdown latch, and drives validation, the
// status-refresh loop, and the sync loop to completion or cancellation.
// Grounded on the teacher's cmd/root.go startServer, which performs the
// analogous "validate inputs, start background loops, join or fail" shape
// for the gRPC server; generalized here to two cooperating loops joined
// with golang.org/x/sync/errgroup instead of a single blocking ListenAndServe.
package indexer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fanatid/telescope/internal/bitcoinclient"
	"github.com/fanatid/telescope/internal/config"
	"github.com/fanatid/telescope/internal/dbgateway"
	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/prefetch"
	"github.com/fanatid/telescope/internal/shutdown"
	"github.com/fanatid/telescope/internal/status"
	"github.com/fanatid/telescope/internal/syncgen"
)

// statusPollInterval is how often the status loop re-polls the node.
const statusPollInterval = 100 * time.Millisecond

// catchUpWriters bounds the number of concurrent writers once the schema
// has left its freshly-created stage; initial sync always uses one.
const catchUpWriters = 4

// Orchestrator wires components 4.A-4.E together per the entry sequence.
type Orchestrator struct {
	cfg    config.Config
	client *bitcoinclient.Client
	db     *dbgateway.Gateway
	latch  *shutdown.Latch
	log    *logrus.Entry
	status *status.Status
}

// New builds an Orchestrator. The caller is responsible for constructing
// client and db and for closing db once Run returns.
func New(cfg config.Config, client *bitcoinclient.Client, db *dbgateway.Gateway, latch *shutdown.Latch, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		db:     db,
		latch:  latch,
		log:    log,
		status: status.New(),
	}
}

// Run executes the entry sequence: validate, seed status, then run the
// status and sync loops concurrently until either fails or the latch trips.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.validate(ctx); err != nil {
		return err
	}

	info, err := o.client.BlockchainInfo(ctx)
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "seeding indexer status from blockchain_info")
	}
	o.status.Set(info.Blocks, info.BestHash)
	o.log.WithFields(logrus.Fields{
		"height": info.Blocks,
		"hash":   info.BestHash.String(),
	}).Info("seeded indexer status")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.statusLoop(gctx) })
	g.Go(func() error { return o.syncLoop(gctx) })
	return g.Wait()
}

// validate runs the node and database validation protocols concurrently,
// both racing the shutdown latch; a failure in either trips the latch so
// the other unwinds promptly instead of running to its own timeout.
func (o *Orchestrator) validate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := o.client.Validate(gctx, o.cfg.Coin, o.cfg.Chain, o.latch, o.log); err != nil {
			o.latch.Trip()
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := o.db.Validate(gctx, o.latch); err != nil {
			o.latch.Trip()
			return err
		}
		return nil
	})
	return g.Wait()
}

// statusLoop re-polls blockchain_info every statusPollInterval, merging any
// change into the shared status under its single writer lock and logging
// the delta. It exits cleanly once the shutdown latch trips.
func (o *Orchestrator) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.latch.Done():
			return nil
		case <-ticker.C:
			info, err := o.client.BlockchainInfo(ctx)
			if err != nil {
				if errs.IsCancelled(err) {
					return nil
				}
				o.log.WithError(err).Error("status loop: blockchain_info failed")
				o.latch.Trip()
				return err
			}

			prev := o.status.Get()
			if prev.NodeHeight != info.Blocks || prev.NodeBestHash != info.BestHash {
				o.status.Set(info.Blocks, info.BestHash)
				o.log.WithFields(logrus.Fields{
					"prev_height": prev.NodeHeight,
					"height":      info.Blocks,
					"hash":        info.BestHash.String(),
				}).Info("node status advanced")
			}
		}
	}
}

// syncLoop builds the height generator and prefetcher, then drains them
// with one writer during initial sync or up to catchUpWriters concurrent
// writers during catch-up, per the persisted schema stage.
func (o *Orchestrator) syncLoop(ctx context.Context) error {
	initialSync := func() bool {
		stage, _ := o.db.Stage()
		return stage == dbgateway.StageCreated
	}()

	dbHeight, _, dbHasBest, err := o.db.BestBlockInfo(ctx)
	if err != nil {
		o.latch.Trip()
		return err
	}

	var dbNext uint32
	if dbHasBest {
		dbNext = dbHeight + 1
	}

	var skipped []uint32
	if initialSync {
		var err error
		skipped, err = o.db.SkippedBlockHeights(ctx, o.cfg.SyncSegment.Start)
		if err != nil {
			o.latch.Trip()
			return err
		}
	}

	gen, err := syncgen.New(o.cfg.SyncSegment.Start, o.cfg.SyncSegment.End, initialSync, dbHasBest, dbNext, skipped, o.status)
	if err != nil {
		o.latch.Trip()
		return err
	}

	prefetchSize := catchUpWriters + 2
	pf := prefetch.New(gen, o.fetchBlock, prefetchSize)

	writers := writerCount(initialSync)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		g.Go(func() error { return o.drain(gctx, pf) })
	}
	if err := g.Wait(); err != nil {
		o.latch.Trip()
		return err
	}

	// Initial sync drained the generator to the tip: advance off "#created"
	// so a later restart runs catch-up (multiple writers) instead of
	// redoing a single-writer initial sync.
	if initialSync && o.latch.Check() == nil {
		if err := o.db.AdvanceStage(ctx, stageSynced); err != nil {
			o.latch.Trip()
			return err
		}
	}
	return nil
}

// stageSynced is the schema stage recorded once initial sync first drains
// to the tip, marking subsequent runs as catch-up.
const stageSynced = "synced"

// writerCount returns how many concurrent writers the sync loop should run:
// exactly one during initial sync, catchUpWriters afterward.
func writerCount(initialSync bool) int {
	if initialSync {
		return 1
	}
	return catchUpWriters
}

// drain repeatedly pulls blocks from pf and pushes them to the database
// until the pipeline is drained or an error occurs.
func (o *Orchestrator) drain(ctx context.Context, pf *prefetch.Prefetcher) error {
	for {
		select {
		case <-o.latch.Done():
			return nil
		default:
		}

		block, ok, err := pf.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := o.db.PushBlock(ctx, block); err != nil {
			if errs.IsCancelled(err) {
				return nil
			}
			return err
		}
	}
}

// fetchBlock adapts the node client's block_by_height for the prefetcher.
func (o *Orchestrator) fetchBlock(height uint32) (bitcoinclient.Block, bool, error) {
	ctx, cancel := o.latch.Context(context.Background())
	defer cancel()
	return o.client.BlockByHeight(ctx, height)
}
