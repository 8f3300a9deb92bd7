// Package dbgateway is the database gateway (§4.C): a pgx connection pool,
// the named-query loader, schema bootstrap/validation, and the handful of
// operations the orchestrator drives the gateway with.
package dbgateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/hash256"
	"github.com/fanatid/telescope/internal/shutdown"
)

// dbPool is the subset of *pgxpool.Pool the gateway drives. It exists so
// tests can substitute a fake pool without a running postgres; production
// code always constructs a Gateway around the real *pgxpool.Pool.
type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close()
}

// schemaVersion is the SchemaInfo.version this build expects to find (or
// seed) in a fresh schema. Bumping it is a breaking migration.
const schemaVersion = int16(1)

// Gateway is the database façade. Its stage field is the in-memory mirror
// of schema_info.stage, guarded because the status/progress reader can run
// concurrently with the sync loop that advances it.
type Gateway struct {
	cfg     Config
	pool    dbPool
	queries *namedQueries
	log     *logrus.Entry

	mu       sync.RWMutex
	stage    string
	progress string
}

// StageCreated is the sentinel stage recorded by first-run bootstrap,
// marking initial sync mode.
const StageCreated = "#created"

// New opens a connection pool against cfg.ConnectionString, sized to
// cfg.PoolSize, and loads the embedded named queries. It performs no
// network I/O against the schema itself; call Validate for that.
func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Gateway, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "parsing postgres connection string")
	}
	poolCfg.MaxConns = int32(cfg.PoolSize)
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "opening postgres pool")
	}

	queries, err := loadQueries(cfg.Schema)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Gateway{cfg: cfg, pool: pool, queries: queries, log: log}, nil
}

// Close releases the pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// Validate runs the version gate then the schema bootstrap, racing the
// shutdown latch.
func (g *Gateway) Validate(ctx context.Context, latch *shutdown.Latch) error {
	type result struct{ err error }
	done := make(chan result, 1)

	go func() {
		err := g.checkPostgresVersion(ctx)
		if err == nil {
			err = g.bootstrapSchema(ctx)
		}
		done <- result{err}
	}()

	select {
	case r := <-done:
		return r.err
	case <-latch.Done():
		return errs.Cancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schemaInfoRow mirrors the persisted schema_info row.
type schemaInfoRow struct {
	Coin    string
	Chain   string
	Version int16
	Extra   json.RawMessage
	Stage   string
}

type extraJSON struct {
	SyncSegment bool `json:"sync_segment"`
}

// bootstrapSchema implements the four-step transaction from §4.C: create
// schema if missing, create+seed schema_info plus run DDL on first run, or
// validate an existing row otherwise.
func (g *Gateway) bootstrapSchema(ctx context.Context) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err, "beginning bootstrap transaction")
	}
	defer tx.Rollback(ctx)

	var schemaExists bool
	if err := tx.QueryRow(ctx, g.queries.mustQuery("bootstrap", "schemaExists")).Scan(&schemaExists); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "checking schema existence")
	}
	if !schemaExists {
		if _, err := tx.Exec(ctx, g.queries.mustQuery("bootstrap", "createSchema")); err != nil {
			return errs.Wrap(errs.KindDatabase, err, "creating schema")
		}
	}

	var schemaInfoExists bool
	if err := tx.QueryRow(ctx, g.queries.mustQuery("bootstrap", "schemaInfoExists")).Scan(&schemaInfoExists); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "checking schema_info existence")
	}

	if !schemaInfoExists {
		if err := g.createFreshSchema(ctx, tx); err != nil {
			return err
		}
	} else {
		if err := g.validateExistingSchema(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "committing bootstrap transaction")
	}
	return nil
}

func (g *Gateway) createFreshSchema(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, g.queries.mustQuery("bootstrap", "createSchemaInfo")); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "creating schema_info table")
	}

	extra, err := json.Marshal(extraJSON{SyncSegment: g.cfg.SyncSegment})
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err, "marshalling schema_info.extra")
	}
	if _, err := tx.Exec(ctx, g.queries.mustQuery("bootstrap", "insertSchemaInfo"),
		g.cfg.Coin, g.cfg.Chain, schemaVersion, extra, StageCreated); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "inserting schema_info row")
	}

	createGroup, ok := g.queries.group("create")
	if !ok {
		return errs.New(errs.KindConfiguration, "missing embedded query group \"create\"")
	}
	for _, q := range createGroup.ordered() {
		if _, err := tx.Exec(ctx, q.Query); err != nil {
			return errs.Wrap(errs.KindDatabase, err, "running create query %q", q.Name)
		}
	}

	if _, err := tx.Exec(ctx, g.queries.mustQuery("shared", "blocksSkippedHeightsFn")); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "creating blocks_skipped_heights function")
	}

	g.setStage(StageCreated, "")
	return nil
}

func (g *Gateway) validateExistingSchema(ctx context.Context, tx pgx.Tx) error {
	var row schemaInfoRow
	if err := tx.QueryRow(ctx, g.queries.mustQuery("bootstrap", "selectSchemaInfo")).Scan(
		&row.Coin, &row.Chain, &row.Version, &row.Extra, &row.Stage); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "reading schema_info row")
	}

	if row.Coin != g.cfg.Coin || row.Chain != g.cfg.Chain || row.Version != schemaVersion {
		return errs.New(errs.KindSemantic, "schema_info mismatch: persisted coin=%s chain=%s version=%d, configured coin=%s chain=%s version=%d",
			row.Coin, row.Chain, row.Version, g.cfg.Coin, g.cfg.Chain, schemaVersion)
	}

	var extra extraJSON
	if err := json.Unmarshal(row.Extra, &extra); err != nil {
		return errs.Wrap(errs.KindSemantic, err, "decoding schema_info.extra")
	}
	if extra.SyncSegment != g.cfg.SyncSegment {
		return errs.New(errs.KindSemantic, "schema_info.extra.sync_segment mismatch: persisted=%v configured=%v", extra.SyncSegment, g.cfg.SyncSegment)
	}

	g.setStage(row.Stage, "")
	return nil
}

func (g *Gateway) setStage(stage, progress string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stage = stage
	g.progress = progress
}

// Stage returns the in-memory stage name and optional progress string.
func (g *Gateway) Stage() (string, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stage, g.progress
}

// AdvanceStage persists and records a new stage, e.g. leaving "#created"
// once the indexer transitions out of initial sync.
func (g *Gateway) AdvanceStage(ctx context.Context, stage string) error {
	if _, err := g.pool.Exec(ctx, g.queries.mustQuery("bootstrap", "updateStage"), stage); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "updating stage to %q", stage)
	}
	g.setStage(stage, "")
	return nil
}

// BestBlockInfo reads the (height, hash) of the highest persisted block.
func (g *Gateway) BestBlockInfo(ctx context.Context) (uint32, hash256.Hash256, bool, error) {
	var height uint32
	var hashBytes []byte
	err := g.pool.QueryRow(ctx, g.queries.mustQuery("shared", "bestBlockInfo")).Scan(&height, &hashBytes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, hash256.Hash256{}, false, nil
		}
		return 0, hash256.Hash256{}, false, errs.Wrap(errs.KindDatabase, err, "reading best block info")
	}
	if len(hashBytes) != 32 {
		return 0, hash256.Hash256{}, false, errs.New(errs.KindDatabase, "best block hash has %d bytes, want 32", len(hashBytes))
	}
	return height, hash256.FromBytes(hashBytes), true, nil
}

// SkippedBlockHeights returns, in ascending order, every height in
// [start, max_persisted] absent from the blocks table.
func (g *Gateway) SkippedBlockHeights(ctx context.Context, start uint32) ([]uint32, error) {
	rows, err := g.pool.Query(ctx, g.queries.mustQuery("shared", "skippedBlockHeights"), start)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err, "querying skipped block heights")
	}
	defer rows.Close()

	var heights []uint32
	for rows.Next() {
		var h uint32
		if err := rows.Scan(&h); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, err, "scanning skipped block height")
		}
		heights = append(heights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err, "iterating skipped block heights")
	}
	return heights, nil
}
