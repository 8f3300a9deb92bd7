package dbgateway

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fanatid/telescope/internal/bitcoinclient"
	"github.com/fanatid/telescope/internal/errs"
)

// PushBlock persists block and its transactions atomically. It is
// idempotent by (height, hash): a block already present is a silent no-op,
// never a duplicate-key error.
func (g *Gateway) PushBlock(ctx context.Context, block bitcoinclient.Block) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err, "beginning push-block transaction")
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, g.queries.mustQuery("shared", "blockExists"), block.Height, block.Hash.Bytes()).Scan(&exists); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "checking block existence for height %d", block.Height)
	}
	if exists {
		return tx.Commit(ctx)
	}

	tag, err := tx.Exec(ctx, g.queries.mustQuery("shared", "insertBlock"),
		block.Height, block.Hash.Bytes(), block.PrevHash.Bytes(), block.NextHash.Bytes(), block.Size, block.Time)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err, "inserting block at height %d", block.Height)
	}
	if tag.RowsAffected() == 0 {
		// another writer raced us and inserted first; treat as already done.
		return tx.Commit(ctx)
	}

	for i, txn := range block.Transactions {
		if err := g.pushTransaction(ctx, tx, block.Height, i, txn); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (g *Gateway) pushTransaction(ctx context.Context, tx pgx.Tx, height uint32, index int, txn bitcoinclient.Transaction) error {
	var txID int64
	if err := tx.QueryRow(ctx, g.queries.mustQuery("shared", "insertTransaction"),
		height, index, txn.Hash.Bytes(), txn.RawBytes).Scan(&txID); err != nil {
		return errs.Wrap(errs.KindDatabase, err, "inserting transaction %d of block %d", index, height)
	}

	for i, in := range txn.Inputs {
		if in.Coinbase != nil {
			if _, err := tx.Exec(ctx, g.queries.mustQuery("shared", "insertTxInputCoinbase"), txID, i, in.Coinbase); err != nil {
				return errs.Wrap(errs.KindDatabase, err, "inserting coinbase input %d", i)
			}
			continue
		}
		if _, err := tx.Exec(ctx, g.queries.mustQuery("shared", "insertTxInputSpend"), txID, i, in.PrevTxID.Bytes(), in.PrevVout); err != nil {
			return errs.Wrap(errs.KindDatabase, err, "inserting spend input %d", i)
		}
	}

	for i, out := range txn.Outputs {
		addresses := out.Addresses
		if addresses == nil {
			// pgx encodes a nil []string as SQL NULL, which the not-null
			// addresses column rejects; a script with no resolvable address
			// (OP_RETURN, bare multisig, non-standard) is routine, not rare.
			addresses = []string{}
		}
		if _, err := tx.Exec(ctx, g.queries.mustQuery("shared", "insertTxOutput"), txID, i, out.Value, addresses); err != nil {
			return errs.Wrap(errs.KindDatabase, err, "inserting output %d", i)
		}
	}
	return nil
}
