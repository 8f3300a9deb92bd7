package dbgateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/bitcoinclient"
	"github.com/fanatid/telescope/internal/hash256"
)

// fakeRow is a single-row pgx.Row stand-in driven by a caller-supplied scan
// function, so each scripted QueryRow call can produce its own result.
type fakeRow struct {
	scan func(dest ...interface{}) error
}

func (r *fakeRow) Scan(dest ...interface{}) error { return r.scan(dest...) }

type fakeExecCall struct {
	sql  string
	args []interface{}
}

// fakeTx is a hand-rolled pgx.Tx double, in the style of the node client's
// mockNode: it drives PushBlock/pushTransaction through a scripted sequence
// of QueryRow results and records every Exec call for assertions. Methods
// this package never calls are stubbed to fail loudly rather than silently
// succeed.
type fakeTx struct {
	rows      []func(dest ...interface{}) error // consumed in order by QueryRow
	rowIdx    int
	execCalls []fakeExecCall
	committed bool
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx: nested transactions not supported")
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error { return nil }

func (tx *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("fakeTx: CopyFrom not supported")
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (tx *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (tx *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("fakeTx: Prepare not supported")
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	tx.execCalls = append(tx.execCalls, fakeExecCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("fakeTx: Query not supported")
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if tx.rowIdx >= len(tx.rows) {
		return &fakeRow{scan: func(dest ...interface{}) error {
			return fmt.Errorf("fakeTx: no scripted QueryRow result for call %d", tx.rowIdx)
		}}
	}
	scan := tx.rows[tx.rowIdx]
	tx.rowIdx++
	return &fakeRow{scan: scan}
}

func (tx *fakeTx) Conn() *pgx.Conn { return nil }

// fakePool is a dbPool double whose Begin always returns the given fakeTx.
// PushBlock never calls the pool's own Exec/Query/QueryRow directly (it
// works entirely through the transaction), so those are left panicking.
type fakePool struct {
	tx *fakeTx
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) { return p.tx, nil }

func (p *fakePool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("fakePool: Exec not used by PushBlock")
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("fakePool: Query not used by PushBlock")
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("fakePool: QueryRow not used by PushBlock")
}

func (p *fakePool) Close() {}

func newTestGateway(t *testing.T, tx *fakeTx) *Gateway {
	t.Helper()
	queries, err := loadQueries("public")
	require.NoError(t, err)
	return &Gateway{
		cfg:     Config{Coin: "bitcoin", Chain: "main"},
		pool:    &fakePool{tx: tx},
		queries: queries,
	}
}

// TestPushBlockNormalizesNilAddresses exercises an output with no resolvable
// address (the routine OP_RETURN/bare-multisig/non-standard-script case,
// where decodeTxOutput returns Addresses: nil) through PushBlock end to
// end, proving the nil slice never reaches Exec where pgx would encode it
// as SQL NULL against the not-null addresses column.
func TestPushBlockNormalizesNilAddresses(t *testing.T) {
	tx := &fakeTx{
		rows: []func(dest ...interface{}) error{
			// blockExists
			func(dest ...interface{}) error {
				*dest[0].(*bool) = false
				return nil
			},
			// insertTransaction -> txID
			func(dest ...interface{}) error {
				*dest[0].(*int64) = 1
				return nil
			},
		},
	}
	g := newTestGateway(t, tx)

	block := bitcoinclient.Block{
		Height:   1,
		Hash:     hash256.MustDecode(fmt.Sprintf("%064d", 1)),
		PrevHash: hash256.Zero,
		NextHash: hash256.Zero,
		Size:     100,
		Time:     1600000000,
		Transactions: []bitcoinclient.Transaction{
			{
				Hash:     hash256.MustDecode(fmt.Sprintf("%064d", 2)),
				RawBytes: []byte{0x01},
				Inputs: []bitcoinclient.TxInput{
					{Coinbase: []byte{0xde, 0xad}},
				},
				Outputs: []bitcoinclient.TxOutput{
					{Value: "0.00000000", Addresses: nil},
				},
			},
		},
	}

	err := g.PushBlock(context.Background(), block)
	require.NoError(t, err)
	require.True(t, tx.committed)

	var outputCall *fakeExecCall
	for i := range tx.execCalls {
		if len(tx.execCalls[i].args) == 4 {
			outputCall = &tx.execCalls[i]
		}
	}
	require.NotNil(t, outputCall, "expected an insertTxOutput exec call")

	addrs, ok := outputCall.args[3].([]string)
	require.True(t, ok, "addresses arg must be a concrete []string, not a nil interface")
	require.NotNil(t, addrs, "nil Addresses must be normalized before reaching Exec")
	require.Equal(t, []string{}, addrs)
}

// TestPushBlockSkipsExistingBlock confirms the idempotency fast path never
// touches the transaction/output insert queries.
func TestPushBlockSkipsExistingBlock(t *testing.T) {
	tx := &fakeTx{
		rows: []func(dest ...interface{}) error{
			func(dest ...interface{}) error {
				*dest[0].(*bool) = true
				return nil
			},
		},
	}
	g := newTestGateway(t, tx)

	block := bitcoinclient.Block{
		Height:   1,
		Hash:     hash256.MustDecode(fmt.Sprintf("%064d", 1)),
		PrevHash: hash256.Zero,
		NextHash: hash256.Zero,
	}

	err := g.PushBlock(context.Background(), block)
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.Empty(t, tx.execCalls)
}
