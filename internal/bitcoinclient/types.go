// Package bitcoinclient implements the node-client façade (component 4.B):
// one RPC and one optional REST sub-client talking to a single Bitcoin-family
// full node, plus the initialization/version/chain/cross-client validation
// protocol. It is grounded on the teacher's common.go RPC-reply structs and
// frontend/rpc_client.go's connection-config idiom, generalized from the
// Zcash-only RPC surface to a plain getblockchaininfo/getnetworkinfo/
// getblockhash/getblock(2) surface.
package bitcoinclient

import (
	"github.com/fanatid/telescope/internal/hash256"
)

// BlockchainInfo is an immutable snapshot of "getblockchaininfo".
type BlockchainInfo struct {
	Chain     string
	Blocks    uint32
	BestHash  hash256.Hash256
}

// NetworkInfo is the subset of "getnetworkinfo" we need.
type NetworkInfo struct {
	// Subversion is shaped like "/Useragent:X.Y.Z[.W]/".
	Subversion string
}

// Block is a fully materialized block as returned by block_by_hash /
// block_by_height. Height is unique within a chain; PrevHash/NextHash are
// the zero hash when absent (genesis has no PrevHash, the tip has no
// NextHash).
type Block struct {
	Height       uint32
	Hash         hash256.Hash256
	PrevHash     hash256.Hash256
	NextHash     hash256.Hash256
	Transactions []Transaction
	Size         uint32
	Time         uint32
}

// Transaction is one transaction within a Block, in block order.
type Transaction struct {
	Hash     hash256.Hash256
	RawBytes []byte
	Inputs   []TxInput
	Outputs  []TxOutput
}

// TxInput is a tagged variant: exactly one of Coinbase or the {PrevTxID,
// PrevVout} pair is set, never both, never neither (see decodeTxInput).
type TxInput struct {
	Coinbase  []byte // non-nil iff this is a coinbase input
	IsSpend   bool
	PrevTxID  hash256.Hash256
	PrevVout  uint32
}

// TxOutput carries its value as a decimal string, preserving the exact
// precision the node's JSON emitted — a binary float would lose precision
// at the satoshi boundary on large values (see decodeTxOutput / Design Notes
// "Decimal values").
type TxOutput struct {
	Value     string
	Addresses []string // nil when the script has no resolvable addresses
}
