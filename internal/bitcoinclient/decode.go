package bitcoinclient

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/hash256"
)

// blockchainInfoJSON mirrors bitcoind's "getblockchaininfo" reply, trimmed
// to the fields the façade needs (unneeded fields are omitted, same
// convention the teacher's ZcashdRpcReplyGetblockchaininfo comment states).
type blockchainInfoJSON struct {
	Chain         string `json:"chain"`
	Blocks        uint32 `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}

func decodeBlockchainInfo(raw json.RawMessage) (BlockchainInfo, error) {
	var v blockchainInfoJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return BlockchainInfo{}, errs.Wrap(errs.KindProtocol, err, "decoding getblockchaininfo")
	}
	h, err := hash256.Decode(v.BestBlockHash)
	if err != nil {
		return BlockchainInfo{}, errs.Wrap(errs.KindProtocol, err, "decoding getblockchaininfo.bestblockhash")
	}
	return BlockchainInfo{Chain: v.Chain, Blocks: v.Blocks, BestHash: h}, nil
}

type networkInfoJSON struct {
	Subversion string `json:"subversion"`
}

func decodeNetworkInfo(raw json.RawMessage) (NetworkInfo, error) {
	var v networkInfoJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return NetworkInfo{}, errs.Wrap(errs.KindProtocol, err, "decoding getnetworkinfo")
	}
	return NetworkInfo{Subversion: v.Subversion}, nil
}

// getblockVerboseJSON is the verbosity=2 reply of "getblock": full
// transaction objects embedded inline, the only mode from which we can
// build a complete Block without a second round trip per transaction.
type getblockVerboseJSON struct {
	Hash              string          `json:"hash"`
	Height            uint32          `json:"height"`
	PreviousBlockHash string          `json:"previousblockhash"`
	NextBlockHash     string          `json:"nextblockhash"`
	Size              uint32          `json:"size"`
	Time              uint32          `json:"time"`
	Tx                []txVerboseJSON `json:"tx"`
}

type txVerboseJSON struct {
	Txid string          `json:"txid"`
	Hex  string          `json:"hex"`
	Vin  []vinJSON       `json:"vin"`
	Vout []voutJSON      `json:"vout"`
}

type vinJSON struct {
	Coinbase string `json:"coinbase"`
	Txid     string `json:"txid"`
	Vout     uint32 `json:"vout"`
}

type voutJSON struct {
	Value        json.Number   `json:"value"`
	ScriptPubKey scriptPubKeyJSON `json:"scriptPubKey"`
}

type scriptPubKeyJSON struct {
	Addresses []string `json:"addresses"`
	Address   string   `json:"address"` // newer bitcoind: single address, not a list
}

// decodeBlockVerbose parses a getblock(hash, 2) reply into our domain Block.
// It uses json.Number for output values so the exact decimal text the node
// emitted is preserved (see Design Notes "Decimal values").
func decodeBlockVerbose(raw json.RawMessage) (Block, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v getblockVerboseJSON
	if err := dec.Decode(&v); err != nil {
		return Block{}, errs.Wrap(errs.KindProtocol, err, "decoding getblock verbose result")
	}

	hash, err := hash256.Decode(v.Hash)
	if err != nil {
		return Block{}, errs.Wrap(errs.KindProtocol, err, "decoding block hash")
	}

	var prevHash, nextHash hash256.Hash256
	if v.PreviousBlockHash != "" {
		prevHash, err = hash256.Decode(v.PreviousBlockHash)
		if err != nil {
			return Block{}, errs.Wrap(errs.KindProtocol, err, "decoding block prevhash")
		}
	}
	if v.NextBlockHash != "" {
		nextHash, err = hash256.Decode(v.NextBlockHash)
		if err != nil {
			return Block{}, errs.Wrap(errs.KindProtocol, err, "decoding block nexthash")
		}
	}

	txs := make([]Transaction, len(v.Tx))
	for i, rawTx := range v.Tx {
		tx, err := decodeTransaction(rawTx, i == 0)
		if err != nil {
			return Block{}, errs.Wrap(errs.KindProtocol, err, "decoding transaction %d", i)
		}
		txs[i] = tx
	}

	return Block{
		Height:       v.Height,
		Hash:         hash,
		PrevHash:     prevHash,
		NextHash:     nextHash,
		Transactions: txs,
		Size:         v.Size,
		Time:         v.Time,
	}, nil
}

func decodeTransaction(v txVerboseJSON, isCoinbaseTx bool) (Transaction, error) {
	txid, err := hash256.Decode(v.Txid)
	if err != nil {
		return Transaction{}, fmt.Errorf("decoding txid: %w", err)
	}
	rawBytes, err := hex.DecodeString(v.Hex)
	if err != nil {
		return Transaction{}, fmt.Errorf("decoding raw hex: %w", err)
	}

	inputs := make([]TxInput, len(v.Vin))
	for i, vin := range v.Vin {
		in, err := decodeTxInput(vin, isCoinbaseTx && i == 0)
		if err != nil {
			return Transaction{}, fmt.Errorf("decoding input %d: %w", i, err)
		}
		inputs[i] = in
	}

	outputs := make([]TxOutput, len(v.Vout))
	for i, vout := range v.Vout {
		outputs[i] = decodeTxOutput(vout)
	}

	return Transaction{Hash: txid, RawBytes: rawBytes, Inputs: inputs, Outputs: outputs}, nil
}

// decodeTxInput enforces the mutual-exclusivity invariant: exactly one of
// "coinbase" or "{txid,vout}" must be present. It also enforces the
// positional invariant: a coinbase input may only appear where the caller
// expects one (index 0 of the first transaction in a block).
func decodeTxInput(v vinJSON, expectCoinbase bool) (TxInput, error) {
	hasCoinbase := v.Coinbase != ""
	hasSpend := v.Txid != ""

	switch {
	case hasCoinbase && hasSpend:
		return TxInput{}, errs.New(errs.KindProtocol, "tx input has both coinbase and txid/vout")
	case !hasCoinbase && !hasSpend:
		return TxInput{}, errs.New(errs.KindProtocol, "tx input has neither coinbase nor txid/vout")
	case hasCoinbase != expectCoinbase:
		return TxInput{}, errs.New(errs.KindProtocol, "tx input coinbase-ness %v does not match expected position (expectCoinbase=%v)", hasCoinbase, expectCoinbase)
	case hasCoinbase:
		data, err := hex.DecodeString(v.Coinbase)
		if err != nil {
			return TxInput{}, fmt.Errorf("decoding coinbase script: %w", err)
		}
		return TxInput{Coinbase: data}, nil
	default:
		prevTxID, err := hash256.Decode(v.Txid)
		if err != nil {
			return TxInput{}, fmt.Errorf("decoding prev txid: %w", err)
		}
		return TxInput{IsSpend: true, PrevTxID: prevTxID, PrevVout: v.Vout}, nil
	}
}

func decodeTxOutput(v voutJSON) TxOutput {
	var addrs []string
	switch {
	case len(v.ScriptPubKey.Addresses) > 0:
		addrs = v.ScriptPubKey.Addresses
	case v.ScriptPubKey.Address != "":
		addrs = []string{v.ScriptPubKey.Address}
	}
	return TxOutput{Value: v.Value.String(), Addresses: addrs}
}
