package bitcoinclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/hash256"
)

// Client is the node-client façade: one RPC sub-client and one optional REST
// sub-client, guaranteed (after Validate) to reference the same node.
type Client struct {
	rpc  *rpcClient
	rest *restClient // nil when the coin/config has no REST endpoint
}

// New builds a façade from an RPC URL and an optional REST URL. An empty
// restURL means the coin does not support the REST endpoint.
func New(rpcURL, restURL string) (*Client, error) {
	rpcEP, err := parseEndpoint(rpcURL)
	if err != nil {
		return nil, err
	}
	c := &Client{rpc: newRPCClient(rpcEP)}
	if restURL != "" {
		restEP, err := parseEndpoint(restURL)
		if err != nil {
			return nil, err
		}
		c.rest = newRESTClient(restEP)
	}
	return c, nil
}

// HasREST reports whether this façade was configured with a REST endpoint.
func (c *Client) HasREST() bool { return c.rest != nil }

// BlockchainInfo calls "getblockchaininfo".
func (c *Client) BlockchainInfo(ctx context.Context) (BlockchainInfo, error) {
	raw, err := c.rpc.call(ctx, "getblockchaininfo")
	if err != nil {
		return BlockchainInfo{}, err
	}
	return decodeBlockchainInfo(raw)
}

// BlockchainInfoREST calls the REST chaininfo endpoint, used only by the
// cross-client consistency check.
func (c *Client) BlockchainInfoREST(ctx context.Context) (BlockchainInfo, error) {
	body, ok, err := c.rest.get(ctx, "rest/chaininfo.json", restChainInfoTimeout)
	if err != nil {
		return BlockchainInfo{}, err
	}
	if !ok {
		return BlockchainInfo{}, errs.New(errs.KindProtocol, "rest chaininfo: unexpected 404")
	}
	return decodeBlockchainInfo(body)
}

// NetworkInfo calls "getnetworkinfo".
func (c *Client) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	raw, err := c.rpc.call(ctx, "getnetworkinfo")
	if err != nil {
		return NetworkInfo{}, err
	}
	return decodeNetworkInfo(raw)
}

// BlockHash calls "getblockhash", returning (hash, true, nil) normally and
// (_, false, nil) when the node reports "height out of range" (code -8).
func (c *Client) BlockHash(ctx context.Context, height uint32) (hash256.Hash256, bool, error) {
	raw, err := c.rpc.call(ctx, "getblockhash", height)
	if err != nil {
		if code, ok := rpcCode(err); ok && code == rpcCodeOutOfRange {
			return hash256.Hash256{}, false, nil
		}
		return hash256.Hash256{}, false, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return hash256.Hash256{}, false, errs.Wrap(errs.KindProtocol, err, "decoding getblockhash result")
	}
	h, err := hash256.Decode(s)
	if err != nil {
		return hash256.Hash256{}, false, errs.Wrap(errs.KindProtocol, err, "decoding getblockhash hex")
	}
	return h, true, nil
}

// BlockByHash fetches the full block for hash, preferring REST when
// available. REST 404 and RPC code -5 both surface as (_, false, nil). A
// returned block whose Hash field disagrees with the requested hash is a
// fatal *errs.Error of KindSemantic (ResultMismatch).
func (c *Client) BlockByHash(ctx context.Context, hash hash256.Hash256) (Block, bool, error) {
	var block Block
	var found bool
	var err error

	if c.rest != nil {
		block, found, err = c.blockByHashREST(ctx, hash)
	} else {
		block, found, err = c.blockByHashRPC(ctx, hash)
	}
	if err != nil || !found {
		return Block{}, false, err
	}

	if !block.Hash.Equal(hash) {
		return Block{}, false, errs.New(errs.KindSemantic, "block hash mismatch: requested %s got %s", hash, block.Hash)
	}
	return block, true, nil
}

func (c *Client) blockByHashREST(ctx context.Context, hash hash256.Hash256) (Block, bool, error) {
	path := fmt.Sprintf("rest/block/%s.json", hash.Encode())
	body, ok, err := c.rest.get(ctx, path, 0)
	if err != nil {
		return Block{}, false, err
	}
	if !ok {
		return Block{}, false, nil
	}
	block, err := decodeBlockVerbose(body)
	if err != nil {
		return Block{}, false, err
	}
	return block, true, nil
}

func (c *Client) blockByHashRPC(ctx context.Context, hash hash256.Hash256) (Block, bool, error) {
	raw, err := c.rpc.call(ctx, "getblock", hash.Encode(), 2)
	if err != nil {
		if code, ok := rpcCode(err); ok && code == rpcCodeBlockNotFound {
			return Block{}, false, nil
		}
		return Block{}, false, err
	}
	block, err := decodeBlockVerbose(raw)
	if err != nil {
		return Block{}, false, err
	}
	return block, true, nil
}

// BlockByHeight composes BlockHash then BlockByHash.
func (c *Client) BlockByHeight(ctx context.Context, height uint32) (Block, bool, error) {
	hash, ok, err := c.BlockHash(ctx, height)
	if err != nil || !ok {
		return Block{}, false, err
	}
	return c.BlockByHash(ctx, hash)
}
