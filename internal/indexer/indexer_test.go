package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/bitcoinclient"
	"github.com/fanatid/telescope/internal/hash256"
	"github.com/fanatid/telescope/internal/shutdown"
	"github.com/fanatid/telescope/internal/status"
)

func TestWriterCount(t *testing.T) {
	require.Equal(t, 1, writerCount(true))
	require.Equal(t, catchUpWriters, writerCount(false))
}

// rpcNode is a tiny bitcoind stand-in returning a fixed, mutable
// getblockchaininfo response, for exercising the status loop end-to-end.
type rpcNode struct {
	mu     chan struct{} // binary semaphore guarding height/hash
	height uint32
	hash   hash256.Hash256
}

func newRPCNode(height uint32, hash hash256.Hash256) *rpcNode {
	n := &rpcNode{mu: make(chan struct{}, 1), height: height, hash: hash}
	n.mu <- struct{}{}
	return n
}

func (n *rpcNode) set(height uint32, hash hash256.Hash256) {
	<-n.mu
	n.height, n.hash = height, hash
	n.mu <- struct{}{}
}

func (n *rpcNode) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		<-n.mu
		height, hash := n.height, n.hash
		n.mu <- struct{}{}

		var req struct {
			ID uint64 `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		resp := struct {
			Result interface{} `json:"result"`
			Error  interface{} `json:"error"`
			ID     uint64      `json:"id"`
		}{
			Result: map[string]interface{}{
				"chain":      "main",
				"blocks":     height,
				"bestblockhash": hash.Encode(),
			},
			ID: req.ID,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func TestStatusLoopMergesOnChange(t *testing.T) {
	hashA := hash256.MustDecode("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	hashB := hash256.MustDecode("4860eb18bf1b1620e37e9490fc8a427514416fd75159ab86688e9a8300723f80")

	node := newRPCNode(100, hashA)
	srv := node.server()
	defer srv.Close()

	client, err := bitcoinclient.New(srv.URL, "")
	require.NoError(t, err)

	latch := shutdown.New()
	o := &Orchestrator{
		client: client,
		latch:  latch,
		log:    logrus.NewEntry(logrus.New()),
		status: status.New(),
	}
	o.status.Set(100, hashA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.statusLoop(ctx) }()

	node.set(101, hashB)
	require.Eventually(t, func() bool {
		snap := o.status.Get()
		return snap.NodeHeight == 101 && snap.NodeBestHash == hashB
	}, 2*time.Second, 10*time.Millisecond)

	latch.Trip()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("statusLoop did not exit after latch trip")
	}
}
