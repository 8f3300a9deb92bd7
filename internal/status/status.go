// Package status holds the shared, mutable IndexerStatus snapshot: the
// node's last-observed height and best hash, guarded by a sync.RWMutex.
// The lock is not reader-preferring: once a writer is waiting, new readers
// block until that writer has acquired and released it.
// Exactly one writer (the status refresher loop in internal/indexer) and
// many readers (the height generator, observability).
package status

import (
	"sync"

	"github.com/fanatid/telescope/internal/hash256"
)

// Status is the mutable node-height snapshot. The zero value is the
// "default" (all zero) state the design calls for at construction.
type Status struct {
	mu           sync.RWMutex
	nodeHeight   uint32
	nodeBestHash hash256.Hash256
}

// New returns a Status at its default (all-zero) value.
func New() *Status {
	return &Status{}
}

// Snapshot is an immutable copy of the current NodeHeight/NodeBestHash pair.
type Snapshot struct {
	NodeHeight   uint32
	NodeBestHash hash256.Hash256
}

// Get takes a read lock and returns the current snapshot.
func (s *Status) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{NodeHeight: s.nodeHeight, NodeBestHash: s.nodeBestHash}
}

// Set overwrites the snapshot. Called only by the status refresher. The
// design notes say the refresher "never rewinds to a lower height without
// logging" — logging that decision is the caller's job (it has the logger);
// Set itself just records what it is told.
func (s *Status) Set(height uint32, bestHash hash256.Hash256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeHeight = height
	s.nodeBestHash = bestHash
}
