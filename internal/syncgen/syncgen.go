// Package syncgen implements the height generator (§4.D): a lazy,
// restartable sequence of heights to fetch, merging a finite list of
// skipped heights (gaps left by a prior run) ahead of a monotonic cursor
// advancing toward the live chain tip.
package syncgen

import (
	"github.com/fanatid/telescope/internal/errs"
	"github.com/fanatid/telescope/internal/status"
)

// confirmationDepth is the fixed number of blocks held back from the
// node's reported tip before a height is eligible for fetch.
const confirmationDepth = 3

// Generator produces heights in ascending order, merging a prior run's
// skipped heights ahead of the live cursor. Not safe for concurrent pull()
// calls; the prefetcher above it serializes access with its own mutex.
type Generator struct {
	start   uint32
	end     *uint32 // nil means "derive from status every pull"
	skipped []uint32
	status  *status.Status

	skippedIdx int
	next       uint32
}

// New constructs a Generator. dbHasBest/dbNext describe the persisted best
// block: when one exists, dbNext (its height + 1) must be >= start, or
// construction fails — a persisted chain that ends below the requested
// start height indicates a misconfigured start height, not something the
// generator can recover from by skipping forward. skipped is only honored
// when initialSync is true (it is populated by the database gateway from
// skipped_block_heights(start) only in that mode); it must already be in
// ascending order.
func New(start uint32, end *uint32, initialSync bool, dbHasBest bool, dbNext uint32, skipped []uint32, st *status.Status) (*Generator, error) {
	if dbHasBest && dbNext < start {
		return nil, errs.New(errs.KindConfiguration, "persisted next height %d is below configured start %d", dbNext, start)
	}

	next := start
	if dbHasBest && dbNext > next {
		next = dbNext
	}

	g := &Generator{start: start, end: end, status: st, next: next}
	if initialSync {
		g.skipped = skipped
	}
	return g, nil
}

// Pull returns the next height to fetch, or (_, false, nil) if the window
// is exhausted for now — callers should retry later as the status
// advances (catch-up mode). A skipped height beyond the current end is a
// fatal semantic error: it means a prior run persisted a gap the
// current sync range can never revisit.
func (g *Generator) Pull() (uint32, bool, error) {
	end := g.endHeight()

	if g.skippedIdx < len(g.skipped) {
		h := g.skipped[g.skippedIdx]
		if h > end {
			return 0, false, errs.New(errs.KindSemantic, "skipped height %d exceeds end height %d", h, end)
		}
		g.skippedIdx++
		return h, true, nil
	}

	if g.next <= end {
		h := g.next
		g.next++
		return h, true, nil
	}

	return 0, false, nil
}

// endHeight computes (E or status.node_height) - confirmationDepth,
// saturating at zero rather than underflowing when the chain tip is
// shallower than the confirmation depth (true only on brand-new test
// chains, never in production).
func (g *Generator) endHeight() uint32 {
	var tip uint32
	if g.end != nil {
		tip = *g.end
	} else {
		tip = g.status.Get().NodeHeight
	}
	if tip < confirmationDepth {
		return 0
	}
	return tip - confirmationDepth
}
