// Package prefetch implements the block prefetcher (§4.E): a bounded,
// ordered producer wrapping the height generator. It keeps up to
// prefetch_size fetches in flight and guarantees Next() delivers blocks
// strictly in ascending height order regardless of which fetch finishes
// first.
package prefetch

import (
	"fmt"
	"sync"

	"github.com/fanatid/telescope/internal/bitcoinclient"
)

// Generator is the subset of syncgen.Generator the prefetcher needs, kept
// as an interface so tests can supply a fake sequence of heights.
type Generator interface {
	Pull() (uint32, bool, error)
}

// FetchFunc retrieves the block at height, reporting (_, false, nil) if
// the node does not have it — which the prefetcher treats as a fatal
// protocol violation, since a height the generator yielded must resolve.
type FetchFunc func(height uint32) (bitcoinclient.Block, bool, error)

type slotState int

const (
	slotInFlight slotState = iota
	slotReady
)

type slot struct {
	state  slotState
	result bitcoinclient.Block
	err    error
}

// Prefetcher is the bounded ordered producer. Construct with New, which
// immediately issues prefetchSize prefetches; drain it with Next until it
// reports the pipeline drained.
type Prefetcher struct {
	fetch FetchFunc

	genMu sync.Mutex
	gen   Generator

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[uint32]*slot
	drained bool
	fatal   error
}

// New constructs a Prefetcher over gen, fetching blocks with fetch, and
// immediately issues prefetchSize concurrent prefetches to fill the
// window.
func New(gen Generator, fetch FetchFunc, prefetchSize int) *Prefetcher {
	p := &Prefetcher{
		fetch:   fetch,
		gen:     gen,
		pending: map[uint32]*slot{},
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < prefetchSize; i++ {
		p.prefetch()
	}
	return p
}

// prefetch pulls the next height from the generator (if any) and spawns a
// task to fetch it, recording the in-flight slot first so Next() sees it
// immediately.
func (p *Prefetcher) prefetch() {
	p.genMu.Lock()
	h, ok, err := p.gen.Pull()
	p.genMu.Unlock()

	p.mu.Lock()
	if err != nil {
		p.fatal = err
		p.mu.Unlock()
		p.cond.Broadcast()
		return
	}
	if !ok {
		p.mu.Unlock()
		return
	}
	p.pending[h] = &slot{state: slotInFlight}
	p.mu.Unlock()

	go p.runFetch(h)
}

func (p *Prefetcher) runFetch(h uint32) {
	block, found, err := p.fetch(h)
	if err == nil && !found {
		err = fatalMissingBlockError(h)
	}

	p.mu.Lock()
	p.pending[h] = &slot{state: slotReady, result: block, err: err}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Next returns the block at the lowest pending height once it is ready,
// blocking until it is. It reports (_, false, nil) once the generator is
// exhausted and no fetch remains pending — the pipeline has drained. A
// fatal error from the generator itself (e.g. a skipped height beyond the
// window) is returned on the next call that would otherwise block.
func (p *Prefetcher) Next() (bitcoinclient.Block, bool, error) {
	p.prefetch() // keep the window full

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if len(p.pending) == 0 {
			if p.fatal != nil {
				err := p.fatal
				return bitcoinclient.Block{}, false, err
			}
			return bitcoinclient.Block{}, false, nil
		}

		minH, minSlot := p.lowestPendingLocked()
		if minSlot.state == slotReady {
			delete(p.pending, minH)
			if minSlot.err != nil {
				return bitcoinclient.Block{}, false, minSlot.err
			}
			return minSlot.result, true, nil
		}

		if p.fatal != nil {
			err := p.fatal
			return bitcoinclient.Block{}, false, err
		}

		p.cond.Wait()
	}
}

// lowestPendingLocked finds the minimum height currently pending (in
// flight or ready) — the one Next() must deliver next to preserve
// ascending order. Callers must hold p.mu and len(p.pending) > 0.
func (p *Prefetcher) lowestPendingLocked() (uint32, *slot) {
	var minH uint32
	var minSlot *slot
	found := false
	for h, s := range p.pending {
		if !found || h < minH {
			minH, minSlot, found = h, s, true
		}
	}
	return minH, minSlot
}

type missingBlockError struct{ height uint32 }

func fatalMissingBlockError(height uint32) error { return &missingBlockError{height} }

func (e *missingBlockError) Error() string {
	return fmt.Sprintf("prefetch: no block at height %d, but the generator yielded it", e.height)
}
