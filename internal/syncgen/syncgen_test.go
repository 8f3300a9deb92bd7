package syncgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/hash256"
	"github.com/fanatid/telescope/internal/status"
)

func newStatusAt(height uint32) *status.Status {
	s := status.New()
	s.Set(height, hash256.Zero)
	return s
}

func TestConstructionFailsWhenDbNextBelowStart(t *testing.T) {
	st := newStatusAt(1000)
	_, err := New(500, nil, false, true, 100, nil, st)
	require.Error(t, err)
}

func TestConstructionOKWhenNoBestBlock(t *testing.T) {
	st := newStatusAt(1000)
	g, err := New(500, nil, false, false, 0, nil, st)
	require.NoError(t, err)
	require.Equal(t, uint32(500), g.next)
}

func TestPullPrefersSkippedHeightsFirst(t *testing.T) {
	st := newStatusAt(1000)
	g, err := New(0, nil, true, true, 50, []uint32{5, 10, 20}, st)
	require.NoError(t, err)

	h, ok, err := g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(5), h)

	h, ok, err = g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(10), h)

	h, ok, err = g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(20), h)

	// exhausted skipped list, falls through to the cursor
	h, ok, err = g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(50), h)
}

func TestSkippedNotHonoredOutsideInitialSync(t *testing.T) {
	st := newStatusAt(1000)
	g, err := New(0, nil, false, true, 50, []uint32{5, 10}, st)
	require.NoError(t, err)

	h, ok, err := g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(50), h)
}

func TestPullAdvancesCursorAndSaturatesAtEnd(t *testing.T) {
	st := newStatusAt(10) // end = 10 - 3 = 7
	g, err := New(5, nil, false, false, 0, nil, st)
	require.NoError(t, err)

	for expect := uint32(5); expect <= 7; expect++ {
		h, ok, err := g.Pull()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, expect, h)
	}

	_, ok, err := g.Pull()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPullResumesAsStatusAdvances(t *testing.T) {
	st := newStatusAt(10)
	g, err := New(8, nil, false, false, 0, nil, st)
	require.NoError(t, err)

	_, ok, err := g.Pull()
	require.NoError(t, err)
	require.False(t, ok) // end=7, next=8, nothing yet

	st.Set(12, hash256.Zero) // end now 9
	h, ok, err := g.Pull()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(8), h)
}

func TestPullFatalsWhenSkippedExceedsEnd(t *testing.T) {
	st := newStatusAt(10) // end = 7
	g, err := New(0, nil, true, true, 50, []uint32{100}, st)
	require.NoError(t, err)

	_, _, err = g.Pull()
	require.Error(t, err)
}

func TestExplicitEndOverridesStatus(t *testing.T) {
	st := newStatusAt(1000)
	end := uint32(13)
	g, err := New(10, &end, false, false, 0, nil, st)
	require.NoError(t, err)

	for expect := uint32(10); expect <= 10; expect++ {
		h, ok, err := g.Pull()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, expect, h)
	}

	_, ok, err := g.Pull()
	require.NoError(t, err)
	require.False(t, ok)
}
