package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/hash256"
)

func TestDefaultIsZero(t *testing.T) {
	s := New()
	snap := s.Get()
	require.Equal(t, uint32(0), snap.NodeHeight)
	require.True(t, snap.NodeBestHash.IsZero())
}

func TestSetThenGet(t *testing.T) {
	s := New()
	h := hash256.MustDecode("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	s.Set(100, h)
	snap := s.Get()
	require.Equal(t, uint32(100), snap.NodeHeight)
	require.True(t, snap.NodeBestHash.Equal(h))
}

func TestConcurrentReadersDoNotRace(t *testing.T) {
	s := New()
	h := hash256.MustDecode("4860eb18bf1b1620e37e9490fc8a427514416fd75159ab86688e9a8300723f80")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(height uint32) {
			defer wg.Done()
			s.Set(height, h)
		}(uint32(i))
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Get()
		}()
	}
	wg.Wait()
}
