package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/errs"
)

func TestCheckBeforeAndAfterTrip(t *testing.T) {
	l := New()
	require.NoError(t, l.Check())
	l.Trip()
	require.True(t, errs.IsCancelled(l.Check()))
}

func TestTripIsIdempotent(t *testing.T) {
	l := New()
	var woken int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait()
			atomic.AddInt64(&woken, 1)
		}()
	}
	// Multiple trips must not panic (close of closed channel) and must
	// still wake every waiter exactly once.
	l.Trip()
	l.Trip()
	l.Trip()
	wg.Wait()
	require.Equal(t, int64(8), woken)
}

func TestSleepReturnsCancelledOnTrip(t *testing.T) {
	l := New()
	done := make(chan error, 1)
	go func() {
		done <- l.Sleep(time.Hour)
	}()
	time.Sleep(10 * time.Millisecond)
	l.Trip()
	err := <-done
	require.True(t, errs.IsCancelled(err))
}

func TestSleepReturnsNilWhenDurationElapses(t *testing.T) {
	l := New()
	require.NoError(t, l.Sleep(5*time.Millisecond))
}

func TestContextCancelledOnTrip(t *testing.T) {
	l := New()
	ctx, cancel := l.Context(context.Background())
	defer cancel()
	l.Trip()
	<-ctx.Done()
}
