package health

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fanatid/telescope/internal/shutdown"
)

func TestHealthzReflectsLatchState(t *testing.T) {
	latch := shutdown.New()
	log := logrus.NewEntry(logrus.New())

	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), "127.0.0.1:18765", latch, log) }()
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:18765/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	latch.Trip()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
}
