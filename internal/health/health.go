// Package health is the probes/metrics HTTP listener: a bare net/http
// server exposing Prometheus's /metrics and a /healthz liveness endpoint
// reflecting shutdown-latch state. Grounded on the teacher's
// cmd/root.go:startHTTPServer, which does exactly the /metrics half of
// this; /healthz is new, since the teacher had no liveness endpoint of its
// own (its health signal was the gRPC server simply being reachable).
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fanatid/telescope/internal/shutdown"
)

// shutdownGrace bounds how long Serve waits for in-flight /metrics or
// /healthz requests to finish once the latch trips.
const shutdownGrace = 5 * time.Second

// Serve starts the HTTP listener on addr and blocks until the shutdown
// latch trips, at which point it shuts the server down gracefully and
// returns. It never returns a "real" error for a clean shutdown; a bind
// failure is returned immediately.
func Serve(ctx context.Context, addr string, latch *shutdown.Latch, log *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if latch.Check() != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("shutting down"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-latch.Done():
		log.Info("stopping health/metrics listener")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
