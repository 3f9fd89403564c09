package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(8080, http.NotFoundHandler(), 0)
	if srv.Addr() != ":8080" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.shutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("expected default shutdown timeout, got %s", srv.shutdownTimeout)
	}
	if srv.inner.ReadHeaderTimeout == 0 || srv.inner.WriteTimeout == 0 {
		t.Fatal("expected server timeouts to be set")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(0, http.NotFoundHandler(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, logger)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServeReturnsListenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	srv := New(ln.Addr().(*net.TCPAddr).Port, http.NotFoundHandler(), time.Second)
	srv.inner.Addr = ln.Addr().String()

	if err := srv.Serve(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected an error for a port already in use")
	}
}
