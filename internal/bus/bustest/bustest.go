// Package bustest starts an embedded NATS server for package tests.
package bustest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/loqalabs/signspeak/internal/bus"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/natsserver"
)

// NewLogger returns a logger that discards everything below error.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Connect starts a throwaway embedded server on a random port and returns a
// connected client. Both are torn down when the test ends.
func Connect(t testing.TB) *bus.Client {
	t.Helper()
	log := NewLogger()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}
