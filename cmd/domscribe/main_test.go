package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_NoModeReturnsError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snap := filepath.Join(t.TempDir(), "snap.db")

	// No mode flag set: run must come back with an error rather than
	// exiting the process, so deferred cleanup gets to execute.
	err := run(context.Background(), logger, "", "", "", snap, false, false)
	if err == nil {
		t.Fatal("expected an error when no mode is selected")
	}
	if !strings.Contains(err.Error(), "no mode selected") {
		t.Fatalf("unexpected error: %v", err)
	}
}
