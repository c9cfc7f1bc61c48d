package main

import (
	"context"
	"log/slog"
	"testing"
)

func TestSweepLoggerQuietUnderTUI(t *testing.T) {
	ctx := context.Background()
	if l := sweepLogger(true); l.Enabled(ctx, slog.LevelInfo) || l.Enabled(ctx, slog.LevelWarn) {
		t.Error("driver logger writes records while the progress view is shown")
	}
	if l := sweepLogger(false); l != slog.Default() {
		t.Error("driver logger without the progress view is not the default logger")
	}
}
