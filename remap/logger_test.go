package remap

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	if slogger().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should be silent")
	}

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	if _, err := NewSPIRV(gputypes.BackendVulkan).Remap(fragStage(testModule().bytes()), testPipeline(t), Options{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "resource=tex0") {
		t.Errorf("expected remap debug output, got: %s", buf.String())
	}

	SetLogger(nil)
	if slogger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}
