package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowlane/pkg/observability"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("layout done") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("refresh", "cycle", 1) }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("refresh", "cycle", 1) }, true},
		{"warn at info level", log.InfoLevel, func(l *log.Logger) { l.Warn("could not load saved view") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressReportsElapsed(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	time.Sleep(5 * time.Millisecond)
	prog.done("Rendered 2 format(s)")

	out := buf.String()
	if !strings.Contains(out, "Rendered 2 format(s) (") || !strings.Contains(out, "ms)") {
		t.Errorf("progress output = %q, want message with elapsed time", out)
	}
}

func TestLoggerContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("a bare context should yield the default logger")
	}

	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), l)
	if loggerFromContext(ctx) != l {
		t.Fatal("loggerFromContext should return the attached logger")
	}
	loggerFromContext(ctx).Info("watching", "graph", "run-1")
	if !strings.Contains(buf.String(), "run-1") {
		t.Errorf("attached logger output = %q", buf.String())
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	h := logHooks{logger: newLogger(&buf, log.DebugLevel)}
	ctx := context.Background()

	h.OnLayoutStart(ctx, "run-1", 4)
	h.OnLayoutComplete(ctx, "run-1", 2, time.Millisecond, nil)
	h.OnSelect(ctx, "run-1", "3")
	h.OnCacheHit(ctx, "render")

	out := buf.String()
	for _, want := range []string{"layout start", "layout done", "select", "cache hit", "run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("hook output missing %q:\n%s", want, out)
		}
	}
}

func TestLogHooksQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	h := logHooks{logger: newLogger(&buf, log.InfoLevel)}
	h.OnCycle(context.Background(), 1, true, time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Errorf("debug hooks should be silent at info level, got %q", buf.String())
	}
}

func TestInstallHooks(t *testing.T) {
	defer observability.Reset()

	var buf bytes.Buffer
	installHooks(newLogger(&buf, log.DebugLevel))
	observability.Layout().OnLayoutStart(context.Background(), "run-7", 3)
	observability.Refresh().OnStateChange(context.Background(), "live", "finished")

	out := buf.String()
	if !strings.Contains(out, "run-7") || !strings.Contains(out, "finished") {
		t.Errorf("installed hooks did not reach the logger:\n%s", out)
	}
}
