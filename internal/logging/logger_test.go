package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}
}

func TestLoggerErrorf(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Errorf("writer flush failed: %v", "disk full")
	if !strings.Contains(buf.String(), "writer flush failed: disk full") {
		t.Errorf("expected formatted error message, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Errorf("expected [ERROR] prefix, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected debug message with kv pair, got: %s", buf.String())
	}

	buf.Reset()
	Error("flush error")
	if !strings.Contains(buf.String(), "flush error") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}

func TestLoggerCollapsesRepeatedLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelError, Output: &buf})

	for i := 0; i < 5; i++ {
		logger.Error("flush failed", "path", "trace.clog")
	}
	if strings.Count(buf.String(), "flush failed") != 1 {
		t.Errorf("expected a run of identical lines collapsed to one, got: %s", buf.String())
	}

	logger.Error("flush failed", "path", "other.clog")
	out := buf.String()
	if !strings.Contains(out, "repeated 4 more times") {
		t.Errorf("expected a repeat-count summary before the new line, got: %s", out)
	}
	if !strings.Contains(out, "other.clog") {
		t.Errorf("expected the distinct line to still print, got: %s", out)
	}
}

func TestLoggerFlushEmitsPendingRepeats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Warn("retrying")
	logger.Warn("retrying")
	logger.Warn("retrying")
	if strings.Contains(buf.String(), "repeated") {
		t.Errorf("did not expect a summary before Flush, got: %s", buf.String())
	}

	logger.Flush()
	if !strings.Contains(buf.String(), "repeated 2 more times") {
		t.Errorf("expected Flush to emit the pending repeat count, got: %s", buf.String())
	}
}
