package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestHandlerWritesToSink(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Info("boot sequence complete", "cycles", 42)

	out := buf.String()
	if !strings.Contains(out, "boot sequence complete") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "INFO:") {
		t.Errorf("expected level prefix in output, got %q", out)
	}
}

func TestHandlerDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug("decoded opcode 0x90")

	if buf.Len() != 0 {
		t.Errorf("expected debug record to be suppressed, got %q", buf.String())
	}
}

func TestHandlerDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)
	logger.Debug("decoded opcode 0x90")

	if !strings.Contains(buf.String(), "decoded opcode 0x90") {
		t.Errorf("expected debug record to be emitted, got %q", buf.String())
	}
}
