package ffdebug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogWritesWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	if !Enabled() {
		t.Fatalf("expected Enabled() to be true after SetOutput")
	}

	LogIndexing("scanned %d files", 3)

	got := buf.String()
	if !strings.Contains(got, "indexing: scanned 3 files") {
		t.Fatalf("unexpected log output: %q", got)
	}
}

func TestLogSilentWhenDisabled(t *testing.T) {
	SetOutput(nil)
	if Enabled() {
		t.Fatalf("expected Enabled() to be false")
	}

	var buf bytes.Buffer
	Log("test", "should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
