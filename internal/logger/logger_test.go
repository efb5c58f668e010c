package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", "warn")
	l.Info("dropped")
	l.Warn("kept", "form", "health")
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "dropped") {
		t.Fatalf("info should be filtered: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if rec["msg"] != "kept" || rec["form"] != "health" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewTextDefaults(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "", "bogus").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSetIgnoresNil(t *testing.T) {
	prev := L
	Set(nil)
	if L != prev {
		t.Fatal("Set(nil) replaced the logger")
	}
}
