package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON_IncludesAppAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Format: FormatJSON, App: "tracker", Writer: &buf})

	l.With(map[string]any{"scope": "board"}).Info("refresh done", map[string]any{"entries": 3, "": "ignored"})

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if m["msg"] != "refresh done" {
		t.Fatalf("unexpected msg: %v", m["msg"])
	}
	if m["app"] != "tracker" || m["scope"] != "board" {
		t.Fatalf("missing base fields: %v", m)
	}
	if m["entries"] != float64(3) {
		t.Fatalf("expected entries=3, got %v", m["entries"])
	}
	if _, ok := m[""]; ok {
		t.Fatalf("empty key should be dropped")
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Warn, Format: FormatText, Writer: &buf})

	l.Info("hidden", nil)
	l.Warn("visible", map[string]any{"k": "v"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "k=v") {
		t.Fatalf("expected warn line with fields, got %q", out)
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	cases := map[string]Level{"debug": Debug, "": Info, "WARNING": Warn, "error": Error, "bogus": Info}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
	if ParseFormat(" JSON ") != FormatJSON || ParseFormat("x") != FormatText {
		t.Fatalf("unexpected format parsing")
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	l.With(map[string]any{"a": 1}).Error("nothing happens", nil)
}
