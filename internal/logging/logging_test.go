package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrinter_LogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info", "json")

	p := Printer(l)
	p.Printf("ingest: file ok name=%s", "a.xml")
	l.Debug().Msg("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["message"] != "ingest: file ok name=a.xml" {
		t.Fatalf("message = %v", rec["message"])
	}
}

func TestNewWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug", "text")
	l.Info().Str("table", "nota_itens").Msg("written")

	out := buf.String()
	if !strings.Contains(out, "written") || !strings.Contains(out, "table=nota_itens") {
		t.Fatalf("console output = %q", out)
	}
	Discard{}.Printf("ignored %d", 1)
}
