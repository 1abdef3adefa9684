package config

import (
	"fmt"
	"strings"

	"fiscaletl/internal/decode"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding at a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

var (
	storageKinds   = map[string]bool{"sqlite": true, "postgres": true, "mssql": true, "duckdb": true}
	metricBackends = map[string]bool{"": true, "none": true, "noop": true, "pushgateway": true, "prom": true, "datadog": true, "dd": true}
)

// Validate returns every issue found in cfg. A config is usable when no
// issue has SeverityError.
func Validate(cfg Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Storage.Kind))
	switch {
	case kind == "":
		add(SeverityError, "storage.kind", "is required")
	case !storageKinds[kind]:
		add(SeverityError, "storage.kind", "unknown backend %q (want sqlite, postgres, mssql or duckdb)", cfg.Storage.Kind)
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" && kind != "duckdb" {
		add(SeverityError, "storage.dsn", "is required for %s", kind)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Mode)) {
	case "", "replace", "append":
	default:
		add(SeverityError, "storage.mode", "unknown mode %q (want replace or append)", cfg.Storage.Mode)
	}
	if cfg.Storage.BatchRows < 0 {
		add(SeverityError, "storage.batch_rows", "must not be negative")
	}

	for i, e := range cfg.Ingest.Encodings {
		if _, err := decode.ParseEncoding(e); err != nil || strings.TrimSpace(e) == "" {
			add(SeverityError, fmt.Sprintf("ingest.encodings[%d]", i), "unknown encoding %q", e)
		}
	}
	for i, d := range cfg.Ingest.Delimiters {
		if _, err := ParseDelimiter(d); err != nil {
			add(SeverityError, fmt.Sprintf("ingest.delimiters[%d]", i), "%v", err)
		}
	}
	if cfg.Ingest.FlattenMaxDepth < 0 {
		add(SeverityError, "ingest.flatten_max_depth", "must not be negative")
	}
	if cfg.Ingest.MaxEntryBytes < 0 {
		add(SeverityError, "ingest.max_entry_bytes", "must not be negative")
	}

	if cfg.Server.MaxUploadBytes <= 0 {
		add(SeverityWarning, "server.max_upload_bytes", "not set; uploads are unbounded")
	}

	if !metricBackends[strings.ToLower(cfg.Metrics.Backend)] {
		add(SeverityError, "metrics.backend", "unknown backend %q (want pushgateway, datadog or none)", cfg.Metrics.Backend)
	}
	if (strings.EqualFold(cfg.Metrics.Backend, "pushgateway") || strings.EqualFold(cfg.Metrics.Backend, "prom")) && strings.TrimSpace(cfg.Metrics.PushgatewayURL) == "" {
		add(SeverityError, "metrics.pushgateway_url", "is required for the pushgateway backend")
	}

	if !cfg.LLM.Enabled() {
		add(SeverityWarning, "llm.api_key", "not set; natural-language queries are disabled")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		add(SeverityError, "llm.temperature", "must be within [0, 2]")
	}

	return out
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ParseDelimiter accepts a single-rune separator or the escapes `\t` and "tab".
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab", "\t":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	if r[0] == '"' || r[0] == '\n' || r[0] == '\r' {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r[0], nil
}
