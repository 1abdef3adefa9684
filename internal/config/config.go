// Package config loads the YAML configuration shared by cmd/ingest and
// cmd/server, applies environment overrides and validates the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root document.
type Config struct {
	Storage Storage `yaml:"storage"`
	Ingest  Ingest  `yaml:"ingest"`
	Server  Server  `yaml:"server"`
	Metrics Metrics `yaml:"metrics"`
	LLM     LLM     `yaml:"llm"`
	Logging Logging `yaml:"logging"`
}

// Storage selects the sink backend.
type Storage struct {
	// Kind is a registered backend: sqlite, postgres, mssql, duckdb.
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
	// Mode is replace or append.
	Mode      string `yaml:"mode"`
	BatchRows int    `yaml:"batch_rows"`
}

// Ingest tunes decoding, flattening and archive expansion.
type Ingest struct {
	// Encodings is the ordered decode attempt list (native, utf-8, latin-1, cp1252).
	Encodings []string `yaml:"encodings"`
	// Delimiters lists CSV separator candidates; "\t" is accepted.
	Delimiters       []string `yaml:"delimiters"`
	LazyQuotes       bool     `yaml:"lazy_quotes"`
	FlattenSeparator string   `yaml:"flatten_separator"`
	FlattenMaxDepth  int      `yaml:"flatten_max_depth"`
	MaxEntryBytes    int64    `yaml:"max_entry_bytes"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	QueryLimit      int           `yaml:"query_limit"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is pushgateway, datadog or none.
	Backend        string        `yaml:"backend"`
	PushgatewayURL string        `yaml:"pushgateway_url"`
	Job            string        `yaml:"job"`
	Tags           []string      `yaml:"tags"`
	FlushEvery     time.Duration `yaml:"flush_every"`
}

// LLM configures the optional natural-language query generator.
type LLM struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxAttempts int     `yaml:"max_attempts"`
}

// Enabled reports whether a generator can be built.
func (l LLM) Enabled() bool { return strings.TrimSpace(l.APIKey) != "" }

// Logging configures the zerolog logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: Storage{Kind: "sqlite", DSN: "dados_fiscais.db", Mode: "replace", BatchRows: 500},
		Ingest: Ingest{
			Encodings:        []string{"native", "utf-8", "latin-1", "cp1252"},
			Delimiters:       []string{",", ";", `\t`, "|"},
			FlattenSeparator: "__",
			FlattenMaxDepth:  32,
			MaxEntryBytes:    256 << 20,
		},
		Server: Server{
			Addr:            ":8080",
			MaxUploadBytes:  64 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			QueryLimit:      1000,
		},
		Metrics: Metrics{Backend: "none", PushgatewayURL: "http://localhost:9091", Job: "fiscal_ingest", FlushEvery: 60 * time.Second},
		LLM:     LLM{Model: "gemini-1.5-flash", MaxAttempts: 3},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads path over Default and applies environment overrides. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Decode(bytes.NewReader(b), &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg, os.Getenv)
	return cfg, nil
}

// Decode strictly decodes YAML into cfg; unknown keys are errors. An empty
// document leaves cfg unchanged.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
// Empty values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.Kind, "FISCAL_DB_KIND")
	set(&cfg.Storage.DSN, "FISCAL_DB_DSN")
	set(&cfg.Storage.Mode, "FISCAL_WRITE_MODE")
	set(&cfg.Server.Addr, "FISCAL_ADDR")
	set(&cfg.LLM.APIKey, "LLM_API_KEY")
	set(&cfg.LLM.Model, "LLM_MODEL_NAME")
	set(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	set(&cfg.Logging.Level, "LOG_LEVEL")
	set(&cfg.Logging.Format, "LOG_FORMAT")
	set(&cfg.Metrics.Backend, "METRICS_BACKEND")
	set(&cfg.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")

	if v := strings.TrimSpace(getenv("METRICS_TAGS")); v != "" {
		var tags []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		cfg.Metrics.Tags = tags
	}
	if v := strings.TrimSpace(getenv("FISCAL_MAX_UPLOAD_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
}
