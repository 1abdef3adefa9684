// Command ingest loads fiscal documents (XML, CSV, ZIP of CSVs) into the
// configured relational store and prints one report line per file.
//
//	ingest [-config fiscal.yaml] [-backend sqlite] [-dsn dados.db] [-mode replace] file...
//
// The exit code is 0 when at least one file was ingested, 1 when every file
// failed or setup failed, and 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"fiscaletl/internal/config"
	"fiscaletl/internal/ingest"
	"fiscaletl/internal/logging"
	"fiscaletl/internal/metrics/setup"
	"fiscaletl/internal/storage"

	// register all backends with the storage factory.
	_ "fiscaletl/internal/storage/all"
)

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	readFile    func(path string) ([]byte, error)
	openSink    func(ctx context.Context, cfg storage.Config) (storage.Sink, error)
	initMetrics func(ctx context.Context, cfg config.Metrics, log setup.Logger) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		readFile:    os.ReadFile,
		openSink:    storage.Open,
		initMetrics: setup.Init,
	}
}

func main() {
	// .env is optional; it overrides the process environment when present.
	_ = godotenv.Overload()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath        = fs.String("config", "", "YAML config path (defaults apply when empty)")
		backend        = fs.String("backend", "", "storage backend: sqlite, postgres, mssql, duckdb (overrides config)")
		dsn            = fs.String("dsn", "", "storage DSN (overrides config)")
		mode           = fs.String("mode", "", "write mode: replace or append (overrides config)")
		dryRun         = fs.Bool("dry-run", false, "parse and report without writing")
		metricsBackend = fs.String("metrics-backend", "", "metrics backend: pushgateway, datadog, none (overrides config)")
		pushgatewayURL = fs.String("pushgateway-url", "", "Pushgateway base URL (overrides config)")
		asJSON         = fs.Bool("json", false, "print the batch report as JSON")
		validate       = fs.Bool("validate", false, "validate the configuration and exit")
		verbose        = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	files := fs.Args()
	if len(files) == 0 && !*validate {
		fmt.Fprintln(stderr, "usage: ingest [-config path] [-backend kind] [-dsn dsn] [-mode replace|append] file...")
		return 2
	}

	cfg, err := deps.loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	override(&cfg.Storage.Kind, *backend)
	override(&cfg.Storage.DSN, *dsn)
	override(&cfg.Storage.Mode, *mode)
	override(&cfg.Metrics.Backend, *metricsBackend)
	override(&cfg.Metrics.PushgatewayURL, *pushgatewayURL)
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		if iss.Severity == config.SeverityWarning && !*validate && !*verbose {
			continue
		}
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 1
	}
	if *validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	logger := logging.NewWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	log := logging.Printer(logger)

	cleanup, err := deps.initMetrics(ctx, cfg.Metrics, log)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	wmode, err := storage.ParseMode(cfg.Storage.Mode)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	engine, err := ingest.New(cfg.Ingest, log)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	uploads := make([]ingest.Upload, 0, len(files))
	var unreadable []ingest.FileReport
	for _, path := range files {
		b, err := deps.readFile(path)
		if err != nil {
			unreadable = append(unreadable, ingest.FileReport{
				Name:   path,
				Shape:  ingest.ShapeUnknown,
				Errors: []string{fmt.Sprintf("%s: %v", path, err)},
				Err:    err,
			})
			continue
		}
		uploads = append(uploads, ingest.Upload{Name: path, Data: b})
	}

	var w ingest.Writer
	if !*dryRun && len(uploads) > 0 {
		sink, err := deps.openSink(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN, BatchRows: cfg.Storage.BatchRows})
		if err != nil {
			fmt.Fprintf(stderr, "open storage: %v\n", err)
			return 1
		}
		defer sink.Close()
		w = sink
	}

	rep := engine.Batch(ctx, uploads, w, wmode)
	rep.Files = append(rep.Files, unreadable...)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(stderr, "encode report: %v\n", err)
			return 1
		}
	} else {
		printReport(stdout, rep)
	}

	if rep.Failed() == len(rep.Files) {
		return 1
	}
	return 0
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// printReport writes one line per file, then its warnings and errors
// indented below it.
func printReport(w io.Writer, rep *ingest.Report) {
	for _, f := range rep.Files {
		status := "ok"
		if f.Failed() {
			status = "FAILED"
		}
		var tables []string
		for _, t := range f.Tables {
			tables = append(tables, fmt.Sprintf("%s(%d)", t.Name, t.Rows))
		}
		fmt.Fprintf(w, "%-6s %s [%s] %s\n", status, f.Name, f.Shape, strings.Join(tables, " "))
		for _, m := range f.Warnings {
			fmt.Fprintf(w, "       warning: %s\n", m)
		}
		for _, m := range f.Errors {
			fmt.Fprintf(w, "       error: %s\n", m)
		}
	}
	fmt.Fprintf(w, "batch %s: %d file(s), %d failed\n", rep.ID, len(rep.Files), rep.Failed())
}
