// Command server serves the ingestion and query HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fiscaletl/internal/config"
	"fiscaletl/internal/ingest"
	"fiscaletl/internal/logging"
	"fiscaletl/internal/metrics/setup"
	"fiscaletl/internal/nlsql"
	"fiscaletl/internal/nlsql/gemini"
	"fiscaletl/internal/storage"
	"fiscaletl/internal/web"

	// register all backends with the storage factory.
	_ "fiscaletl/internal/storage/all"
)

func main() {
	os.Exit(run())
}

func run() int {
	envErr := godotenv.Overload()

	cfgPath := flag.String("config", "", "YAML config path (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if envErr != nil {
		logger.Info().Msg("no .env file found, using environment variables")
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		ev := logger.Warn()
		if iss.Severity == config.SeverityError {
			ev = logger.Error()
		}
		ev.Str("path", iss.Path).Msg(iss.Message)
	}
	if config.HasErrors(issues) {
		logger.Fatal().Msg("configuration is invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Printer(logger)
	cleanupMetrics, err := setup.Init(ctx, cfg.Metrics, log)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init metrics")
	}
	defer cleanupMetrics()

	sink, err := storage.Open(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN, BatchRows: cfg.Storage.BatchRows})
	if err != nil {
		logger.Fatal().Err(err).Str("kind", cfg.Storage.Kind).Msg("failed to open storage")
	}
	defer sink.Close()
	logger.Info().Str("kind", cfg.Storage.Kind).Msg("storage opened")

	engine, err := ingest.New(cfg.Ingest, log)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build ingest engine")
	}
	mode, err := storage.ParseMode(cfg.Storage.Mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid write mode")
	}

	var gen nlsql.Generator
	if cfg.LLM.Enabled() {
		g, err := gemini.New(cfg.LLM, gemini.DialectFor(cfg.Storage.Kind))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build SQL generator")
		}
		gen = g
		logger.Info().Str("model", g.Model).Msg("natural-language queries enabled")
	}

	srv := web.NewServer(engine, sink, gen, web.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		QueryLimit:     cfg.Server.QueryLimit,
		DefaultMode:    mode,
	}, logger)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server stopped")
		return 1
	}
	logger.Info().Msg("server stopped")
	return 0
}
