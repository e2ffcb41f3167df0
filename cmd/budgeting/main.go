package main

import (
	"context"
	"os"

	"budgeting/internal/backend"
	"budgeting/internal/cli"
	apphttp "budgeting/internal/http"
	"budgeting/internal/ledger"
	"budgeting/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return 1
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		return 1
	}

	l := res.Ledger(ledger.WithLogger(logger))

	srv := apphttp.NewServer(":"+cfg.Port, l, apphttp.Options{
		Exporter:           res.Exporter,
		Ready:              res.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		ViewCacheSize:      cfg.ViewCacheSize,
		ViewCacheTTL:       cfg.ViewCacheTTL,
		Logger:             logger,
	})

	logger.Info("Starting budgeting server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"sheets_export", res.Exporter != nil)

	exitCode := 0
	if err := cli.Serve(ctx, logger, srv, cfg.ShutdownTimeout); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		exitCode = 1
	}

	if err := l.Close(); err != nil {
		logger.Error("Failed to close ledger", log.FieldError, err)
		exitCode = 1
	}
	logger.Info("Server stopped")
	return exitCode
}
