// Package main provides the entry point for the strategy validation sweep:
// load a bar series, expand the parameter grid, backtest and Monte Carlo
// validate every candidate, and write the ranked report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/helios-labs/strategy-validator/internal/config"
	"github.com/helios-labs/strategy-validator/internal/data"
	"github.com/helios-labs/strategy-validator/internal/optimization"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	dataPath := flag.String("data", "", "Path to bar series (CSV or JSON), overrides config")
	outputPath := flag.String("out", "", "Path for the JSON report, overrides config")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *outputPath != "" {
		cfg.OutputPath = *outputPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if cfg.DataPath == "" {
		os.Stderr.WriteString("no bar series given: set -data or data_path in the config\n")
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting strategy validation sweep",
		zap.String("data", cfg.DataPath),
		zap.String("output", cfg.OutputPath),
		zap.String("timeframe", string(cfg.Sweep.Timeframe)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("shutdown signal received, finishing in-flight evaluations",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	metrics := optimization.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		go serveMetrics(logger, cfg.MetricsAddr, registry)
	}

	bars, err := data.NewLoader(logger).Load(cfg.DataPath)
	if err != nil {
		logger.Fatal("failed to load bar series", zap.Error(err))
	}

	controller := optimization.NewController(logger, &cfg.Sweep, metrics)

	var bar *progressbar.ProgressBar
	var barOnce sync.Once
	controller.Progress = func(done, total int) {
		barOnce.Do(func() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("evaluating"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		})
		bar.Set(done)
	}

	result, runErr := controller.Run(ctx, bars)
	if result == nil {
		logger.Fatal("sweep failed", zap.Error(runErr))
	}
	if runErr != nil {
		logger.Warn("sweep interrupted, writing partial report", zap.Error(runErr))
	}

	if err := writeReport(cfg.OutputPath, result); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}

	if result.Best != nil {
		logger.Info("best candidate",
			zap.String("key", result.Best.Key),
			zap.Float64("score", result.Best.Score),
			zap.Float64("win_rate", result.Best.Metrics.WinRate),
			zap.Float64("sharpe", result.Best.Metrics.SharpeRatio),
			zap.Float64("min_survival", result.Best.Validation.Consensus.MinSurvival),
		)
	} else {
		logger.Warn("no candidate passed the gates",
			zap.Int("gated", result.Gated),
			zap.Int("failed", result.Failed),
		)
	}
	logger.Info("report written", zap.String("path", cfg.OutputPath))
}

func writeReport(path string, result *optimization.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func serveMetrics(logger *zap.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", zap.Error(err))
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
