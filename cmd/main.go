package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	suitectl "github.com/suitectl/suitectl"
	"github.com/suitectl/suitectl/flags"
	"github.com/suitectl/suitectl/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "suitectl"
	app.Usage = "Test suite orchestrator"
	app.Description = "suitectl resolves, schedules and runs test units and reports their results"
	app.ArgsUsage = "[unit identifiers...]"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if suitectl.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if suitectl.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		slog.Error("Failed to setup open telemetry", "message", err)
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start sidecar servers
	svc := service.New()
	svc.Start(ctx)
	defer svc.Shutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "message", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	log := newLogger(ctx.String(flags.LogLevel.Name))
	slog.SetDefault(log)

	cfg, err := suitectl.NewConfig(ctx, log, ctx.String(flags.Manifest.Name))
	if err != nil {
		return suitectl.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config",
		"manifest", cfg.ManifestFile,
		"testDir", cfg.TestDir,
		"seed", cfg.Seed)

	svc, err := suitectl.New(ctx.Context, cfg, Version, func(error) {})
	if err != nil {
		return suitectl.NewRuntimeError(fmt.Errorf("failed to create service: %w", err))
	}

	if err := svc.Start(ctx.Context); err != nil {
		return err
	}

	// In continuous mode, block until the context is cancelled.
	if !cfg.RunOnce {
		<-ctx.Context.Done()
		if err := svc.Stop(context.Background()); err != nil {
			cfg.Log.Error("Error stopping service", "error", err)
		}
		return svc.WaitForShutdown(context.Background())
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
