package suitectl

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/suitectl/suitectl/flags"
)

// Config holds the application configuration
type Config struct {
	ManifestFile     string
	TestDir          string
	RunnerBinary     string
	Units            []string      // Requested identifiers, in order; empty means all
	AbortOnError     bool          // Stop scheduling after the first errored unit
	Timeout          time.Duration // Per-unit timeout; 0 disables
	MemoryCeiling    uint64        // Bytes; memory-hungry units deferred when set
	Seed             uint64        // Shared seed exported to every unit
	StructuredOutput bool          // Write the JSON report at the end of the run
	ReportDir        string        // Directory for structured reports
	LogDir           string        // Directory to store per-unit logs
	RunInterval      time.Duration // Interval between test runs
	RunOnce          bool          // Indicates if the service should exit after one test run
	Serial           bool          // Whether to run units serially instead of in parallel
	Concurrency      int           // Number of concurrent unit workers (0 = coordinator only)
	Log              *slog.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log *slog.Logger, manifestFile string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if manifestFile == "" {
		return nil, errors.New("manifest file is required")
	}

	absManifest, err := filepath.Abs(manifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for manifest '%s': %w", manifestFile, err)
	}

	// The test directory defaults to the manifest's directory so relative unit
	// file paths resolve next to the manifest.
	testDir := ctx.String(flags.TestDir.Name)
	if testDir == "" {
		testDir = filepath.Dir(absManifest)
	}
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	reportDir := ctx.String(flags.ReportDir.Name)
	if reportDir == "" {
		reportDir = "reports"
	}
	reportDir, err = filepath.Abs(reportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for report directory '%s': %w", reportDir, err)
	}

	seed := ctx.Uint64(flags.Seed.Name)
	if !ctx.IsSet(flags.Seed.Name) {
		seed, err = generateSeed()
		if err != nil {
			return nil, fmt.Errorf("failed to generate seed: %w", err)
		}
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		ManifestFile:     absManifest,
		TestDir:          absTestDir,
		RunnerBinary:     ctx.String(flags.RunnerBinary.Name),
		Units:            ctx.Args().Slice(),
		AbortOnError:     ctx.Bool(flags.AbortOnError.Name),
		Timeout:          ctx.Duration(flags.Timeout.Name),
		MemoryCeiling:    ctx.Uint64(flags.MemoryCeiling.Name),
		Seed:             seed,
		StructuredOutput: ctx.Bool(flags.StructuredOutput.Name),
		ReportDir:        reportDir,
		LogDir:           logDir,
		RunInterval:      runInterval,
		RunOnce:          runOnce,
		Serial:           ctx.Bool(flags.Serial.Name),
		Concurrency:      ctx.Int(flags.Concurrency.Name),
		Log:              log,
	}, nil
}

// generateSeed draws a fresh random seed. The seed is always surfaced in the
// run summary so any run can be reproduced.
func generateSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
