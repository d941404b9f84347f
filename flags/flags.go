package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "SUITECTL"

// prefixEnvVar adds the application prefix to an environment variable name.
func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Manifest = &cli.StringFlag{
		Name:     "manifest",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVar("MANIFEST"),
		Usage:    "Path to the test manifest file (eg. 'manifest.yaml')",
	}
	TestDir = &cli.StringFlag{
		Name:    "testdir",
		Value:   "",
		EnvVars: prefixEnvVar("TESTDIR"),
		Usage:   "Directory containing the test unit files referenced by the manifest",
	}
	RunnerBinary = &cli.StringFlag{
		Name:    "runner-binary",
		Value:   "run-unit",
		EnvVars: prefixEnvVar("RUNNER_BINARY"),
		Usage:   "Binary invoked to execute a single test unit file",
	}
	AbortOnError = &cli.BoolFlag{
		Name:    "abort-on-error",
		Value:   false,
		EnvVars: prefixEnvVar("ABORT_ON_ERROR"),
		Usage:   "Stop scheduling further units after the first errored unit",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: prefixEnvVar("TIMEOUT"),
		Usage:   "Per-unit timeout (e.g. '30s', '5m'). Set to 0 to disable.",
	}
	MemoryCeiling = &cli.Uint64Flag{
		Name:    "memory-ceiling",
		Value:   0,
		EnvVars: prefixEnvVar("MEMORY_CEILING"),
		Usage:   "Memory ceiling in bytes; memory-hungry units are deferred when set",
	}
	Seed = &cli.Uint64Flag{
		Name:    "seed",
		Value:   0,
		EnvVars: prefixEnvVar("SEED"),
		Usage:   "Shared random seed exported to every unit; generated when omitted",
	}
	StructuredOutput = &cli.BoolFlag{
		Name:    "structured-output",
		Value:   false,
		EnvVars: prefixEnvVar("STRUCTURED_OUTPUT"),
		Usage:   "Write the structured JSON report at the end of the run",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "reports",
		EnvVars: prefixEnvVar("REPORT_DIR"),
		Usage:   "Directory where structured reports are written",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVar("LOGDIR"),
		Usage:   "Directory to store per-unit test logs",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVar("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: prefixEnvVar("SERIAL"),
		Usage:   "Run every unit in the coordinator, disabling the worker pool",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: prefixEnvVar("CONCURRENCY"),
		Usage:   "Number of concurrent unit workers (0 = run in the coordinator)",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "Log level: debug, info, warn, error",
	}
)

var requiredFlags = []cli.Flag{
	Manifest,
}

var optionalFlags = []cli.Flag{
	TestDir,
	RunnerBinary,
	AbortOnError,
	Timeout,
	MemoryCeiling,
	Seed,
	StructuredOutput,
	ReportDir,
	LogDir,
	RunInterval,
	Serial,
	Concurrency,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
