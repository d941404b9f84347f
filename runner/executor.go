package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/suitectl/suitectl/logging"
	"github.com/suitectl/suitectl/types"
)

var _ Executor = (*unitExecutor)(nil)

// Executor runs one test unit to completion. Execute is a total function:
// every failure mode, including a crash of the hosting process, is converted
// into an Outcome; no error ever propagates out.
type Executor interface {
	Execute(ctx context.Context, unit types.TestUnit) Execution
}

// Execution is the fully classified result of running one unit.
type Execution struct {
	Unit     types.TestUnit
	Outcome  types.Outcome
	Report   *UnitReport // non-nil when the unit produced a decodable document
	Duration time.Duration
	LogPath  string // per-unit captured output, when a file logger is configured
}

// ExecutorConfig holds configuration for creating a unit executor.
type ExecutorConfig struct {
	RunnerBinary string        // binary invoked as `runner-binary <unit file>`
	Timeout      time.Duration // per-unit deadline; 0 disables
	Seed         uint64        // shared seed exported to every unit
	WorkDir      string        // working directory for unit processes
	Log          *slog.Logger
	FileLogger   *logging.FileLogger
}

type unitExecutor struct {
	cfg ExecutorConfig
}

// NewExecutor creates a unit executor.
func NewExecutor(cfg ExecutorConfig) (Executor, error) {
	if cfg.RunnerBinary == "" {
		cfg.RunnerBinary = DefaultRunnerBinary
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
		cfg.Log.Error("No logger provided, using default")
	}
	return &unitExecutor{cfg: cfg}, nil
}

// Execute runs the unit as a subprocess and classifies the result.
func (e *unitExecutor) Execute(ctx context.Context, unit types.TestUnit) (execution Execution) {
	execution = Execution{Unit: unit}

	// A panic anywhere below must not take down the coordinator or a worker
	// slot; it degrades to a process error for this unit only.
	defer func() {
		if rec := recover(); rec != nil {
			e.cfg.Log.Error("Panic while executing unit", "unit", unit.ID, "error", rec)
			execution.Outcome = types.ProcessErrorOutcome(fmt.Sprintf("runtime error: %v", rec))
		}
	}()

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.cfg.RunnerBinary, unit.Path)
	if e.cfg.WorkDir != "" {
		cmd.Dir = e.cfg.WorkDir
	}
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", SeedEnvVar, e.cfg.Seed),
		fmt.Sprintf("%s=%s", TimeoutEnvVar, strconv.Itoa(int(e.cfg.Timeout.Seconds()))),
	)

	var stdout bytes.Buffer
	stdoutTail := newTailBuffer(defaultDiagnosticTailBytes)
	stderrTail := newTailBuffer(defaultDiagnosticTailBytes)
	cmd.Stdout = io.MultiWriter(&stdout, stdoutTail)
	cmd.Stderr = stderrTail

	e.cfg.Log.Debug("Running unit",
		"unit", unit.ID,
		"path", unit.Path,
		"command", cmd.String(),
		"timeout", e.cfg.Timeout,
		"seed", e.cfg.Seed)

	start := time.Now()
	runErr := cmd.Run()
	execution.Duration = time.Since(start)

	execution.LogPath = e.storeUnitLog(unit, stdout.Bytes(), stderrTail.Bytes())

	// Timeout wins over every other classification.
	if runCtx.Err() == context.DeadlineExceeded {
		execution.Outcome = types.TimeoutOutcome(fmt.Sprintf(
			"unit timed out after %v\n%s", e.cfg.Timeout, e.diagnostic(stdoutTail, stderrTail)))
		return execution
	}

	rep, parseErr := ParseUnitReport(bytes.NewReader(stdout.Bytes()))
	if parseErr != nil {
		execution.Outcome = types.ProcessErrorOutcome(e.processDiagnostic(runErr, parseErr, stdoutTail, stderrTail))
		return execution
	}
	execution.Report = rep
	execution.Outcome = OutcomeFromReport(rep)

	// A decodable document from a process that still died abnormally is not
	// trustworthy unless the document itself explains the exit status.
	if runErr != nil && execution.Outcome.ErrorFree() {
		execution.Report = nil
		execution.Outcome = types.ProcessErrorOutcome(e.processDiagnostic(runErr, nil, stdoutTail, stderrTail))
	}

	return execution
}

// storeUnitLog persists the unit's raw output when a file logger is present.
func (e *unitExecutor) storeUnitLog(unit types.TestUnit, stdout, stderr []byte) string {
	if e.cfg.FileLogger == nil {
		return ""
	}
	path, err := e.cfg.FileLogger.WriteUnitLog(unit.ID, stdout, stderr)
	if err != nil {
		e.cfg.Log.Error("Failed to store unit log", "unit", unit.ID, "error", err)
		return ""
	}
	return path
}

// processDiagnostic assembles the raw diagnostic text for a process error.
// No structure is assumed about the output.
func (e *unitExecutor) processDiagnostic(runErr, parseErr error, stdoutTail, stderrTail *tailBuffer) string {
	var b bytes.Buffer

	switch {
	case runErr == nil:
		// Clean exit with undecodable output.
	default:
		exitErr := &exec.ExitError{}
		if errors.As(runErr, &exitErr) {
			if exitErr.ExitCode() == -1 {
				fmt.Fprintf(&b, "unit terminated by signal: %s\n", exitErr.String())
			} else {
				fmt.Fprintf(&b, "unit exited with code %d\n", exitErr.ExitCode())
			}
		} else {
			fmt.Fprintf(&b, "failed to start unit: %v\n", runErr)
		}
	}

	if parseErr != nil {
		fmt.Fprintf(&b, "undecodable unit report: %v\n", parseErr)
	}
	b.WriteString(e.diagnostic(stdoutTail, stderrTail))
	return b.String()
}

func (e *unitExecutor) diagnostic(stdoutTail, stderrTail *tailBuffer) string {
	var b bytes.Buffer
	if stdoutTail.TotalBytes() > 0 {
		if stdoutTail.Truncated() {
			b.WriteString("stdout (truncated):\n")
		} else {
			b.WriteString("stdout:\n")
		}
		b.Write(stdoutTail.Bytes())
	}
	if stderrTail.TotalBytes() > 0 {
		if stderrTail.Truncated() {
			b.WriteString("stderr (truncated):\n")
		} else {
			b.WriteString("stderr:\n")
		}
		b.Write(stderrTail.Bytes())
	}
	return b.String()
}
