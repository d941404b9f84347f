package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/suitectl/suitectl/catalog"
	"github.com/suitectl/suitectl/logging"
	"github.com/suitectl/suitectl/metrics"
	"github.com/suitectl/suitectl/results"
	"github.com/suitectl/suitectl/schedule"
	"github.com/suitectl/suitectl/types"
)

// Orchestrator owns the lifecycle of one run: catalog resolution, node
// assignment, execution, tree aggregation, and the final success predicate.
// No component outlives a run.
type Orchestrator struct {
	catalog    *catalog.Catalog
	assigner   *schedule.Assigner
	executor   Executor
	runCfg     types.RunConfig
	serial     bool
	pool       int
	log        *slog.Logger
	fileLogger *logging.FileLogger
	tracer     trace.Tracer

	runID string
}

// Config holds configuration for creating an orchestrator.
type Config struct {
	Catalog      *catalog.Catalog
	Assigner     *schedule.Assigner
	RunConfig    types.RunConfig
	RunnerBinary string
	WorkDir      string
	// Concurrency sizes the worker pool for parallel-eligible units. Values
	// below 2 keep the default single-coordinator scheduling model.
	Concurrency int
	Serial      bool // force everything through the coordinator
	Log         *slog.Logger
	FileLogger  *logging.FileLogger
}

// RunResult captures the complete results of one orchestration run.
type RunResult struct {
	RunID       string
	Seed        uint64
	Tree        *results.Node
	Stats       results.Stats
	Duration    time.Duration // wall clock, as opposed to the tree's synthetic rollup
	ErrorFree   bool
	Aborted     bool
	Executions  []Execution // executed units, in request order
	Interrupted []string    // identifiers never scheduled due to abort
}

// NewOrchestrator creates an orchestrator instance.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Assigner == nil {
		return nil, fmt.Errorf("assigner is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
		cfg.Log.Error("No logger provided, using default")
	}

	executor, err := NewExecutor(ExecutorConfig{
		RunnerBinary: cfg.RunnerBinary,
		Timeout:      cfg.RunConfig.Timeout,
		Seed:         cfg.RunConfig.Seed,
		WorkDir:      cfg.WorkDir,
		Log:          cfg.Log,
		FileLogger:   cfg.FileLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	pool := cfg.Concurrency
	if cfg.Serial || pool < 1 {
		pool = 1
	}

	return &Orchestrator{
		catalog:    cfg.Catalog,
		assigner:   cfg.Assigner,
		executor:   executor,
		runCfg:     cfg.RunConfig,
		serial:     cfg.Serial,
		pool:       pool,
		log:        cfg.Log,
		fileLogger: cfg.FileLogger,
		tracer:     otel.Tracer("suite orchestrator"),
	}, nil
}

// Run drives the full pipeline. The only error it returns is a pre-run
// CatalogError (or a cancelled context); once execution starts, every unit
// failure is absorbed into the result tree.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if o.fileLogger != nil {
		o.runID = o.fileLogger.RunID()
	} else {
		o.runID = uuid.New().String()
	}
	defer func() { o.runID = "" }()

	ctx, span := o.tracer.Start(ctx, "suite run")
	defer span.End()

	start := time.Now()
	o.log.Info("Starting test run", "run_id", o.runID, "seed", o.runCfg.Seed,
		"abortOnError", o.runCfg.AbortOnError, "timeout", o.runCfg.Timeout)

	// Catalog resolution is fatal on any miss; nothing executes.
	units, err := o.catalog.Resolve(o.runCfg.Units)
	if err != nil {
		return nil, err
	}
	requested := make([]string, len(units))
	for i, u := range units {
		requested[i] = u.ID
	}

	assignment := o.assigner.Assign(units)

	executions := make(map[string]Execution, len(units))
	aborted := false

	// Affine units always run sequentially inside the coordinating context.
	o.runSequential(ctx, assignment.Affine, executions, &aborted)

	// Remaining units go to the worker pool, unless the run already aborted
	// or the configuration pins everything to the coordinator.
	if !aborted {
		if o.pool > 1 {
			pe := NewParallelExecutor(o.executor, o.pool, o.runCfg.AbortOnError, o.log)
			// Per-unit console lines and metrics are emitted as completions
			// arrive, not after the pool drains.
			parallelExecutions, parallelAborted := pe.ExecuteUnits(ctx, assignment.Parallel, o.reportUnit)
			for id, execution := range parallelExecutions {
				executions[id] = execution
			}
			aborted = aborted || parallelAborted
		} else {
			o.runSequential(ctx, assignment.Parallel, executions, &aborted)
		}
	}

	result := o.assemble(requested, executions, aborted, start)
	metrics.RecordRun(o.runID, result.ErrorFree, result.Stats.Passed, result.Stats.Failed,
		result.Stats.Broken, result.Stats.Errored, result.Stats.Interrupted, result.Duration)
	o.log.Info("Test run completed", "run_id", result.RunID,
		"errorFree", result.ErrorFree, "duration", result.Duration)
	return result, nil
}

// runSequential executes units one at a time in the coordinator, honoring
// the abort-on-error policy between units.
func (o *Orchestrator) runSequential(ctx context.Context, units []types.TestUnit, executions map[string]Execution, aborted *bool) {
	for _, unit := range units {
		if *aborted {
			return
		}

		unitCtx, span := o.tracer.Start(ctx, fmt.Sprintf("unit %s", unit.ID))
		execution := o.executor.Execute(unitCtx, unit)
		span.End()

		executions[unit.ID] = execution
		o.reportUnit(execution)

		if o.runCfg.AbortOnError && execution.Outcome.Errored() {
			o.log.Warn("Abort-on-error policy fired, remaining units will be marked interrupted",
				"unit", unit.ID)
			*aborted = true
		}
	}
}

// reportUnit emits the live per-unit console line and metrics.
func (o *Orchestrator) reportUnit(execution Execution) {
	o.log.Info("Unit finished",
		"unit", execution.Unit.ID,
		"status", execution.Outcome.Kind,
		"duration", execution.Duration)
	metrics.RecordUnit(o.runID, execution.Unit.ID, execution.Outcome.Kind, execution.Duration)
}

// assemble folds the executions into the request-ordered result tree and
// derives the run-level summary. Completion order of parallel workers is not
// observable here: top-level entries follow the original request order, and
// every requested identifier that never ran is marked interrupted.
func (o *Orchestrator) assemble(requested []string, executions map[string]Execution, aborted bool, start time.Time) *RunResult {
	tree := results.NewRoot("run", start)

	result := &RunResult{
		RunID:   o.runID,
		Seed:    o.runCfg.Seed,
		Tree:    tree,
		Aborted: aborted,
	}

	for _, id := range requested {
		execution, ok := executions[id]
		if !ok {
			result.Interrupted = append(result.Interrupted, id)
			continue
		}
		result.Executions = append(result.Executions, execution)

		// Units that reported their own nested breakdown keep it verbatim;
		// everything else becomes a synthetic single-leaf testset.
		if execution.Report != nil && !execution.Outcome.Errored() {
			tree.Record(id, Subtree(execution.Report), execution.Outcome, execution.Duration)
		} else {
			tree.Record(id, nil, execution.Outcome, execution.Duration)
		}
	}
	tree.MarkUnscheduled(requested)

	result.Stats = tree.Stats()
	result.ErrorFree = tree.ErrorFree()
	result.Duration = time.Since(start)
	return result
}

// ProcessErrors returns the executions that ended in a process error, in
// request order. Their identifiers and raw diagnostics must always surface
// in the console summary.
func (r *RunResult) ProcessErrors() []Execution {
	var out []Execution
	for _, execution := range r.Executions {
		o := execution.Outcome
		if o.Kind == types.OutcomeErrored && o.Class == types.ErrorClassProcess {
			out = append(out, execution)
		}
	}
	return out
}

// String returns a formatted representation of the run results, including
// the seed needed to reproduce remote errors and the tally distinguishing
// recovered errors from units that never ran.
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test Run Results (%s):\n", formatDuration(r.Duration))
	fmt.Fprintf(&b, "Seed: %d\n", r.Seed)
	fmt.Fprintf(&b, "Assertions: %d passed, %d failed, %d broken\n",
		r.Stats.Passed, r.Stats.Failed, r.Stats.Broken)
	fmt.Fprintf(&b, "Units errored (recovered by the harness): %d\n", r.Stats.Errored)
	fmt.Fprintf(&b, "Units interrupted (never run): %d\n", r.Stats.Interrupted)

	for _, execution := range r.Executions {
		fmt.Fprintf(&b, "├── %s (%s) [status=%s]\n",
			execution.Unit.ID, formatDuration(execution.Duration), execution.Outcome.Kind)
		for _, f := range execution.Outcome.Failures {
			fmt.Fprintf(&b, "│       └── Failure: %s", f.Message)
			if f.Location != "" {
				fmt.Fprintf(&b, " (%s)", f.Location)
			}
			b.WriteString("\n")
		}
	}
	for _, id := range r.Interrupted {
		fmt.Fprintf(&b, "├── %s [status=%s]\n", id, types.OutcomeInterrupted)
	}

	processErrors := r.ProcessErrors()
	if len(processErrors) > 0 {
		b.WriteString("\nProcess errors:\n")
		for _, execution := range processErrors {
			marker := ""
			if execution.Outcome.Timeout {
				marker = " (timeout)"
			}
			fmt.Fprintf(&b, "└── %s%s:\n%s\n", execution.Unit.ID, marker,
				indent(strings.TrimRight(execution.Outcome.Diagnostic, "\n"), "        "))
		}
	}
	return b.String()
}

// formatDuration formats the duration to seconds with 1 decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
