// Package suitectl wires the test catalog, node assigner, orchestrator and
// report writer into a long-lived service with a run-once default.
package suitectl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/suitectl/suitectl/catalog"
	"github.com/suitectl/suitectl/exitcodes"
	"github.com/suitectl/suitectl/logging"
	"github.com/suitectl/suitectl/reporting"
	"github.com/suitectl/suitectl/runner"
	"github.com/suitectl/suitectl/schedule"
	"github.com/suitectl/suitectl/types"
)

// Service drives orchestration runs: once by default, periodically when a
// run interval is configured.
type Service struct {
	ctx      context.Context
	config   *Config
	version  string
	catalog  *catalog.Catalog
	assigner *schedule.Assigner
	result   *runner.RunResult

	scheduler RunScheduler
	running   atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the service from configuration: manifest loading and validation
// happen here, so an unusable manifest fails before any unit runs.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating suitectl with config",
		"manifest", config.ManifestFile,
		"testDir", config.TestDir,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"abortOnError", config.AbortOnError)

	cat, err := catalog.New(catalog.Config{
		Log:          config.Log,
		ManifestFile: config.ManifestFile,
		TestDir:      config.TestDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	assigner := schedule.NewAssigner(schedule.Config{
		Log:           config.Log,
		Affine:        cat.AffineSet(),
		MemoryHungry:  cat.MemoryHungrySet(),
		MemoryCeiling: config.MemoryCeiling,
	})

	config.Log.Info("suitectl.New: created catalog and assigner",
		"units", len(cat.UnitIDs()))

	return &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		catalog:          cat,
		assigner:         assigner,
		scheduler:        NewIntervalScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the test units, once or periodically per the configured interval.
func (s *Service) Start(ctx context.Context) error {
	// Panics anywhere in the run must surface as exit code 2.
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	s.ctx = ctx
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting suitectl in run-once mode")
	} else {
		s.config.Log.Info("Starting suitectl in continuous mode", "interval", s.config.RunInterval)
	}

	s.scheduler.RegisterCallback(s.runTests)
	if err := s.scheduler.Start(ctx); err != nil {
		if IsTestFailureError(err) {
			return err
		}
		s.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if s.config.RunOnce {
		s.config.Log.Info("Tests completed, exiting (run-once mode)")

		if s.result != nil && !s.result.ErrorFree {
			s.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(s.result.String())
		}

		// Only needed in run-once mode when the run was error-free.
		go func() {
			s.shutdownCallback(nil)
		}()
	}
	return nil
}

// runTests performs one full orchestration run and processes the results.
func (s *Service) runTests() error {
	s.config.Log.Info("Running test units...")

	runID := uuid.New().String()
	fileLogger, err := logging.NewFileLogger(s.config.LogDir, runID)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}

	orchestrator, err := runner.NewOrchestrator(runner.Config{
		Catalog:  s.catalog,
		Assigner: s.assigner,
		RunConfig: types.RunConfig{
			Units:         s.config.Units,
			AbortOnError:  s.config.AbortOnError,
			Timeout:       s.config.Timeout,
			MemoryCeiling: s.config.MemoryCeiling,
			Seed:          s.config.Seed,
		},
		RunnerBinary: s.config.RunnerBinary,
		WorkDir:      s.config.TestDir,
		Concurrency:  s.config.Concurrency,
		Serial:       s.config.Serial,
		Log:          s.config.Log,
		FileLogger:   fileLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result, err := orchestrator.Run(s.ctx)
	if err != nil {
		// Catalog misses and cancellation are pre-run errors, not unit results.
		s.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}
	s.result = result

	s.printResultsTable(result)
	fmt.Println(result.String())
	s.printBanner(result)

	if err := fileLogger.WriteSummary(result.String()); err != nil {
		s.config.Log.Error("Failed to store run summary", "error", err)
	}
	if err := fileLogger.Complete(); err != nil {
		s.config.Log.Error("Failed to finalize log files", "error", err)
	}

	if s.config.StructuredOutput {
		writer := reporting.NewWriter(
			reporting.NewJSONSink(s.config.ReportDir),
			reporting.NewTextSummarySink(s.config.ReportDir),
		)
		summary := &reporting.RunSummary{
			RunID: result.RunID,
			Seed:  result.Seed,
			Tree:  result.Tree,
		}
		if err := writer.Flush(s.ctx, summary); err != nil {
			s.config.Log.Error("Failed to write structured report", "error", err)
		}
	}

	s.config.Log.Info("Test run completed", "run_id", result.RunID, "errorFree", result.ErrorFree)
	return nil
}

// Stop stops the suitectl service.
func (s *Service) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping suitectl")

	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	s.running.Store(false)

	if err := s.scheduler.Stop(); err != nil {
		return err
	}

	s.config.Log.Info("suitectl stopped successfully")
	return nil
}

// Stopped returns true if the suitectl service is stopped.
func (s *Service) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	return s.scheduler.WaitForShutdown(ctx)
}

// Result returns the result of the most recent run, or nil before any run.
func (s *Service) Result() *runner.RunResult {
	return s.result
}

// printResultsTable prints the per-unit results to the console.
func (s *Service) printResultsTable(result *runner.RunResult) {
	s.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Run Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Passed", "Failed", "Broken", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Broken", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	executions := make(map[string]runner.Execution, len(result.Executions))
	for _, execution := range result.Executions {
		executions[execution.Unit.ID] = execution
	}

	for _, unitNode := range result.Tree.Children {
		stats := unitNode.Stats()
		errMsg := ""
		if execution, ok := executions[unitNode.Name]; ok && execution.Outcome.Errored() {
			errMsg = firstLine(execution.Outcome.Diagnostic)
		}

		t.AppendRow(table.Row{
			"Unit",
			unitNode.Name,
			formatDuration(unitNode.Duration()),
			stats.Passed,
			stats.Failed,
			stats.Broken,
			getResultString(nodeKind(unitNode)),
			errMsg,
		})

		// Nested testsets reported by the unit itself, when it has more than
		// the synthetic single leaf.
		if len(unitNode.Children) > 1 || (len(unitNode.Children) == 1 && unitNode.Children[0].Name != unitNode.Name) {
			for i, child := range unitNode.Children {
				prefix := "├──"
				if i == len(unitNode.Children)-1 {
					prefix = "└──"
				}
				childStats := child.Stats()
				t.AppendRow(table.Row{
					"",
					fmt.Sprintf("%s %s", prefix, child.Name),
					formatDuration(child.Duration()),
					childStats.Passed,
					childStats.Failed,
					childStats.Broken,
					getResultString(nodeKind(child)),
					"",
				})
			}
		}
	}

	if result.ErrorFree {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	totalStatus := types.OutcomeFailed
	if result.ErrorFree {
		totalStatus = types.OutcomePassed
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Broken,
		getResultString(totalStatus),
		"",
	})

	t.Render()
}

// printBanner prints the final SUCCESS/FAILURE banner with the seed needed to
// reproduce the run.
func (s *Service) printBanner(result *runner.RunResult) {
	if result.ErrorFree {
		fmt.Printf("SUCCESS (seed %d)\n", result.Seed)
	} else {
		fmt.Printf("FAILURE (seed %d)\n", result.Seed)
	}
}
