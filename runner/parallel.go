package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/suitectl/suitectl/types"
)

// UnitWork represents one unit of work handed to the worker pool.
type UnitWork struct {
	Unit types.TestUnit
}

// UnitWorkResult carries a completed execution back to the coordinator.
// Workers never touch the result tree; only the coordinator folds these in.
type UnitWorkResult struct {
	Work      UnitWork
	Execution Execution
}

// ParallelExecutor distributes worker-eligible units across a bounded pool
// of worker goroutines, each running its unit as an isolated subprocess.
type ParallelExecutor struct {
	executor     Executor
	concurrency  int
	abortOnError bool
	log          *slog.Logger
}

// NewParallelExecutor creates a pool executor with validation.
func NewParallelExecutor(executor Executor, concurrency int, abortOnError bool, log *slog.Logger) *ParallelExecutor {
	if executor == nil {
		panic("executor cannot be nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	if concurrency > 32 {
		log.Warn("Very high concurrency requested", "concurrency", concurrency,
			"recommendation", "Consider lower values to avoid resource exhaustion")
	}
	return &ParallelExecutor{
		executor:     executor,
		concurrency:  concurrency,
		abortOnError: abortOnError,
		log:          log,
	}
}

// ExecuteUnits runs the units with at most `concurrency` in flight and
// returns the executions keyed by identifier, plus whether the abort policy
// fired. When abort-on-error is enabled and any execution yields an errored
// outcome, no further units are started: units still sitting in the work
// buffer are dropped, while in-flight units run to completion and their
// results are kept. onResult, when non-nil, is invoked from the collection
// loop as each execution completes, so callers can report progress live.
func (pe *ParallelExecutor) ExecuteUnits(ctx context.Context, units []types.TestUnit, onResult func(Execution)) (map[string]Execution, bool) {
	executions := make(map[string]Execution, len(units))
	if len(units) == 0 {
		return executions, false
	}

	pe.log.Debug("Starting parallel unit execution",
		"totalUnits", len(units), "concurrency", pe.concurrency)

	bufferSize := min(pe.concurrency*2, len(units))
	workChan := make(chan UnitWork, bufferSize)
	resultChan := make(chan UnitWorkResult, bufferSize)
	stopScheduling := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < pe.concurrency; i++ {
		wg.Add(1)
		go pe.worker(ctx, &wg, workChan, resultChan, stopScheduling)
	}

	// Feed work until done, cancelled, or the abort policy closes the gate.
	go func() {
		defer close(workChan)
		for _, unit := range units {
			select {
			case workChan <- UnitWork{Unit: unit}:
			case <-stopScheduling:
				pe.log.Debug("Abort policy fired, no further units scheduled")
				return
			case <-ctx.Done():
				pe.log.Debug("Context cancelled while scheduling units")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	aborted := false
	for workResult := range resultChan {
		executions[workResult.Work.Unit.ID] = workResult.Execution
		if onResult != nil {
			onResult(workResult.Execution)
		}
		if pe.abortOnError && workResult.Execution.Outcome.Errored() && !aborted {
			aborted = true
			close(stopScheduling)
		}
	}

	pe.log.Debug("Parallel unit execution finished",
		"executed", len(executions), "aborted", aborted)
	return executions, aborted
}

// worker processes units from the work channel until it closes or the
// context is cancelled. A worker that dies mid-unit is reported as a process
// error by the executor itself; the slot keeps serving remaining units.
func (pe *ParallelExecutor) worker(ctx context.Context, wg *sync.WaitGroup, workChan <-chan UnitWork, resultChan chan<- UnitWorkResult, stopScheduling <-chan struct{}) {
	defer wg.Done()

	workerID := fmt.Sprintf("worker-%p", &workChan)
	pe.log.Debug("Worker starting", "workerID", workerID)
	defer pe.log.Debug("Worker exiting", "workerID", workerID)

	for {
		select {
		case work, ok := <-workChan:
			if !ok {
				return
			}

			// A unit may have been buffered before the abort gate closed;
			// never start work that was not yet running when it fired.
			select {
			case <-stopScheduling:
				pe.log.Debug("Dropping buffered unit after abort", "workerID", workerID, "unit", work.Unit.ID)
				continue
			default:
			}

			pe.log.Debug("Worker picked up unit", "workerID", workerID, "unit", work.Unit.ID)
			execution := pe.executor.Execute(ctx, work.Unit)

			select {
			case resultChan <- UnitWorkResult{Work: work, Execution: execution}:
			case <-ctx.Done():
				pe.log.Debug("Context cancelled while sending result", "workerID", workerID, "unit", work.Unit.ID)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
