// Package schedule partitions resolved test units between the coordinating
// process and the worker pool. Membership is decided by the explicit sets
// from the catalog manifest, never by runtime inspection of the units.
package schedule

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/suitectl/suitectl/types"
)

// Config contains assigner configuration. The affine set names units that
// must execute inside the coordinating process because they exercise shared
// non-reentrant resources; the memory-hungry set names units deferred to the
// end of the affine list when a memory ceiling is configured.
type Config struct {
	Log           *slog.Logger
	Affine        map[string]bool
	MemoryHungry  map[string]bool
	MemoryCeiling uint64 // bytes; 0 disables deferral
}

// Assignment is the ordered scheduling plan for one run. Affine units run
// first, sequentially, in the coordinator; Parallel units may be distributed
// across the worker pool.
type Assignment struct {
	Affine   []types.TestUnit
	Parallel []types.TestUnit
}

// Assigner implements the node-assignment policy.
type Assigner struct {
	config Config
}

// NewAssigner creates an assigner from explicit membership configuration.
func NewAssigner(cfg Config) *Assigner {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Affine == nil {
		cfg.Affine = map[string]bool{}
	}
	if cfg.MemoryHungry == nil {
		cfg.MemoryHungry = map[string]bool{}
	}
	return &Assigner{config: cfg}
}

// Assign partitions units into the affine and parallel-eligible lists.
//
// Ordering is stable: affine units keep their original relative order and
// are scheduled first; parallel-eligible units follow in original order.
// When a memory ceiling is configured, memory-hungry units are additionally
// deferred: they are moved into the coordinator's list and run last, so they
// never compete for memory with the remaining population. The ceiling is
// advisory scheduling policy only; no runtime memory guard is installed.
func (a *Assigner) Assign(units []types.TestUnit) Assignment {
	deferHungry := a.config.MemoryCeiling > 0
	if deferHungry {
		a.logMemoryPressure()
	}

	var assignment Assignment
	var deferred []types.TestUnit

	for _, unit := range units {
		switch {
		case deferHungry && a.config.MemoryHungry[unit.ID]:
			deferred = append(deferred, unit)
		case a.config.Affine[unit.ID]:
			assignment.Affine = append(assignment.Affine, unit)
		default:
			assignment.Parallel = append(assignment.Parallel, unit)
		}
	}
	assignment.Affine = append(assignment.Affine, deferred...)

	a.config.Log.Debug("Node assignment complete",
		"total", len(units),
		"affine", len(assignment.Affine),
		"parallel", len(assignment.Parallel),
		"deferred", len(deferred))
	return assignment
}

// logMemoryPressure compares the configured ceiling against the memory the
// host actually has available. Purely informational: the deferral ordering
// above is the only enforcement.
func (a *Assigner) logMemoryPressure() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		a.config.Log.Debug("Unable to read system memory", "error", err)
		return
	}
	if a.config.MemoryCeiling > vm.Available {
		a.config.Log.Warn("Memory ceiling exceeds available system memory, deferring memory-hungry units",
			"ceiling", a.config.MemoryCeiling,
			"available", vm.Available)
		return
	}
	a.config.Log.Debug("Memory ceiling configured",
		"ceiling", a.config.MemoryCeiling,
		"available", vm.Available)
}
