package types

import "time"

// TestUnit pairs a test identifier with its resolved executable location.
// Units are created by the catalog at selection time and are immutable for
// the remainder of the run.
type TestUnit struct {
	// ID is the opaque, human-readable identifier the unit was requested
	// under (e.g. "strings/basic").
	ID string
	// Path is the resolved file executed by the runner binary.
	Path string
}

// RunConfig holds the immutable per-run settings shared by every unit.
type RunConfig struct {
	Units         []string      // requested identifiers, in request order
	AbortOnError  bool          // stop scheduling after the first errored outcome
	Timeout       time.Duration // per-unit deadline; 0 disables
	MemoryCeiling uint64        // advisory memory ceiling in bytes; 0 disables deferral
	Seed          uint64        // shared random seed, surfaced in the summary
}
