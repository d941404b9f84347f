package runner

const (
	// DefaultRunnerBinary executes one unit file when no binary is configured.
	DefaultRunnerBinary = "run-unit"

	// SeedEnvVar carries the shared random seed to every unit so randomized
	// behavior is reproducible across runs.
	SeedEnvVar = "SUITECTL_SEED"

	// TimeoutEnvVar tells the unit its own deadline in seconds, so it can
	// wind down before the coordinator kills it.
	TimeoutEnvVar = "SUITECTL_TIMEOUT"
)

// defaultDiagnosticTailBytes bounds the raw output retained for a process
// error diagnostic.
const defaultDiagnosticTailBytes = 64 * 1024
