// Package exitcodes defines the standard exit codes used by suitectl.
package exitcodes

// Exit code constants used by suitectl
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when no assertion failed, no unit errored and none
//   were interrupted
// * TestFailure (1): Used when assertions failed or units errored or were
//   interrupted
// * RuntimeErr (2): Used for runtime errors such as panics, catalog errors
//   or other pre-run failures
const (
	Success     = 0 // Run completed error-free
	TestFailure = 1 // Assertion failures or errored/interrupted units
	RuntimeErr  = 2 // Runtime errors, catalog errors
)
