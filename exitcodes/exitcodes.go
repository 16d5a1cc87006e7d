// Package exitcodes defines the standard exit codes used by sim-harness.
package exitcodes

// Exit code constants used by sim-harness
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every discovered test root passes
// * TestFailure (1): Used when a test root or log validation fails
// * RuntimeErr (2): Used for runtime errors such as missing binaries or bad paths
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test or validation failures
	RuntimeErr  = 2 // Runtime errors or timeouts
)
