package runner

import "time"

// Test execution constants
const (
	// DefaultTestTimeout is the default timeout for one test root
	DefaultTestTimeout = 10 * time.Minute

	// Default interpreter binary name
	DefaultInterpreter = "python3"

	// Unittest discovery command arguments
	ModuleFlag      = "-m"
	UnittestModule  = "unittest"
	DiscoverCommand = "discover"
	StartDirFlag    = "--start-directory"

	// PythonPathEnv is the env var carrying the interpreter search path
	PythonPathEnv = "PYTHONPATH"
)
