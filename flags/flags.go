package flags

import (
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "SIM_HARNESS"

// prefixEnvVars adds the application prefix to an env var name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	RootDir = &cli.StringFlag{
		Name:    "root",
		Value:   "",
		EnvVars: prefixEnvVars("ROOT"),
		Usage:   "Path to the repository root containing tests/, controllers/, stubs/ and modules/ (defaults to the current directory)",
	}
	// Interpreter deliberately defaults to empty so an interpreter set in
	// the repository's harness.yaml can take effect; the runner falls
	// back to python3 when neither source sets one.
	Interpreter = &cli.StringFlag{
		Name:    "interpreter",
		Value:   "",
		EnvVars: prefixEnvVars("INTERPRETER"),
		Usage:   "Interpreter used to run unittest discovery in each test root (default: python3, or the harness.yaml setting)",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   DefaultTestTimeout,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Timeout for a single test root's discovery run",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store per-run test logs",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output (debug, info, warn, error)",
	}
	LogFormat = &cli.StringFlag{
		Name:    "log.format",
		Value:   "console",
		EnvVars: prefixEnvVars("LOG_FORMAT"),
		Usage:   "Format the log output. Supported formats: 'console', 'json'",
	}

	MatchDuration = &cli.DurationFlag{
		Name:    "duration",
		Value:   DefaultMatchDuration,
		EnvVars: prefixEnvVars("MATCH_DURATION"),
		Usage:   "The duration of the match",
	}
	WebotsBinary = &cli.StringFlag{
		Name:    "webots-binary",
		Value:   "webots",
		EnvVars: prefixEnvVars("WEBOTS_BINARY"),
		Usage:   "Path to the Webots binary used to run matches",
	}
	NoRecordings = &cli.BoolFlag{
		Name:    "no-recordings",
		Value:   false,
		EnvVars: prefixEnvVars("NO_RECORDINGS"),
		Usage:   "Skip archiving match recordings",
	}

	Project = &cli.StringFlag{
		Name:    "project",
		Value:   "",
		EnvVars: prefixEnvVars("PROJECT"),
		Usage:   "Project name used in the release archive filename (defaults to the source directory name)",
	}
	OutDir = &cli.StringFlag{
		Name:    "out",
		Value:   ".",
		EnvVars: prefixEnvVars("OUT"),
		Usage:   "Directory the release archive is written to",
	}

	Marker = &cli.StringFlag{
		Name:    "marker",
		Value:   DefaultSuccessMarker,
		EnvVars: prefixEnvVars("MARKER"),
		Usage:   "Success marker expected as the last line of a supervisor log (overrides any harness.yaml success_marker)",
	}
	Follow = &cli.BoolFlag{
		Name:    "follow",
		Value:   false,
		EnvVars: prefixEnvVars("FOLLOW"),
		Usage:   "Keep watching the log file until the success marker appears",
	}
	FollowTimeout = &cli.DurationFlag{
		Name:    "follow-timeout",
		Value:   DefaultFollowTimeout,
		EnvVars: prefixEnvVars("FOLLOW_TIMEOUT"),
		Usage:   "Give up following the log after this long without the marker",
	}
)

// Defaults shared between flags and packages that can be used without a CLI.
const (
	DefaultTestTimeout   = 10 * time.Minute
	DefaultMatchDuration = 150 * time.Second
	DefaultFollowTimeout = 5 * time.Minute
	DefaultSuccessMarker = "Match complete"
)

// GlobalFlags apply to every subcommand.
var GlobalFlags = []cli.Flag{
	LogLevel,
	LogFormat,
}

// TestFlags configure the `test` subcommand.
var TestFlags = []cli.Flag{
	RootDir,
	Interpreter,
	RunInterval,
	TestTimeout,
	LogDir,
}

// MatchFlags configure the `match` subcommand.
var MatchFlags = []cli.Flag{
	RootDir,
	WebotsBinary,
	MatchDuration,
	NoRecordings,
}

// ArchiveFlags configure the `archive` subcommand.
var ArchiveFlags = []cli.Flag{
	Project,
	OutDir,
}

// CheckLogFlags configure the `check-log` subcommand.
var CheckLogFlags = []cli.Flag{
	RootDir,
	Marker,
	Follow,
	FollowTimeout,
}
