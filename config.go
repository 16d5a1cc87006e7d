package harness

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/srobo-infra/sim-harness/flags"
)

// Config holds the test-run configuration
type Config struct {
	RootDir         string        // repository root holding tests/, controllers/, stubs/, modules/
	Interpreter     string        // interpreter driving unittest discovery
	PassThroughArgs []string      // forwarded verbatim to every discovery invocation
	RunInterval     time.Duration // interval between test runs
	RunOnce         bool          // exit after one test run
	Timeout         time.Duration // per-root discovery timeout
	LogDir          string        // directory for per-run log files
	Log             *zap.SugaredLogger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log *zap.SugaredLogger) (*Config, error) {
	rootDir := ctx.String(flags.RootDir.Name)
	if rootDir == "" {
		rootDir = "."
	}
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for root directory '%s': %w", rootDir, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		RootDir:         absRootDir,
		Interpreter:     ctx.String(flags.Interpreter.Name),
		PassThroughArgs: ctx.Args().Slice(),
		RunInterval:     runInterval,
		RunOnce:         runOnce,
		Timeout:         ctx.Duration(flags.TestTimeout.Name),
		LogDir:          logDir,
		Log:             log,
	}, nil
}
