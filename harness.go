// Package harness wires together discovery, execution, reporting and
// scheduling of the competition-simulator test runner.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/srobo-infra/sim-harness/exitcodes"
	"github.com/srobo-infra/sim-harness/logging"
	"github.com/srobo-infra/sim-harness/registry"
	"github.com/srobo-infra/sim-harness/runner"
	"github.com/srobo-infra/sim-harness/types"
)

// Service is the lifecycle interface the CLI drives.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stopped() bool
	WaitForShutdown(ctx context.Context) error
}

// harness runs controller tests, once or periodically.
type harness struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	scheduler TestScheduler
	formatter ResultFormatter
	reporter  MetricsReporter
	result    *runner.RunResult

	shutdownCallback func(error) // signals application shutdown in run-once mode
}

var _ Service = (*harness)(nil)

// New assembles the harness from config.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debugw("Creating harness with config",
		"rootDir", config.RootDir,
		"interpreter", config.Interpreter,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:     config.Log,
		RootDir: config.RootDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	h := &harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}
	if config.RunOnce {
		h.scheduler.RegisterCallback(h.runTests)
	} else {
		// In continuous mode a failing run is reported and the service
		// keeps going; only runtime errors stop it.
		h.scheduler.RegisterCallback(func() error {
			err := h.runTests()
			if IsTestFailureError(err) {
				config.Log.Warnw("Test run completed with failures", "error", err)
				return nil
			}
			return err
		})
	}

	config.Log.Infow("harness.New: created registry and scheduler")
	return h, nil
}

// Start runs the tests, then either exits (run-once) or keeps running
// them at the configured interval.
func (h *harness) Start(ctx context.Context) error {
	// Panics anywhere below are runtime errors, not test failures.
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Errorw("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.ctx = ctx

	if h.config.RunOnce {
		h.config.Log.Infow("Starting sim-harness in run-once mode")
	} else {
		h.config.Log.Infow("Starting sim-harness in continuous mode", "interval", h.config.RunInterval)
	}

	if err := h.scheduler.Start(ctx); err != nil {
		if IsTestFailureError(err) || IsRuntimeError(err) {
			return err
		}
		h.config.Log.Errorw("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if h.config.RunOnce {
		h.config.Log.Infow("Tests completed, exiting (run-once mode)")
		go func() {
			h.shutdownCallback(nil)
		}()
	}
	return nil
}

// runTests runs all tests and processes the results
func (h *harness) runTests() error {
	h.config.Log.Infow("Running all tests...")

	runID := uuid.New().String()
	fileLogger, err := logging.NewFileLogger(h.config.LogDir, runID)
	if err != nil {
		h.config.Log.Warnw("Failed to create file logger, continuing without file logs", "error", err)
		fileLogger = nil
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Registry:        h.registry,
		WorkDir:         h.config.RootDir,
		Log:             h.config.Log,
		Interpreter:     h.config.Interpreter,
		Timeout:         h.config.Timeout,
		PassThroughArgs: h.config.PassThroughArgs,
		FileLogger:      fileLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create test runner: %w", err)
	}

	result, err := testRunner.RunAllTests(h.ctx)
	if err != nil {
		// This is a runtime error (not a test failure)
		h.config.Log.Errorw("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	h.result = result

	if err := h.formatter.FormatResults(result); err != nil {
		h.config.Log.Warnw("Failed to render results table", "error", err)
	}
	fmt.Println(result.String())
	h.reporter.ReportResults(result)

	h.config.Log.Infow("Test run completed", "run_id", result.RunID, "status", result.Status)

	if result.Status == types.TestStatusFail {
		return NewTestFailureError(result.String())
	}
	return nil
}

// Result returns the most recent run result.
func (h *harness) Result() *runner.RunResult {
	return h.result
}

// Stop stops the harness service.
func (h *harness) Stop(ctx context.Context) error {
	h.config.Log.Infow("Stopping sim-harness")
	if err := h.scheduler.Stop(); err != nil {
		return err
	}
	h.config.Log.Infow("sim-harness stopped successfully")
	return nil
}

// Stopped returns true if the harness service is stopped.
func (h *harness) Stopped() bool {
	return h.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (h *harness) WaitForShutdown(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return h.scheduler.WaitForShutdown(waitCtx)
}
