// Package runner executes unittest discovery across the discovered test
// roots, strictly sequentially and fail-fast: the first failing root
// aborts the run and nothing scheduled after it executes.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srobo-infra/sim-harness/logging"
	"github.com/srobo-infra/sim-harness/metrics"
	"github.com/srobo-infra/sim-harness/registry"
	"github.com/srobo-infra/sim-harness/types"
)

const tracerName = "sim-harness/runner"

// RunResult captures the outcome of one full harness run.
type RunResult struct {
	RunID    string
	Roots    []*types.TestResult // in execution order
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats
}

// ResultStats tracks pass/fail counts across a run.
type ResultStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int // roots never attempted because of an earlier failure
}

// TestRunner runs the whole set of discovered test roots.
type TestRunner interface {
	RunAllTests(ctx context.Context) (*RunResult, error)
}

// Config configures a test runner.
type Config struct {
	Registry        *registry.Registry
	WorkDir         string
	Log             *zap.SugaredLogger
	Interpreter     string
	Timeout         time.Duration
	PassThroughArgs []string
	FileLogger      *logging.FileLogger // optional; per-run log files when set
	Stdout          io.Writer           // defaults to os.Stdout
}

type runner struct {
	config   Config
	registry *registry.Registry
	log      *zap.SugaredLogger
	stdout   io.Writer
}

var _ TestRunner = (*runner)(nil)

// NewTestRunner creates a new test runner
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Interpreter == "" {
		if fc := cfg.Registry.GetHarnessConfig(); fc.Interpreter != "" {
			cfg.Interpreter = fc.Interpreter
		} else {
			cfg.Interpreter = DefaultInterpreter
		}
	}

	return &runner{
		config:   cfg,
		registry: cfg.Registry,
		log:      cfg.Log,
		stdout:   cfg.Stdout,
	}, nil
}

// RunAllTests executes discovery for every root in order, aborting at
// the first failure.
func (r *runner) RunAllTests(ctx context.Context) (*RunResult, error) {
	runID := uuid.New().String()
	r.log.Infow("Starting test run", "run_id", runID)

	// Re-scan so controllers added since the last run are included.
	if err := r.registry.Reload(); err != nil {
		return nil, fmt.Errorf("failed to refresh test roots: %w", err)
	}

	roots := r.registry.GetRoots()
	executor, err := NewTestExecutor(ExecutorConfig{
		WorkDir:         r.config.WorkDir,
		Interpreter:     r.config.Interpreter,
		Timeout:         r.config.Timeout,
		PassThroughArgs: r.config.PassThroughArgs,
		SearchPaths:     r.registry.GetSearchPaths(),
		Stdout:          r.stdout,
		Log:             r.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test executor: %w", err)
	}

	result := &RunResult{
		RunID:  runID,
		Status: types.TestStatusPass,
	}
	result.Stats.Total = len(roots)

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	tracer := otel.Tracer(tracerName)

	for i, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("test run canceled: %w", err)
		}

		r.printHeader(root)

		rootCtx, span := tracer.Start(ctx, "test-root", trace.WithAttributes(
			attribute.String("root.name", root.GetName()),
			attribute.String("root.kind", string(root.Kind)),
		))

		testResult, err := executor.Execute(rootCtx, root)
		span.End()
		if err != nil {
			// Runtime error: propagate instead of recording a failure.
			result.Status = types.TestStatusError
			result.Stats.Skipped = len(roots) - i
			return nil, err
		}

		result.Roots = append(result.Roots, testResult)
		r.recordResult(runID, testResult)

		if testResult.Status == types.TestStatusPass {
			result.Stats.Passed++
			continue
		}

		// Fail fast: roots after this one are never attempted.
		result.Stats.Failed++
		result.Stats.Skipped = len(roots) - i - 1
		result.Status = types.TestStatusFail
		r.log.Errorw("Test root failed, aborting run",
			"run_id", runID,
			"root", testResult.Metadata.GetName(),
			"remaining", result.Stats.Skipped)
		break
	}

	result.Duration = time.Since(start)
	r.finishRun(result)
	return result, nil
}

// printHeader identifies which directory is being tested. The primary
// root intentionally runs without a header.
func (r *runner) printHeader(root types.ControllerMetadata) {
	if root.IsPrimary() {
		return
	}
	fmt.Fprintf(r.stdout, "\n#### Testing %s ####\n", root.GetName())
}

func (r *runner) recordResult(runID string, result *types.TestResult) {
	metrics.RecordTestRoot(runID, result.Metadata.GetName(), string(result.Metadata.Kind), string(result.Status))

	if r.config.FileLogger == nil {
		return
	}
	if err := r.config.FileLogger.LogTestResult(result); err != nil {
		r.log.Warnw("Failed to write test log", "root", result.Metadata.GetName(), "error", err)
	}
}

func (r *runner) finishRun(result *RunResult) {
	if r.config.FileLogger == nil {
		return
	}
	if err := r.config.FileLogger.LogSummary(result.String()); err != nil {
		r.log.Warnw("Failed to write run summary", "error", err)
	}
	if err := r.config.FileLogger.Complete(); err != nil {
		r.log.Warnw("Failed to finalize run logs", "error", err)
	}
}

// String renders a human-readable summary of the run.
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Test run %s: %s\n", r.RunID, r.Status)
	fmt.Fprintf(&b, "Duration: %.1fs\n", r.Duration.Seconds())
	fmt.Fprintf(&b, "Roots: %d total, %d passed, %d failed, %d not attempted\n",
		r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped)
	for _, root := range r.Roots {
		marker := "✓"
		if root.Status != types.TestStatusPass {
			marker = "✗"
		}
		fmt.Fprintf(&b, "  %s %s (%.1fs)\n", marker, root.Metadata.GetName(), root.Duration.Seconds())
	}
	return b.String()
}
