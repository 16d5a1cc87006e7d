package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/srobo-infra/sim-harness/types"
)

var _ TestExecutor = (*testExecutor)(nil)

// TestExecutor handles the execution of a single test root as a
// subprocess running the interpreter's unittest discovery.
type TestExecutor interface {
	// Execute runs unittest discovery rooted at the metadata's directory.
	// The returned error is reserved for runtime problems (missing
	// interpreter, unusable working directory); test failures are
	// reported through the TestResult status.
	Execute(ctx context.Context, metadata types.ControllerMetadata) (*types.TestResult, error)
}

// testExecutor implements TestExecutor
type testExecutor struct {
	workDir         string
	interpreter     string
	timeout         time.Duration
	passThroughArgs []string
	searchPaths     []string
	stdout          io.Writer
	stderr          io.Writer
	cmdBuilder      func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())
	log             *zap.SugaredLogger
}

// ExecutorConfig configures a test executor.
type ExecutorConfig struct {
	WorkDir         string
	Interpreter     string
	Timeout         time.Duration
	PassThroughArgs []string
	SearchPaths     []string
	Stdout          io.Writer
	Stderr          io.Writer
	Log             *zap.SugaredLogger

	// CmdBuilder is overridable for tests.
	CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(cfg ExecutorConfig) (TestExecutor, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("workDir cannot be empty")
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTestTimeout
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = defaultCmdBuilder
	}

	return &testExecutor{
		workDir:         cfg.WorkDir,
		interpreter:     cfg.Interpreter,
		timeout:         cfg.Timeout,
		passThroughArgs: cfg.PassThroughArgs,
		searchPaths:     cfg.SearchPaths,
		stdout:          cfg.Stdout,
		stderr:          cfg.Stderr,
		cmdBuilder:      cfg.CmdBuilder,
		log:             cfg.Log,
	}, nil
}

func defaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, name, arg...)
	return cmd, cancel
}

// Execute runs unittest discovery for one root
func (e *testExecutor) Execute(ctx context.Context, metadata types.ControllerMetadata) (*types.TestResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if metadata.Dir == "" {
		return nil, fmt.Errorf("directory cannot be empty in metadata")
	}

	e.log.Infow("Running test discovery", "root", metadata.GetName(), "dir", metadata.Dir)

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := e.buildDiscoveryArgs(metadata)
	cmd, cleanup := e.cmdBuilder(runCtx, e.interpreter, args...)
	defer cleanup()

	tail := newTailBuffer(defaultStdoutTailBytes)
	cmd.Dir = e.workDir
	cmd.Stdout = io.MultiWriter(e.stdout, tail)
	cmd.Stderr = io.MultiWriter(e.stderr, tail)
	cmd.Env = e.buildEnv()

	startTime := time.Now()
	runErr := cmd.Run()
	duration := time.Since(startTime)

	result := &types.TestResult{
		Metadata: metadata,
		Status:   types.TestStatusPass,
		Duration: duration,
	}
	if snippet := buildOutputSnippet(tail); snippet != "" {
		result.Stdout = snippet
	}

	if runErr == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Status = types.TestStatusFail
		result.TimedOut = true
		result.Error = fmt.Errorf("test discovery timed out after %v in %s", e.timeout, metadata.GetName())
		return result, nil
	}

	exitErr := &exec.ExitError{}
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Status = types.TestStatusFail
		if exitErr.ExitCode() == 1 {
			// unittest reports assertion failures with exit code 1
			result.Error = fmt.Errorf("tests failed in %s", metadata.GetName())
		} else {
			result.Error = fmt.Errorf("test discovery exited with code %d in %s", exitErr.ExitCode(), metadata.GetName())
		}
		return result, nil
	}

	// Anything else (interpreter missing, fork failure) is a runtime
	// error, not a test failure.
	return nil, fmt.Errorf("failed to run test discovery in %s: %w", metadata.GetName(), runErr)
}

// buildDiscoveryArgs assembles the unittest discovery invocation,
// forwarding any caller-supplied arguments verbatim.
func (e *testExecutor) buildDiscoveryArgs(metadata types.ControllerMetadata) []string {
	args := []string{ModuleFlag, UnittestModule, DiscoverCommand, StartDirFlag, metadata.Dir}
	args = append(args, e.passThroughArgs...)
	return args
}

// buildEnv extends the parent environment so that every test root can
// import the shared stubs and modules.
func (e *testExecutor) buildEnv() []string {
	env := os.Environ()
	if len(e.searchPaths) == 0 {
		return env
	}

	prefix := strings.Join(e.searchPaths, string(os.PathListSeparator))
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if name, value, ok := strings.Cut(kv, "="); ok && name == PythonPathEnv {
			found = true
			if value != "" {
				value = prefix + string(os.PathListSeparator) + value
			} else {
				value = prefix
			}
			out = append(out, name+"="+value)
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, PythonPathEnv+"="+prefix)
	}
	return out
}

func buildOutputSnippet(tail *tailBuffer) string {
	data := tail.Bytes()
	if len(data) == 0 {
		return ""
	}
	snippet := string(data)
	if tail.Truncated() {
		snippet = "[output truncated]\n" + snippet
	}
	return snippet
}
