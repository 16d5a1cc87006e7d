package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srobo-infra/sim-harness/types"
)

func newExecutor(t *testing.T, workDir, interpreter string, opts ...func(*ExecutorConfig)) TestExecutor {
	t.Helper()
	cfg := ExecutorConfig{
		WorkDir:     workDir,
		Interpreter: interpreter,
		Timeout:     time.Minute,
		Stdout:      &bytes.Buffer{},
		Stderr:      &bytes.Buffer{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	e, err := NewTestExecutor(cfg)
	require.NoError(t, err)
	return e
}

func TestExecutorPass(t *testing.T) {
	root := makeRepoRoot(t)
	callsFile := filepath.Join(t.TempDir(), "calls")
	interp := writeFakeInterpreter(t, callsFile)

	e := newExecutor(t, root, interp)
	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusPass, result.Status)
	assert.NoError(t, result.Error)
	assert.False(t, result.TimedOut)
}

func TestExecutorTestFailure(t *testing.T) {
	root := makeRepoRoot(t)
	markRoot(t, root, "tests", "FAIL")
	callsFile := filepath.Join(t.TempDir(), "calls")
	interp := writeFakeInterpreter(t, callsFile)

	e := newExecutor(t, root, interp)
	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 1, result.ExitCode)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "tests failed")
}

func TestExecutorUnexpectedExitCode(t *testing.T) {
	root := makeRepoRoot(t)
	markRoot(t, root, "tests", "CRASH")
	callsFile := filepath.Join(t.TempDir(), "calls")
	interp := writeFakeInterpreter(t, callsFile)

	e := newExecutor(t, root, interp)
	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "exited with code 3")
}

func TestExecutorMissingInterpreterIsRuntimeError(t *testing.T) {
	root := makeRepoRoot(t)

	e := newExecutor(t, root, filepath.Join(t.TempDir(), "missing-python"))
	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestExecutorTimeout(t *testing.T) {
	root := makeRepoRoot(t)
	sleeper := filepath.Join(t.TempDir(), "sleeper")
	require.NoError(t, os.WriteFile(sleeper, []byte("#!/bin/sh\nsleep 5\n"), 0o755))

	e := newExecutor(t, root, sleeper, func(cfg *ExecutorConfig) {
		cfg.Timeout = 100 * time.Millisecond
	})

	start := time.Now()
	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecutorCapturesOutput(t *testing.T) {
	root := makeRepoRoot(t)
	chatty := filepath.Join(t.TempDir(), "chatty")
	require.NoError(t, os.WriteFile(chatty, []byte("#!/bin/sh\necho ran 1 test\nexit 0\n"), 0o755))

	var out bytes.Buffer
	e := newExecutor(t, root, chatty, func(cfg *ExecutorConfig) {
		cfg.Stdout = &out
	})

	result, err := e.Execute(context.Background(), types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  filepath.Join(root, "tests"),
	})
	require.NoError(t, err)

	// Output is both mirrored live and retained on the result.
	assert.Contains(t, out.String(), "ran 1 test")
	assert.Contains(t, result.Stdout, "ran 1 test")
}

func TestExecutorValidation(t *testing.T) {
	_, err := NewTestExecutor(ExecutorConfig{})
	require.Error(t, err)

	e := newExecutor(t, t.TempDir(), "python3")
	_, err = e.Execute(context.Background(), types.ControllerMetadata{})
	require.Error(t, err)
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)

	_, err := b.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(b.Bytes()))
	assert.False(t, b.Truncated())

	_, err = b.Write([]byte("efghij"))
	require.NoError(t, err)
	assert.Equal(t, "cdefghij", string(b.Bytes()))
	assert.True(t, b.Truncated())
	assert.Equal(t, int64(10), b.TotalBytes())
}

func TestBuildDiscoveryArgs(t *testing.T) {
	e := newExecutor(t, t.TempDir(), "python3", func(cfg *ExecutorConfig) {
		cfg.PassThroughArgs = []string{"-v"}
	}).(*testExecutor)

	args := e.buildDiscoveryArgs(types.ControllerMetadata{Dir: "/repo/tests"})
	assert.Equal(t, []string{"-m", "unittest", "discover", "--start-directory", "/repo/tests", "-v"}, args)
}

func TestBuildEnvPrependsSearchPaths(t *testing.T) {
	t.Setenv(PythonPathEnv, "/existing")
	e := newExecutor(t, t.TempDir(), "python3", func(cfg *ExecutorConfig) {
		cfg.SearchPaths = []string{"/repo/stubs", "/repo/modules"}
	}).(*testExecutor)

	env := e.buildEnv()
	want := fmt.Sprintf("%s=/repo/stubs%c/repo/modules%c/existing", PythonPathEnv, os.PathListSeparator, os.PathListSeparator)
	assert.Contains(t, env, want)
}

func TestBuildEnvAddsMissingPythonPath(t *testing.T) {
	os.Unsetenv(PythonPathEnv)
	e := newExecutor(t, t.TempDir(), "python3", func(cfg *ExecutorConfig) {
		cfg.SearchPaths = []string{"/repo/stubs"}
	}).(*testExecutor)

	env := e.buildEnv()
	assert.Contains(t, env, PythonPathEnv+"=/repo/stubs")
}
