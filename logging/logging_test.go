package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srobo-infra/sim-harness/types"
)

func TestNewLogger(t *testing.T) {
	for _, cfg := range []CLIConfig{
		DefaultCLIConfig(),
		{Level: "debug", Format: "console"},
		{Level: "warn", Format: "json"},
		{Level: "ERROR", Format: ""},
	} {
		log, err := NewLogger(cfg)
		require.NoError(t, err, "config %+v", cfg)
		require.NotNil(t, log)
	}
}

func TestNewLoggerInvalid(t *testing.T) {
	_, err := NewLogger(CLIConfig{Level: "chatty", Format: "console"})
	require.Error(t, err)

	_, err = NewLogger(CLIConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger("", "run-1")
	require.Error(t, err)

	_, err = NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
}

func TestFileLoggerWritesResults(t *testing.T) {
	baseDir := t.TempDir()
	fl, err := NewFileLogger(baseDir, "run-1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(baseDir, "run-1"), fl.RunDir())
	assert.Equal(t, "run-1", fl.RunID())

	require.NoError(t, fl.LogTestResult(&types.TestResult{
		Metadata: types.ControllerMetadata{ID: "radio", Kind: types.RootKindController},
		Status:   types.TestStatusPass,
		Duration: 2 * time.Second,
		Stdout:   "ran 3 tests",
	}))

	contents, err := os.ReadFile(filepath.Join(fl.RunDir(), "radio.log"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "root: radio")
	assert.Contains(t, string(contents), "status: pass")
	assert.Contains(t, string(contents), "ran 3 tests")

	assert.NoFileExists(t, filepath.Join(fl.RunDir(), "failed", "radio.log"))
}

func TestFileLoggerDuplicatesFailures(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "run-1")
	require.NoError(t, err)

	require.NoError(t, fl.LogTestResult(&types.TestResult{
		Metadata: types.ControllerMetadata{ID: "motors", Kind: types.RootKindController},
		Status:   types.TestStatusFail,
		Error:    errors.New("tests failed in motors"),
	}))

	for _, path := range []string{
		filepath.Join(fl.RunDir(), "motors.log"),
		filepath.Join(fl.RunDir(), "failed", "motors.log"),
	} {
		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(contents), "error: tests failed in motors")
	}
}

func TestFileLoggerSummaryAndLatest(t *testing.T) {
	baseDir := t.TempDir()

	fl, err := NewFileLogger(baseDir, "run-1")
	require.NoError(t, err)
	require.NoError(t, fl.LogSummary("1 passed, 0 failed\n"))
	require.NoError(t, fl.Complete())

	summary, err := os.ReadFile(filepath.Join(baseDir, "latest", "summary.log"))
	require.NoError(t, err)
	assert.Equal(t, "1 passed, 0 failed\n", string(summary))

	// A later run takes over the symlink.
	fl2, err := NewFileLogger(baseDir, "run-2")
	require.NoError(t, err)
	require.NoError(t, fl2.Complete())

	target, err := os.Readlink(filepath.Join(baseDir, "latest"))
	require.NoError(t, err)
	assert.Equal(t, "run-2", target)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d", safeFilename("a/b:c d"))
	assert.Equal(t, "plain", safeFilename("plain"))
}
