package harness

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/srobo-infra/sim-harness/runner"
	"github.com/srobo-infra/sim-harness/types"
)

func formatToBuffer(t *testing.T, result *runner.RunResult) string {
	t.Helper()
	var buf bytes.Buffer
	f := &ConsoleResultFormatter{logger: zap.NewNop().Sugar(), out: &buf}
	require.NoError(t, f.FormatResults(result))
	return buf.String()
}

func TestFormatResultsPass(t *testing.T) {
	out := formatToBuffer(t, &runner.RunResult{
		RunID:  "run-1",
		Status: types.TestStatusPass,
		Roots: []*types.TestResult{
			{
				Metadata: types.ControllerMetadata{ID: "tests", Kind: types.RootKindPrimary},
				Status:   types.TestStatusPass,
				Duration: 1500 * time.Millisecond,
			},
			{
				Metadata: types.ControllerMetadata{ID: "radio", Kind: types.RootKindController},
				Status:   types.TestStatusPass,
				Duration: 700 * time.Millisecond,
			},
		},
		Duration: 2200 * time.Millisecond,
		Stats:    runner.ResultStats{Total: 2, Passed: 2},
	})

	assert.Contains(t, out, "Controller Test Results")
	assert.Contains(t, out, "tests")
	assert.Contains(t, out, "radio")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "✓ pass")
	assert.Contains(t, out, "2/2 passed")
	assert.NotContains(t, out, "not attempted")
}

func TestFormatResultsFailFast(t *testing.T) {
	out := formatToBuffer(t, &runner.RunResult{
		RunID:  "run-2",
		Status: types.TestStatusFail,
		Roots: []*types.TestResult{
			{
				Metadata: types.ControllerMetadata{ID: "tests", Kind: types.RootKindPrimary},
				Status:   types.TestStatusPass,
			},
			{
				Metadata: types.ControllerMetadata{ID: "motors", Kind: types.RootKindController},
				Status:   types.TestStatusFail,
				Error:    errors.New("tests failed in motors"),
			},
		},
		Stats: runner.ResultStats{Total: 4, Passed: 1, Failed: 1, Skipped: 2},
	})

	assert.Contains(t, out, "✗ fail")
	assert.Contains(t, out, "2 root(s) not attempted (fail-fast)")
	assert.Contains(t, out, "1/4 passed")
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.TestStatusPass))
	assert.Equal(t, "- skip", getResultString(types.TestStatusSkip))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusFail))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusError))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.0s", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "90.0s", formatDuration(90*time.Second))
}

func TestExtractKeyErrorMessage(t *testing.T) {
	assert.Equal(t, "", extractKeyErrorMessage(nil))

	assert.Equal(t, "AssertionError: 2 != 3",
		extractKeyErrorMessage(errors.New("Traceback ...\nAssertionError: 2 != 3\nmore context")))

	assert.Equal(t, "FAILED (failures=2)",
		extractKeyErrorMessage(errors.New("Ran 10 tests\nFAILED (failures=2)")))

	assert.Equal(t, "first line",
		extractKeyErrorMessage(errors.New("first line\nsecond line")))

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	msg := extractKeyErrorMessage(errors.New(string(long)))
	assert.Len(t, msg, 73)
	assert.Contains(t, msg, "...")
}
