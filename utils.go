package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/srobo-infra/sim-harness/types"
)

// getResultString returns a colored string representing the test result
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// extractKeyErrorMessage extracts the most pertinent part of the error
// message for display in the results table.
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Unittest failure traces put the useful line after these prefixes.
	for _, pattern := range []string{"AssertionError:", "FAILED (", "Error:", "error:"} {
		if idx := strings.Index(errStr, pattern); idx != -1 {
			end := len(errStr)
			if newLine := strings.Index(errStr[idx:], "\n"); newLine != -1 {
				end = idx + newLine
			}
			return errStr[idx:end]
		}
	}

	// Otherwise limit to the first line or 80 chars
	if idx := strings.Index(errStr, "\n"); idx != -1 {
		return errStr[:idx]
	} else if len(errStr) > 80 {
		return errStr[:70] + "..."
	}

	return errStr
}
