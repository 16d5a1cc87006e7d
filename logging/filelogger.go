package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srobo-infra/sim-harness/types"
)

const (
	// LatestDirName is the name of the symlink pointing at the most recent run
	LatestDirName = "latest"

	summaryFileName = "summary.log"
	failedDirName   = "failed"
)

// FileLogger persists the output of each test root under a per-run
// directory:
//
//	<baseDir>/<runID>/<root>.log
//	<baseDir>/<runID>/failed/<root>.log   (duplicated for failing roots)
//	<baseDir>/<runID>/summary.log
//	<baseDir>/latest -> <runID>
type FileLogger struct {
	baseDir string
	runID   string

	mu sync.Mutex
}

// NewFileLogger creates the run directory for runID under baseDir.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, failedDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}

	return &FileLogger{baseDir: baseDir, runID: runID}, nil
}

// RunDir returns the directory holding this run's logs.
func (l *FileLogger) RunDir() string {
	return filepath.Join(l.baseDir, l.runID)
}

// RunID returns the run identifier this logger writes under.
func (l *FileLogger) RunID() string {
	return l.runID
}

// LogTestResult writes the captured output of one test root.
func (l *FileLogger) LogTestResult(result *types.TestResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := safeFilename(result.Metadata.GetName()) + ".log"
	content := l.renderResult(result)

	path := filepath.Join(l.RunDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write test log: %w", err)
	}

	if result.Status == types.TestStatusFail || result.Status == types.TestStatusError {
		failedPath := filepath.Join(l.RunDir(), failedDirName, name)
		if err := os.WriteFile(failedPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write failed test log: %w", err)
		}
	}
	return nil
}

func (l *FileLogger) renderResult(result *types.TestResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "root: %s\n", result.Metadata.GetName())
	fmt.Fprintf(&b, "kind: %s\n", result.Metadata.Kind)
	fmt.Fprintf(&b, "status: %s\n", result.Status)
	fmt.Fprintf(&b, "duration: %s\n", result.Duration)
	if result.Error != nil {
		fmt.Fprintf(&b, "error: %s\n", result.Error)
	}
	if result.Stdout != "" {
		b.WriteString("\n--- output ---\n")
		b.WriteString(result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// LogSummary writes the run summary file.
func (l *FileLogger) LogSummary(summary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.RunDir(), summaryFileName)
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Complete marks the run as finished and repoints the "latest" symlink.
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	link := filepath.Join(l.baseDir, LatestDirName)
	// Remove a stale link from a previous run; ignore absence.
	_ = os.Remove(link)
	if err := os.Symlink(l.runID, link); err != nil {
		return fmt.Errorf("failed to update latest symlink: %w", err)
	}
	return nil
}

// safeFilename replaces characters that are awkward in filenames.
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
	)
	return replacer.Replace(s)
}
