// Package types contains shared types used across the harness.
package types

import (
	"path/filepath"
	"time"
)

// TestStatus represents the possible states of a test-root execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// RootKind distinguishes the shared test root from per-controller roots.
type RootKind string

const (
	RootKindPrimary    RootKind = "primary"
	RootKindController RootKind = "controller"
)

// ControllerMetadata identifies a single discovered test root.
type ControllerMetadata struct {
	ID   string   // name of the controller directory; empty for the primary root
	Kind RootKind // primary or controller
	Dir  string   // absolute path of the directory discovery runs in
}

// GetName returns a display name for the test root
func (c ControllerMetadata) GetName() string {
	if c.ID != "" {
		return c.ID
	}
	if c.Dir != "" {
		return filepath.Base(c.Dir)
	}
	return string(c.Kind)
}

// IsPrimary returns true for the shared tests directory root
func (c ControllerMetadata) IsPrimary() bool {
	return c.Kind == RootKindPrimary
}

// TestResult captures the outcome of running test discovery on one root
type TestResult struct {
	Metadata ControllerMetadata
	Status   TestStatus
	Error    error         // non-nil for failing roots
	Duration time.Duration // wall time of the discovery subprocess
	Stdout   string        // tail of captured output, kept for failing roots
	ExitCode int           // raw exit code of the discovery subprocess
	TimedOut bool
}
