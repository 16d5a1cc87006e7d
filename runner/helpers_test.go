package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srobo-infra/sim-harness/registry"
)

// fakeCall is one recorded invocation of the fake interpreter.
type fakeCall struct {
	StartDir   string
	PythonPath string
	Args       string
}

// writeFakeInterpreter creates a shell script standing in for the
// interpreter. Each invocation appends "<start-dir>|<PYTHONPATH>|<args>"
// to callsFile. A FAIL file in the start directory makes it exit 1, a
// CRASH file makes it exit 3.
func writeFakeInterpreter(t *testing.T, callsFile string) string {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
prev=""
dir=""
for a in "$@"; do
  if [ "$prev" = "--start-directory" ]; then dir="$a"; fi
  prev="$a"
done
printf '%%s|%%s|%%s\n' "$dir" "$PYTHONPATH" "$*" >> %q
if [ -f "$dir/FAIL" ]; then exit 1; fi
if [ -f "$dir/CRASH" ]; then exit 3; fi
exit 0
`, callsFile)

	path := filepath.Join(t.TempDir(), "fake-python")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func readCalls(t *testing.T, callsFile string) []fakeCall {
	t.Helper()
	data, err := os.ReadFile(callsFile)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var calls []fakeCall
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		require.Len(t, parts, 3, "malformed call record %q", line)
		calls = append(calls, fakeCall{StartDir: parts[0], PythonPath: parts[1], Args: parts[2]})
	}
	return calls
}

// makeRepoRoot builds a checkout layout with the given controllers.
func makeRepoRoot(t *testing.T, controllers ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, registry.TestsDirName), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, registry.StubsDirName), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, registry.ModulesDirName), 0o755))
	for _, name := range controllers {
		require.NoError(t, os.MkdirAll(filepath.Join(root, registry.ControllersDirName, name), 0o755))
	}
	return root
}

func newTestRegistry(t *testing.T, root string) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(registry.Config{RootDir: root})
	require.NoError(t, err)
	return reg
}

// markRoot drops a marker file (FAIL or CRASH) into a test root.
func markRoot(t *testing.T, root, sub, marker string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, sub, marker), nil, 0o644))
}
