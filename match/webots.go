package match

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// ANSI sequences used for the operator-facing failure messages, matching
// what the supervisor itself prints.
const (
	ansiBold = "\033[1m"
	ansiFail = "\033[91m"
	ansiEnd  = "\033[0m"
)

// runWebots launches the simulator for one match and waits for it to
// finish. On failure the supervisor log (when present) is dumped first
// so the fatal message stays at the bottom of the operator's terminal.
func (r *Runner) runWebots(ctx context.Context, arena Arena) error {
	world := filepath.Join(r.workDir, "worlds", "Arena.wbt")

	cmd := r.cmdBuilder(ctx, r.webots,
		"--batch",
		"--stdout",
		"--stderr",
		"--minimize",
		"--mode=realtime",
		world,
	)
	cmd.Dir = r.workDir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	r.log.Infow("Starting simulator", "binary", r.webots, "world", world)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		r.printFatal("Could not find webots. Check that you have it installed and on your PATH")
		return errors.Wrap(err, "webots not found")
	}

	exitErr := &exec.ExitError{}
	if errors.As(err, &exitErr) {
		logText, readErr := os.ReadFile(arena.SupervisorLog())
		if readErr != nil {
			r.printFatal(fmt.Sprintf(
				"Simulation errored (exit code %d). No supervisor logs were found - Webots may have crashed.",
				exitErr.ExitCode()))
		} else {
			// Failures are most likely reported at the end of the log and
			// the operator's focus lands at the end of the output, so the
			// log goes first and the fatal message last.
			r.printError(string(logText))
			r.printFatal(fmt.Sprintf(
				"Simulation errored (exit code %d). Competition supervisor logs are above.",
				exitErr.ExitCode()))
		}
		return errors.Wrapf(err, "simulation errored (exit code %d)", exitErr.ExitCode())
	}

	return errors.Wrap(err, "running webots")
}

func (r *Runner) printError(message string) {
	fmt.Fprintf(r.stderr, "%s%s%s\n", ansiFail, message, ansiEnd)
}

func (r *Runner) printFatal(message string) {
	fmt.Fprintf(r.stderr, "%s%s%s%s\n", ansiBold, ansiFail, message, ansiEnd)
}
