package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	harness "github.com/srobo-infra/sim-harness"
	"github.com/srobo-infra/sim-harness/archive"
	"github.com/srobo-infra/sim-harness/exitcodes"
	"github.com/srobo-infra/sim-harness/flags"
	"github.com/srobo-infra/sim-harness/logging"
	"github.com/srobo-infra/sim-harness/match"
	"github.com/srobo-infra/sim-harness/registry"
	"github.com/srobo-infra/sim-harness/service"
	"github.com/srobo-infra/sim-harness/simlog"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "sim-harness"
	app.Usage = "Competition Simulator Harness"
	app.Description = "sim-harness runs controller unit tests, simulated matches, log checks and release packaging"
	app.Flags = flags.GlobalFlags
	app.Commands = []*cli.Command{
		testCommand(),
		matchCommand(),
		archiveCommand(),
		checkLogCommand(),
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), exitCodeForError(err)))
	}

	// Telemetry export is best-effort: a missing collector must never
	// break a test run.
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: telemetry disabled: %v\n", err)
	} else {
		defer shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		// ExitErrHandler already translated the error; reaching here
		// means it chose not to exit, so fail conservatively.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

// exitCodeForError maps typed harness errors onto process exit codes.
func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case harness.IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case harness.IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		return exitcodes.TestFailure
	}
}

func newLogger(ctx *cli.Context) (*zap.SugaredLogger, error) {
	return logging.NewLogger(logging.CLIConfig{
		Level:  ctx.String(flags.LogLevel.Name),
		Format: ctx.String(flags.LogFormat.Name),
	})
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Run unit-test discovery over the shared tests directory and every controller directory",
		ArgsUsage: "[args forwarded to unittest discovery...]",
		Flags:     flags.TestFlags,
		Action:    runTest,
	}
}

func runTest(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return harness.NewRuntimeError(err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := harness.NewConfig(ctx, log)
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	log.Debugw("Config", "rootDir", cfg.RootDir, "interpreter", cfg.Interpreter, "runOnce", cfg.RunOnce)

	svc, err := harness.New(ctx.Context, cfg, Version, func(error) {})
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	if cfg.RunOnce {
		return svc.Start(ctx.Context)
	}

	// Continuous mode: keep healthz and metrics up between runs.
	servers := service.New(log)
	servers.Start(ctx.Context)
	defer servers.Shutdown()

	if err := svc.Start(ctx.Context); err != nil {
		return err
	}

	<-ctx.Context.Done()
	log.Infow("Shutdown requested")

	stopCtx := context.Background()
	if err := svc.Stop(stopCtx); err != nil {
		log.Warnw("Error stopping harness", "error", err)
	}
	return svc.WaitForShutdown(stopCtx)
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Run a simulated match from team code archives",
		ArgsUsage: "ARCHIVES_DIR MATCH_NUM TLA... (use '-' for an empty zone)",
		Flags:     flags.MatchFlags,
		Action:    runMatch,
	}
}

func runMatch(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return harness.NewRuntimeError(err)
	}
	defer log.Sync() //nolint:errcheck

	if ctx.NArg() < 3 {
		return harness.NewRuntimeError(errors.New("usage: sim-harness match ARCHIVES_DIR MATCH_NUM TLA..."))
	}
	args := ctx.Args().Slice()

	archivesDir := args[0]
	matchNum, err := strconv.Atoi(args[1])
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("invalid match number %q: %w", args[1], err))
	}

	data, err := match.ConstructMatchData(matchNum, args[2:],
		ctx.Duration(flags.MatchDuration.Name),
		!ctx.Bool(flags.NoRecordings.Name))
	if err != nil {
		return harness.NewRuntimeError(err)
	}

	rootDir := ctx.String(flags.RootDir.Name)
	if rootDir == "" {
		rootDir = "."
	}

	runner, err := match.NewRunner(match.Config{
		Log:          log,
		WorkDir:      rootDir,
		WebotsBinary: ctx.String(flags.WebotsBinary.Name),
	})
	if err != nil {
		return harness.NewRuntimeError(err)
	}

	if err := runner.Run(ctx.Context, archivesDir, data); err != nil {
		return harness.NewTestFailureError(err.Error())
	}
	log.Infow("Match complete", "match", data.MatchNumber)
	return nil
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Build the versioned release archive for a checkout",
		ArgsUsage: "[SRC_DIR]",
		Flags:     flags.ArchiveFlags,
		Action:    runArchive,
	}
}

func runArchive(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return harness.NewRuntimeError(err)
	}
	defer log.Sync() //nolint:errcheck

	srcDir := "."
	if ctx.NArg() > 0 {
		srcDir = ctx.Args().First()
	}

	builder := archive.NewBuilder(log)
	outPath, err := builder.BuildRelease(ctx.Context,
		ctx.String(flags.Project.Name),
		srcDir,
		ctx.String(flags.OutDir.Name))
	if err != nil {
		return harness.NewRuntimeError(err)
	}

	fmt.Println(outPath)
	return nil
}

func checkLogCommand() *cli.Command {
	return &cli.Command{
		Name:      "check-log",
		Usage:     "Validate a supervisor match log and its success marker",
		ArgsUsage: "LOGFILE",
		Flags:     flags.CheckLogFlags,
		Action:    runCheckLog,
	}
}

func runCheckLog(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return harness.NewRuntimeError(errors.New("usage: sim-harness check-log LOGFILE"))
	}
	path := ctx.Args().First()

	marker, err := resolveMarker(ctx)
	if err != nil {
		return harness.NewRuntimeError(err)
	}

	if ctx.Bool(flags.Follow.Name) {
		followCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration(flags.FollowTimeout.Name))
		defer cancel()
		if err := simlog.Follow(followCtx, path, marker); err != nil {
			return harness.NewTestFailureError(err.Error())
		}
		return nil
	}

	if err := simlog.CheckFile(path, marker); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return harness.NewRuntimeError(err)
		}
		return harness.NewTestFailureError(err.Error())
	}
	return nil
}

// resolveMarker picks the success marker: an explicit --marker wins,
// then a success_marker from the root's harness.yaml, then the default.
func resolveMarker(ctx *cli.Context) (string, error) {
	if ctx.IsSet(flags.Marker.Name) {
		return ctx.String(flags.Marker.Name), nil
	}

	rootDir := ctx.String(flags.RootDir.Name)
	if rootDir == "" {
		rootDir = "."
	}
	cfg, err := registry.LoadHarnessConfig(rootDir)
	if err != nil {
		return "", err
	}
	if cfg.SuccessMarker != "" {
		return cfg.SuccessMarker, nil
	}
	return ctx.String(flags.Marker.Name), nil
}
