// Package match orchestrates a complete simulated match: preparing the
// arena from team code archives, running Webots, then collating logs,
// scores and recordings into the archives directory.
package match

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/srobo-infra/sim-harness/metrics"
)

const tracerName = "sim-harness/match"

// EmptyZoneTLA is the CLI placeholder for a zone with no team in it.
const EmptyZoneTLA = "-"

// MatchData describes one match to be run.
type MatchData struct {
	MatchNumber int
	Teams       []string // TLA per zone; empty string = no team
	Duration    time.Duration
	Recording   bool
}

// matchDataYAML is the on-disk form of MatchData. The supervisor and
// the scoring system read this file, so empty zones are recorded as
// null and the duration as a whole number of seconds.
type matchDataYAML struct {
	MatchNumber int       `yaml:"match_number"`
	Teams       []*string `yaml:"teams"`
	Duration    int       `yaml:"duration"`
	Recording   bool      `yaml:"recording"`
}

// MarshalYAML implements yaml.Marshaler.
func (d MatchData) MarshalYAML() (interface{}, error) {
	teams := make([]*string, len(d.Teams))
	for i, tla := range d.Teams {
		if tla == "" {
			continue
		}
		tla := tla
		teams[i] = &tla
	}
	return matchDataYAML{
		MatchNumber: d.MatchNumber,
		Teams:       teams,
		Duration:    int(d.Duration.Seconds()),
		Recording:   d.Recording,
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *MatchData) UnmarshalYAML(value *yaml.Node) error {
	var raw matchDataYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	teams := make([]string, len(raw.Teams))
	for i, tla := range raw.Teams {
		if tla != nil {
			teams[i] = *tla
		}
	}
	*d = MatchData{
		MatchNumber: raw.MatchNumber,
		Teams:       teams,
		Duration:    time.Duration(raw.Duration) * time.Second,
		Recording:   raw.Recording,
	}
	return nil
}

// ConstructMatchData builds MatchData from CLI inputs, converting the
// dash placeholder into an empty zone.
func ConstructMatchData(matchNumber int, tlas []string, duration time.Duration, recording bool) (MatchData, error) {
	if matchNumber < 0 {
		return MatchData{}, errors.Errorf("match number must not be negative, got %d", matchNumber)
	}
	if len(tlas) == 0 {
		return MatchData{}, errors.New("at least one zone must be specified")
	}
	if duration <= 0 {
		return MatchData{}, errors.Errorf("match duration must be positive, got %v", duration)
	}

	teams := make([]string, len(tlas))
	occupied := false
	for i, tla := range tlas {
		if tla == EmptyZoneTLA {
			continue
		}
		teams[i] = tla
		occupied = true
	}
	if !occupied {
		return MatchData{}, errors.New("every zone is empty")
	}

	return MatchData{
		MatchNumber: matchNumber,
		Teams:       teams,
		Duration:    duration,
		Recording:   recording,
	}, nil
}

// Config configures a match runner.
type Config struct {
	Log          *zap.SugaredLogger
	WorkDir      string // repository root containing worlds/Arena.wbt
	WebotsBinary string
	Stdout       io.Writer
	Stderr       io.Writer

	// CmdBuilder is overridable for tests.
	CmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// Runner runs matches.
type Runner struct {
	log        *zap.SugaredLogger
	workDir    string
	webots     string
	stdout     io.Writer
	stderr     io.Writer
	cmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewRunner creates a match runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.WorkDir == "" {
		return nil, errors.New("work directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	if cfg.WebotsBinary == "" {
		cfg.WebotsBinary = DefaultWebotsBinary
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = exec.CommandContext
	}

	return &Runner{
		log:        cfg.Log,
		workDir:    cfg.WorkDir,
		webots:     cfg.WebotsBinary,
		stdout:     cfg.Stdout,
		stderr:     cfg.Stderr,
		cmdBuilder: cfg.CmdBuilder,
	}, nil
}

// Run executes the full match flow. Team code is read from
// <archivesDir>/<TLA>.zip; logs, scores and recordings are written back
// under archivesDir.
func (r *Runner) Run(ctx context.Context, archivesDir string, data MatchData) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "match")
	span.SetAttributes(attribute.Int("match.number", data.MatchNumber))
	defer span.End()

	start := time.Now()
	err := r.runInArena(ctx, archivesDir, data)
	duration := time.Since(start)

	result := "pass"
	if err != nil {
		result = "fail"
	}
	metrics.RecordMatch(strconv.Itoa(data.MatchNumber), result, duration)
	return err
}

func (r *Runner) runInArena(ctx context.Context, archivesDir string, data MatchData) error {
	return withTemporaryArenaRoot(fmt.Sprintf("match-%d", data.MatchNumber), func(root string) error {
		arena := Arena{Root: root, MatchNumber: data.MatchNumber}
		r.log.Infow("Using temporary arena", "root", root, "match", data.MatchNumber)

		if err := r.prepareMatch(arena, archivesDir, data); err != nil {
			return err
		}

		if err := r.runWebots(ctx, arena); err != nil {
			return err
		}

		if err := r.collateLogs(arena, archivesDir, data); err != nil {
			return err
		}
		if err := r.archiveMatchFile(arena, archivesDir, data); err != nil {
			return err
		}
		if data.Recording {
			if err := r.archiveRecordings(arena, archivesDir); err != nil {
				return err
			}
		}
		return nil
	})
}
