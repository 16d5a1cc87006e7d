package match

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/srobo-infra/sim-harness/simlog"
)

const (
	// ArenaRootEnv is the env var the simulator reads the arena root from.
	ArenaRootEnv = "ARENA_ROOT"

	// DefaultWebotsBinary is the simulator binary looked up on PATH.
	DefaultWebotsBinary = "webots"

	modeFileName  = "mode.txt"
	matchFileName = "match.yaml"

	// modeCompetition tells the controllers they are in a real match
	// rather than development mode.
	modeCompetition = "comp"
)

// Arena describes the filesystem layout of one match's arena root.
type Arena struct {
	Root        string
	MatchNumber int
}

// ZoneDir returns the directory a zone's robot code is extracted into.
func (a Arena) ZoneDir(zone int) string {
	return filepath.Join(a.Root, fmt.Sprintf("zone-%d", zone))
}

// ModeFile returns the path of the mode marker file.
func (a Arena) ModeFile() string {
	return filepath.Join(a.Root, modeFileName)
}

// MatchFile returns the path of the recorded match data, which the
// supervisor augments with scores when the match ends.
func (a Arena) MatchFile() string {
	return filepath.Join(a.Root, matchFileName)
}

// SupervisorLog returns the path of the competition supervisor's log.
func (a Arena) SupervisorLog() string {
	return filepath.Join(a.Root, fmt.Sprintf("supervisor-match-%d.log", a.MatchNumber))
}

// RobotLog returns the path a zone's robot log is written to.
func (a Arena) RobotLog(zone int) string {
	return filepath.Join(a.ZoneDir(zone), simlog.FileName(zone, a.MatchNumber))
}

// RecordingStem returns the path prefix the simulator writes recording
// artifacts (<stem>.mp4, <stem>.html, ...) to.
func (a Arena) RecordingStem() string {
	return filepath.Join(a.Root, "recordings", fmt.Sprintf("match-%03d", a.MatchNumber))
}

// withTemporaryArenaRoot runs fn with ARENA_ROOT pointed at a fresh
// temporary directory, restoring the previous value afterwards.
func withTemporaryArenaRoot(suffix string, fn func(root string) error) error {
	tmpdir, err := os.MkdirTemp("", "arena-"+suffix+"-")
	if err != nil {
		return errors.Wrap(err, "creating arena root")
	}
	defer os.RemoveAll(tmpdir)

	original, had := os.LookupEnv(ArenaRootEnv)
	if err := os.Setenv(ArenaRootEnv, tmpdir); err != nil {
		return errors.Wrap(err, "setting arena root")
	}
	defer func() {
		if had {
			_ = os.Setenv(ArenaRootEnv, original)
		} else {
			_ = os.Unsetenv(ArenaRootEnv)
		}
	}()

	return fn(tmpdir)
}

// prepareMatch resets the arena for the given match: writes the mode
// file, records the match data, and extracts each competing team's code
// archive into its zone.
func (r *Runner) prepareMatch(arena Arena, archivesDir string, data MatchData) error {
	if err := os.WriteFile(arena.ModeFile(), []byte(modeCompetition+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "writing mode file")
	}
	if err := recordMatchData(arena, data); err != nil {
		return err
	}

	for zone, tla := range data.Teams {
		zonePath := arena.ZoneDir(zone)

		if err := os.RemoveAll(zonePath); err != nil {
			return errors.Wrapf(err, "resetting zone %d", zone)
		}

		if tla == "" {
			// no team in this zone
			continue
		}

		if err := os.MkdirAll(zonePath, 0o755); err != nil {
			return errors.Wrapf(err, "creating zone %d", zone)
		}

		archivePath := filepath.Join(archivesDir, tla+".zip")
		r.log.Infow("Extracting team code", "tla", tla, "zone", zone, "archive", archivePath)
		if err := extractZip(archivePath, zonePath); err != nil {
			return errors.Wrapf(err, "extracting code for %s into zone %d", tla, zone)
		}
	}

	return nil
}

func recordMatchData(arena Arena, data MatchData) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding match data")
	}
	if err := os.WriteFile(arena.MatchFile(), out, 0o644); err != nil {
		return errors.Wrap(err, "writing match data")
	}
	return nil
}
