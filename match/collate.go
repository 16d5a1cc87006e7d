package match

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
)

// collateLogs copies each competing team's robot log into a directory
// next to its original code archive. Zones are independent so the copies
// run concurrently.
func (r *Runner) collateLogs(arena Arena, archivesDir string, data MatchData) error {
	p := pool.New().WithErrors()

	for zone, tla := range data.Teams {
		if tla == "" {
			// no team in this zone
			continue
		}

		p.Go(func() error {
			teamDir := filepath.Join(archivesDir, tla)
			if err := os.MkdirAll(teamDir, 0o755); err != nil {
				return errors.Wrapf(err, "creating team directory for %s", tla)
			}

			logPath := arena.RobotLog(zone)
			dest := filepath.Join(teamDir, filepath.Base(logPath))
			if err := copyFile(logPath, dest); err != nil {
				return errors.Wrapf(err, "collating log for %s (zone %d)", tla, zone)
			}
			r.log.Debugw("Collated robot log", "tla", tla, "zone", zone, "dest", dest)
			return nil
		})
	}

	return p.Wait()
}

// archiveMatchFile copies the match file (which contains the scoring
// data) into the archives directory under the name the scoring system
// expects.
func (r *Runner) archiveMatchFile(arena Arena, archivesDir string, data MatchData) error {
	matchesDir := filepath.Join(archivesDir, "matches")
	if err := os.MkdirAll(matchesDir, 0o755); err != nil {
		return errors.Wrap(err, "creating matches directory")
	}

	dest := filepath.Join(matchesDir, fmt.Sprintf("%03d.yaml", data.MatchNumber))
	if err := copyFile(arena.MatchFile(), dest); err != nil {
		return errors.Wrap(err, "archiving match file")
	}
	return nil
}

// archiveRecordings copies the simulator's recording outputs into the
// archives directory. The recordings land next to unrelated files, so
// only the artifacts known to belong to the recording are copied.
func (r *Runner) archiveRecordings(arena Arena, archivesDir string) error {
	recordingsDir := filepath.Join(archivesDir, "recordings")
	if err := os.MkdirAll(recordingsDir, 0o755); err != nil {
		return errors.Wrap(err, "creating recordings directory")
	}

	stem := arena.RecordingStem()
	matches, err := filepath.Glob(stem + ".*")
	if err != nil {
		return errors.Wrap(err, "globbing recordings")
	}
	for _, path := range matches {
		if err := copyFile(path, filepath.Join(recordingsDir, filepath.Base(path))); err != nil {
			return errors.Wrap(err, "copying recording")
		}
	}

	// The textures are always the same between matches, so an existing
	// copy is left alone.
	texturesSrc := filepath.Join(filepath.Dir(stem), "textures")
	texturesDest := filepath.Join(recordingsDir, "textures")
	if _, err := os.Stat(texturesSrc); err == nil {
		if _, err := os.Stat(texturesDest); os.IsNotExist(err) {
			if err := copyTree(texturesSrc, texturesDest); err != nil {
				return errors.Wrap(err, "copying textures")
			}
		}
	}

	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}
