package simlog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Follow watches a supervisor log until its last line carries the success
// marker, then validates the whole file. The file does not need to exist
// yet: the parent directory is watched so a log created mid-match is
// picked up. Returns the context error on cancellation or timeout.
func Follow(ctx context.Context, path, marker string) error {
	if marker == "" {
		marker = DefaultSuccessMarker
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrap(err, "log directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, "watching log directory")
	}

	// The marker may already be there before the first event arrives.
	if done, err := markerReached(path, marker); err != nil {
		return err
	} else if done {
		return CheckFile(path, marker)
	}

	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "log never reached success marker")

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			// fsnotify reports names relative to how the directory was
			// added, so normalize before comparing.
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if done, err := markerReached(path, marker); err != nil {
				return err
			} else if done {
				return CheckFile(path, marker)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return errors.Wrap(err, "watching log")
		}
	}
}

// markerReached reports whether the file currently ends with the marker.
// Parse errors are not fatal here: the supervisor may be mid-write.
func markerReached(path, marker string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "opening log file")
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil || len(lines) == 0 {
		return false, nil
	}
	return lines[len(lines)-1].Message == marker, nil
}
