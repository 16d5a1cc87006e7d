// Package archive builds the versioned release zips attached to
// published releases, named <project>-<git-describe>.zip.
package archive

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultExcludes are directory names never included in a release
// archive.
var DefaultExcludes = []string{".git", "logs", "archives"}

// Builder creates release archives from a source tree.
type Builder struct {
	Log      *zap.SugaredLogger
	Excludes []string

	// execCommand is overridable for tests.
	execCommand func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewBuilder returns a Builder with the default exclusions.
func NewBuilder(log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{
		Log:         log,
		Excludes:    DefaultExcludes,
		execCommand: exec.CommandContext,
	}
}

// Name returns the release archive filename for a project and version.
func Name(project, version string) string {
	return project + "-" + version + ".zip"
}

// GitDescribe resolves the version string for a checkout via
// `git describe --tags --always`.
func (b *Builder) GitDescribe(ctx context.Context, dir string) (string, error) {
	cmd := b.execCommand(ctx, "git", "describe", "--tags", "--always")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, "git describe")
	}
	version := strings.TrimSpace(string(out))
	if version == "" {
		return "", errors.New("git describe produced no output")
	}
	return version, nil
}

// Build writes a zip of srcDir to outPath, skipping excluded directories.
// Entries are stored with paths relative to srcDir.
func (b *Builder) Build(srcDir, outPath string) error {
	srcDir, err := filepath.Abs(srcDir)
	if err != nil {
		return errors.Wrap(err, "resolving source directory")
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "creating archive")
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if b.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		// Never pack the archive we are currently writing.
		if sameFile(path, outPath) {
			return nil
		}

		return b.addFile(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		return errors.Wrap(walkErr, "walking source tree")
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "finalizing archive")
	}
	return nil
}

// BuildRelease resolves the version, then builds
// <outDir>/<project>-<version>.zip and returns its path.
func (b *Builder) BuildRelease(ctx context.Context, project, srcDir, outDir string) (string, error) {
	if project == "" {
		abs, err := filepath.Abs(srcDir)
		if err != nil {
			return "", errors.Wrap(err, "resolving source directory")
		}
		project = filepath.Base(abs)
	}

	version, err := b.GitDescribe(ctx, srcDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating output directory")
	}

	outPath := filepath.Join(outDir, Name(project, version))
	b.Log.Infow("Building release archive", "project", project, "version", version, "out", outPath)

	if err := b.Build(srcDir, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func (b *Builder) excluded(name string) bool {
	for _, ex := range b.Excludes {
		if name == ex {
			return true
		}
	}
	return false
}

func (b *Builder) addFile(zw *zip.Writer, path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

func sameFile(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}
