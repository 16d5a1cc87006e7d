package match

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// extractZip unpacks a team code archive into dest. Entry paths are
// validated so a crafted archive cannot write outside the zone.
func extractZip(src, dest string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return errors.Wrapf(err, "opening archive %s", src)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := extractZipEntry(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, dest string) error {
	cleaned := filepath.Clean(f.Name)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return errors.Errorf("archive entry %q escapes the zone directory", f.Name)
	}
	target := filepath.Join(dest, cleaned)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", f.Name)
	}

	in, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "opening archive entry %s", f.Name)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Wrapf(err, "creating %s", target)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "extracting %s", f.Name)
	}
	return out.Close()
}
