// Package archive seals a staged directory tree into a single compressed
// zip container and unseals it again. Entry names are recorded relative to
// the staging root with forward slashes, so the archive's internal layout is
// exactly the staging layout.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Seal walks srcDir and writes every regular file into a new zip archive at
// archivePath. Returns the number of entries written.
func Seal(srcDir, archivePath string) (int, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("creating archive file: %w", err)
	}

	zw := zip.NewWriter(f)
	entries := 0

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("creating entry %s: %w", rel, err)
		}
		src, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening %s: %w", p, err)
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("writing entry %s: %w", rel, err)
		}
		entries++
		return nil
	})
	if walkErr != nil {
		zw.Close()
		f.Close()
		os.Remove(archivePath)
		return 0, walkErr
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(archivePath)
		return 0, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return 0, fmt.Errorf("closing archive file: %w", err)
	}
	return entries, nil
}

// Extract unseals the archive at archivePath into destDir, which must exist.
// Entry paths are validated to stay inside destDir.
func Extract(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("extracting %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destDir string) error {
	target, err := sanitizePath(destDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening entry: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return fmt.Errorf("writing file: %w", err)
	}
	return dst.Close()
}

// sanitizePath resolves an archive entry name under destDir, rejecting
// entries that would escape it.
func sanitizePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path escapes destination: %s", name)
	}
	return target, nil
}
