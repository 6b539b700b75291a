package sysync

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"sysync/internal/archive"
	"sysync/internal/model"
)

// Progress scale: staging fills 0-50, sealing lands at 75, successful
// storage completes at 100.
const (
	stagingShare   = 50.0
	sealedProgress = 75.0
)

// stagedCopy is one source file and its destination relative to the staging
// root, type partition included.
type stagedCopy struct {
	src string
	dst string
}

// CreateBackup archives the application's settings and stores the sealed
// archive. The descriptor list is filtered for existing paths, sized, staged
// into a type-partitioned layout, sealed into one zip archive, optionally
// encrypted, then handed to the object store which also writes the catalog
// records. A failed backup leaves the catalog and store untouched; all
// transient directories are removed on every exit path.
func (s *Service) CreateBackup(app *model.AppInfo, rep Reporter) error {
	if rep == nil {
		rep = NopReporter{}
	}
	s.logger.Info("backup started", "app", app.Name, "settings", len(app.Settings))

	workDir, err := os.MkdirTemp("", "sysync-backup-*")
	if err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	archivePath, settings, totalBytes, err := s.buildArchive(app.Name, app.Settings, workDir, rep)
	if err != nil {
		return err
	}

	if s.encryptor != nil && s.encryptor.IsConfigured() {
		encPath, err := s.encryptArchive(archivePath)
		if err != nil {
			return fmt.Errorf("encrypting archive: %w", err)
		}
		archivePath = encPath
	}
	rep.Report(sealedProgress)

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat sealed archive: %w", err)
	}

	meta := &model.BackupMetadata{
		Timestamp: s.clock.Now().Format(timestampLayout),
		AppName:   app.Name,
		Category:  app.Category,
		Type:      app.Type,
		Settings:  settings,
		TotalSize: totalBytes,
	}

	storagePath, err := s.store.Put(app, archivePath, meta, info.Size(), NopReporter{})
	if err != nil {
		return fmt.Errorf("storing archive: %w", err)
	}

	rep.Report(100)
	s.logger.Info("backup complete", "app", app.Name, "storage_path", storagePath, "archive_size", info.Size(), "total_bytes", totalBytes)
	return nil
}

const timestampLayout = "20060102_150405"

// buildArchive stages the settings into a type-partitioned temp tree and
// seals it into a zip under workDir. Returns the archive path, the filtered
// settings with sizes written back, and the total source byte count. The
// staging tree is removed before returning on every path.
func (s *Service) buildArchive(appName string, settings []model.Setting, workDir string, rep Reporter) (string, []model.Setting, int64, error) {
	valid := make([]model.Setting, 0, len(settings))
	for _, st := range settings {
		if _, err := os.Stat(st.Path); err != nil {
			s.logger.Warn("setting path missing, skipping", "app", appName, "setting", st.Name, "path", st.Path)
			continue
		}
		valid = append(valid, st)
	}
	if len(valid) == 0 {
		return "", nil, 0, fmt.Errorf("app %s: %w", appName, ErrNoValidSettings)
	}

	seen := make(map[string]bool, len(valid))
	for _, st := range valid {
		if seen[st.Type] {
			return "", nil, 0, fmt.Errorf("setting type %q: %w", st.Type, ErrDuplicateSettingType)
		}
		seen[st.Type] = true
	}

	// Size everything before copying. The running total is written back into
	// each descriptor, so a descriptor's recorded size is the cumulative
	// total up to and including it. This matches the shipped metadata
	// contract; per-descriptor accuracy would need a schema version bump.
	var totalBytes int64
	copies := make([]stagedCopy, 0, len(valid))
	for i := range valid {
		files, size := s.collectSetting(&valid[i])
		totalBytes += size
		valid[i].Size = totalBytes
		copies = append(copies, files...)
	}
	s.logger.Info("backup sized", "app", appName, "files", len(copies), "total_bytes", totalBytes)

	stagingDir, err := os.MkdirTemp("", "sysync-stage-*")
	if err != nil {
		return "", nil, 0, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	processed := 0
	for _, c := range copies {
		dst := filepath.Join(stagingDir, c.dst)
		if err := copyFile(c.src, dst); err != nil {
			// Per-file tolerance: a backup with most of its files beats none.
			s.logger.Warn("copy failed, skipping file", "src", c.src, "error", err)
			continue
		}
		processed++
		rep.Report(float64(processed) / float64(len(copies)) * stagingShare)
	}

	if processed == 0 {
		return "", nil, 0, fmt.Errorf("app %s: %w", appName, ErrNoFilesProcessed)
	}
	s.logger.Info("staging complete", "app", appName, "processed", processed, "skipped", len(copies)-processed)

	filename := fmt.Sprintf("%s_%s.zip", appName, s.clock.Now().Format(timestampLayout))
	archivePath := filepath.Join(workDir, filename)
	entries, err := archive.Seal(stagingDir, archivePath)
	if err != nil {
		return "", nil, 0, fmt.Errorf("sealing archive: %w", err)
	}
	s.logger.Info("archive sealed", "app", appName, "archive", filename, "entries", entries)

	return archivePath, valid, totalBytes, nil
}

// collectSetting resolves one descriptor into the list of file copies it
// contributes and its total source size. File sources are placed directly
// under the type partition; directory sources preserve each file's path
// relative to the source root. Unreadable entries are logged and skipped.
func (s *Service) collectSetting(st *model.Setting) ([]stagedCopy, int64) {
	info, err := os.Stat(st.Path)
	if err != nil {
		s.logger.Warn("setting became inaccessible", "path", st.Path, "error", err)
		return nil, 0
	}

	if !info.IsDir() {
		return []stagedCopy{{src: st.Path, dst: filepath.Join(st.Type, filepath.Base(st.Path))}}, info.Size()
	}

	var files []stagedCopy
	var size int64
	err = filepath.WalkDir(st.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("walk error, skipping entry", "path", p, "error", err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			s.logger.Warn("stat failed, skipping file", "path", p, "error", err)
			return nil
		}
		rel, err := filepath.Rel(st.Path, p)
		if err != nil {
			return nil
		}
		files = append(files, stagedCopy{src: p, dst: filepath.Join(st.Type, rel)})
		size += fi.Size()
		return nil
	})
	if err != nil {
		s.logger.Warn("walking setting directory failed", "path", st.Path, "error", err)
	}
	return files, size
}

// encryptArchive encrypts the sealed archive in place, producing
// "<archive>.age" and removing the plaintext file.
func (s *Service) encryptArchive(archivePath string) (string, error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer src.Close()

	encPath := archivePath + ".age"
	dst, err := os.Create(encPath)
	if err != nil {
		return "", fmt.Errorf("creating encrypted archive: %w", err)
	}

	if err := s.encryptor.Encrypt(src, dst); err != nil {
		dst.Close()
		os.Remove(encPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(encPath)
		return "", fmt.Errorf("finalizing encrypted archive: %w", err)
	}

	if err := os.Remove(archivePath); err != nil {
		return "", fmt.Errorf("removing plaintext archive: %w", err)
	}
	return encPath, nil
}

// copyFile copies a single regular file, creating parent directories.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}
	return nil
}
