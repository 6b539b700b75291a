package sysync

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sysync/internal/archive"
	"sysync/internal/model"
)

// Restore progress landmarks: download 25, extraction 50, then the apply
// phase fills 50-100 descriptor by descriptor.
const (
	downloadedProgress = 25.0
	extractedProgress  = 50.0
	applyShare         = 50.0
)

// Restore reverses a backup's archive layout back onto the original absolute
// paths recorded in its metadata.
//
// If selectedPaths is non-empty, only descriptors whose original path is a
// member are applied; everything else on disk is left untouched. Existing
// targets are removed before the restored copy is written — restore is a
// destructive overwrite, not a merge. Per-descriptor failures are logged and
// skipped; only the download and extraction stages abort the operation.
//
// decrypt is required when the stored archive is encrypted; pass nil for
// plain archives.
func (s *Service) Restore(backupID int64, selectedPaths []string, decrypt DecryptionContext, rep Reporter) error {
	if rep == nil {
		rep = NopReporter{}
	}

	b, err := s.GetBackup(backupID)
	if err != nil {
		return err
	}
	s.logger.Info("restore started", "backup_id", backupID, "filename", b.Filename)

	// Download the archive to a scratch file.
	tmpArchive := filepath.Join(os.TempDir(), "sysync-restore-"+uuid.New().String()+filepath.Ext(b.Filename))
	defer os.Remove(tmpArchive)

	if err := s.store.Get(b.StoragePath, tmpArchive); err != nil {
		return fmt.Errorf("backup %d: %v: %w", backupID, err, ErrDownloadFailed)
	}
	rep.Report(downloadedProgress)

	zipPath := tmpArchive
	if strings.HasSuffix(b.Filename, ".age") {
		if decrypt == nil {
			return fmt.Errorf("backup %d is encrypted and no decryption context was provided", backupID)
		}
		zipPath = strings.TrimSuffix(tmpArchive, ".age")
		defer os.Remove(zipPath)
		if err := s.decryptArchive(decrypt, tmpArchive, zipPath); err != nil {
			return fmt.Errorf("backup %d: decrypting archive: %w", backupID, err)
		}
	}

	scratch, err := os.MkdirTemp("", "sysync-extract-*")
	if err != nil {
		return fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	if err := archive.Extract(zipPath, scratch); err != nil {
		return fmt.Errorf("backup %d: %v: %w", backupID, err, ErrExtractionFailed)
	}
	rep.Report(extractedProgress)

	selected := make(map[string]bool, len(selectedPaths))
	for _, p := range selectedPaths {
		selected[p] = true
	}

	// Apply from the recorded metadata, not the live filesystem.
	settings := b.Metadata.Settings
	for i, st := range settings {
		if len(selected) > 0 && !selected[st.Path] {
			s.logger.Debug("descriptor not selected, skipping", "path", st.Path)
		} else if err := s.applySetting(scratch, st); err != nil {
			s.logger.Error("restore of descriptor failed", "setting", st.Name, "path", st.Path, "error", err)
		}
		rep.Report(extractedProgress + float64(i+1)/float64(len(settings))*applyShare)
	}

	// Files are already on disk; a failed timestamp update is not a failed
	// restore.
	if err := s.catalog.MarkRestored(backupID); err != nil {
		s.logger.Error("marking backup restored failed", "backup_id", backupID, "error", err)
	}

	s.logger.Info("restore complete", "backup_id", backupID)
	return nil
}

// applySetting restores one descriptor from its type partition in the
// extracted tree. A file descriptor stages exactly one file named after the
// source basename, so the partition is treated as a single file only when
// that is all it holds; anything else is a directory descriptor's contents.
// A directory whose sole content is one file named like the directory itself
// remains ambiguous from the layout alone.
func (s *Service) applySetting(scratch string, st model.Setting) error {
	partition := filepath.Join(scratch, st.Type)
	entries, err := os.ReadDir(partition)
	if err != nil {
		s.logger.Warn("restore source missing, skipping descriptor", "setting", st.Name, "partition", st.Type)
		return nil
	}

	base := filepath.Base(st.Path)
	if len(entries) == 1 && entries[0].Name() == base && entries[0].Type().IsRegular() {
		if err := os.MkdirAll(filepath.Dir(st.Path), 0755); err != nil {
			return fmt.Errorf("creating target parent: %w", err)
		}
		if err := removeExisting(st.Path); err != nil {
			return err
		}
		if err := copyFile(filepath.Join(partition, base), st.Path); err != nil {
			return fmt.Errorf("restoring file: %w", err)
		}
		s.logger.Info("restored file", "path", st.Path)
		return nil
	}

	if err := removeExisting(st.Path); err != nil {
		return err
	}
	if err := copyTree(partition, st.Path); err != nil {
		return fmt.Errorf("restoring directory: %w", err)
	}
	s.logger.Info("restored directory", "path", st.Path)
	return nil
}

// removeExisting deletes the target path if present: unlink for files,
// recursive remove for directories.
func removeExisting(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat target: %w", err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing existing directory: %w", err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing existing file: %w", err)
	}
	return nil
}

// copyTree copies a directory tree, creating dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

// decryptArchive decrypts src into dst using the unlocked context.
func (s *Service) decryptArchive(decrypt DecryptionContext, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening encrypted archive: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating decrypted archive: %w", err)
	}

	if err := decrypt.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("finalizing decrypted archive: %w", err)
	}
	return nil
}
