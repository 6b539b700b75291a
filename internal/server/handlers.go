package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"sysync/internal/model"
	"sysync/internal/sysync"
)

const historyLimit = 50

// maxUploadBytes caps multipart memory buffering; larger file parts spill to
// temp files.
const maxUploadBytes = 32 << 20

type backupRequest struct {
	AppName string `json:"app_name"`
}

type restoreRequest struct {
	BackupID      int64    `json:"backup_id"`
	SelectedPaths []string `json:"selected_paths,omitempty"`
	Passphrase    string   `json:"passphrase,omitempty"`
}

// handleListApps returns the configured applications and their settings.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.locator.Applications())
}

// handleBackup accepts a backup trigger and runs the pipeline on a background
// goroutine. The response is the initial progress state; clients poll the
// progress endpoint for completion.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppName == "" {
		writeError(w, http.StatusBadRequest, "app_name is required")
		return
	}

	app, err := s.locator.Find(req.AppName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	rep := s.progress.Start(app.Name)
	go func() {
		opID := s.service.BeginOperation("backup", app.Name)
		err := s.service.CreateBackup(app, rep)
		s.progress.Finish(app.Name, err)
		if err != nil {
			s.service.EndOperation(opID, sysync.OperationError)
			s.logger.Error("backup failed", "app", app.Name, "error", err)
			return
		}
		s.service.EndOperation(opID, sysync.OperationSuccess)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"app_name": app.Name,
		"status":   StatusStarting,
	})
}

// handleBackupProgress reports the current state of an application's backup.
func (s *Server) handleBackupProgress(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app")
	st, ok := s.progress.Get(appName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no backup in progress for %s", appName))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListBackups returns backups grouped by application name. The optional
// app_name query parameter narrows the result to one application.
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	grouped, err := s.service.ListBackups(r.URL.Query().Get("app_name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

// handleRestore runs a restore synchronously and reports the outcome.
// Encrypted archives require the passphrase field.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BackupID == 0 {
		writeError(w, http.StatusBadRequest, "backup_id is required")
		return
	}

	b, err := s.service.GetBackup(req.BackupID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	var decrypt sysync.DecryptionContext
	if strings.HasSuffix(b.Filename, ".age") {
		if s.encryptor == nil {
			writeError(w, http.StatusConflict, "backup is encrypted but encryption is not configured")
			return
		}
		if req.Passphrase == "" {
			writeError(w, http.StatusBadRequest, "passphrase is required for encrypted backups")
			return
		}
		decrypt, err = s.encryptor.Unlock(req.Passphrase)
		if err != nil {
			writeError(w, http.StatusForbidden, "unlocking private key failed")
			return
		}
	}

	opID := s.service.BeginOperation("restore", strconv.FormatInt(req.BackupID, 10))
	if err := s.service.Restore(req.BackupID, req.SelectedPaths, decrypt, sysync.NopReporter{}); err != nil {
		s.service.EndOperation(opID, sysync.OperationError)
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.service.EndOperation(opID, sysync.OperationSuccess)

	writeJSON(w, http.StatusOK, map[string]any{
		"backup_id": req.BackupID,
		"app_name":  b.AppName,
		"status":    "restored",
	})
}

// handleDeleteBackup removes a backup's archive and catalog record.
func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opID := s.service.BeginOperation("delete", strconv.FormatInt(id, 10))
	if err := s.service.DeleteBackup(id); err != nil {
		s.service.EndOperation(opID, sysync.OperationError)
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.service.EndOperation(opID, sysync.OperationSuccess)
	writeJSON(w, http.StatusOK, map[string]any{"backup_id": id, "status": "deleted"})
}

// handleDownloadBackup streams the sealed archive exactly as stored.
func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, b, err := s.service.OpenBackup(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(b.Size, 10))
	if _, err := copyResponse(w, rc); err != nil {
		s.logger.Warn("download interrupted", "backup_id", id, "error", err)
	}
}

// handleUploadBackup imports an externally produced archive. The multipart
// form carries the archive file, the application name and the backup metadata
// as a JSON-encoded field.
func (s *Server) handleUploadBackup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	appName := r.FormValue("app_name")
	if appName == "" {
		writeError(w, http.StatusBadRequest, "app_name is required")
		return
	}

	var meta model.BackupMetadata
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		writeError(w, http.StatusBadRequest, "metadata must be valid JSON")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	opID := s.service.BeginOperation("upload", appName)
	storagePath, err := s.service.ImportBackup(appName, header.Filename, file, &meta, nil)
	if err != nil {
		s.service.EndOperation(opID, sysync.OperationError)
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.service.EndOperation(opID, sysync.OperationSuccess)

	writeJSON(w, http.StatusCreated, map[string]string{
		"app_name":     appName,
		"storage_path": storagePath,
		"status":       "imported",
	})
}

// handleStorageUsage reports total stored bytes and backup count.
func (s *Server) handleStorageUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.service.StorageUsage()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// handleHistory returns the most recent operation audit records.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ops, err := s.service.History(historyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid backup id: %s", raw)
	}
	return id, nil
}
