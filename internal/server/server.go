// Package server exposes the backup service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sysync/internal/locator"
	"sysync/internal/sysync"
)

// Server wires the backup service into an HTTP API.
type Server struct {
	service   *sysync.Service
	locator   locator.Locator
	encryptor sysync.Encryptor // nil when encryption is disabled
	progress  *ProgressRegistry
	logger    sysync.Logger

	httpServer *http.Server
}

// NewServer creates a Server listening on addr. encryptor may be nil.
func NewServer(addr string, service *sysync.Service, loc locator.Locator, encryptor sysync.Encryptor, logger sysync.Logger) *Server {
	s := &Server{
		service:   service,
		locator:   loc,
		encryptor: encryptor,
		progress:  NewProgressRegistry(),
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/apps", s.handleListApps)
	r.Post("/backup", s.handleBackup)
	r.Get("/backup/progress/{app}", s.handleBackupProgress)
	r.Get("/backups", s.handleListBackups)
	r.Post("/restore", s.handleRestore)
	r.Delete("/backup/{id}", s.handleDeleteBackup)
	r.Get("/backup/download/{id}", s.handleDownloadBackup)
	r.Post("/backup/upload", s.handleUploadBackup)
	r.Get("/storage/usage", s.handleStorageUsage)
	r.Get("/history", s.handleHistory)

	return r
}

// ListenAndServe blocks serving requests until Shutdown is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
