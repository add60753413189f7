// Package server implements the HTTP surface: document ingress and
// report status queries. Both handlers are thin over the shared state
// store; all heavy lifting happens in the background worker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Oxord/SceneFlow/internal/event"
	"github.com/Oxord/SceneFlow/internal/observability"
	"github.com/Oxord/SceneFlow/internal/queue"
	"github.com/Oxord/SceneFlow/internal/report"
	"github.com/Oxord/SceneFlow/internal/storage"
)

// documentField is the multipart form field carrying the uploaded document.
const documentField = "document"

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxUploadMemory = 32 << 20

// Config carries the locator and routing settings the handlers need.
type Config struct {
	Bucket           string
	BaseURL          string
	UploadExchange   string
	UploadRoutingKey string
}

// Server handles document ingress and status queries.
type Server struct {
	storage   storage.ObjectStorage
	store     *report.Store
	publisher queue.Publisher
	cfg       Config
	logger    observability.Logger
	metrics   observability.Metrics
}

// New creates the HTTP handler set.
func New(
	objectStorage storage.ObjectStorage,
	store *report.Store,
	publisher queue.Publisher,
	cfg Config,
	logger observability.Logger,
	metrics observability.Metrics,
) *Server {
	return &Server{
		storage:   objectStorage,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.WithFields(observability.Fields{"component": "server"}),
		metrics:   metrics,
	}
}

// Register mounts the handlers on the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleStatus(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a document, stores it, seeds report state to
// queued, and publishes an uploaded-document event. The state is seeded
// before publishing so that a status query arriving immediately after
// the 202 never observes an unknown correlation id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("upload", time.Since(start).Seconds())
	}()

	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.metrics.RecordError("upload", "bad_request")
		writeError(w, http.StatusBadRequest, "no document uploaded")
		return
	}

	file, header, err := r.FormFile(documentField)
	if err != nil {
		s.metrics.RecordError("upload", "bad_request")
		writeError(w, http.StatusBadRequest, "no document uploaded")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		s.metrics.RecordError("upload", "empty_document")
		writeError(w, http.StatusBadRequest, "uploaded document is empty")
		return
	}

	// Stray whitespace in a client filename would otherwise end up in
	// the object key and survive the locator round trip.
	filename := strings.TrimSpace(filepath.Base(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := uuid.NewString() + "_" + filename
	if err := s.storage.Put(ctx, key, file, contentType); err != nil {
		s.metrics.RecordError("upload", "storage")
		s.logger.Error(ctx, "failed to store uploaded document", err, observability.Fields{"key": key})
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	correlationID := uuid.NewString()
	locator := storage.BuildLocator(s.cfg.BaseURL, s.cfg.Bucket, key)

	// Seed state before publishing.
	s.store.Set(correlationID, report.State{Status: report.StatusQueued})

	ev := event.UploadedDocumentEvent{
		Name:          filename,
		Size:          header.Size,
		SourceLocator: locator,
		UploadedAt:    time.Now().UTC(),
		CorrelationID: correlationID,
	}
	if err := s.publisher.Publish(ctx, s.cfg.UploadExchange, s.cfg.UploadRoutingKey, ev); err != nil {
		s.metrics.RecordError("upload", "queue")
		s.logger.Error(ctx, "failed to publish uploaded-document event", err, observability.Fields{
			"correlation_id": correlationID,
		})
		writeError(w, http.StatusInternalServerError, "failed to enqueue document")
		return
	}

	s.metrics.RecordSuccess("upload")
	s.metrics.RecordFileSize("upload", header.Size)
	s.logger.Info(ctx, "document accepted", observability.Fields{
		"correlation_id": correlationID,
		"name":           filename,
		"size":           header.Size,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"correlationId": correlationID})
}

// handleStatus reads report state by correlation id and, once the
// report is completed, streams the stored bytes back.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	correlationID := r.URL.Query().Get("correlationId")
	if correlationID == "" {
		writeError(w, http.StatusBadRequest, "correlationId query parameter is required")
		return
	}

	state, ok := s.store.Get(correlationID)
	if !ok {
		writeError(w, http.StatusNotFound, "report with this correlation id was not found")
		return
	}

	switch state.Status {
	case report.StatusQueued, report.StatusProcessing:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(state.Status)})

	case report.StatusFailed:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": string(report.StatusFailed),
			"error":  state.ErrorMessage,
		})

	case report.StatusCompleted:
		s.streamReport(ctx, w, correlationID, state)

	default:
		s.logger.Error(ctx, "unknown report status", nil, observability.Fields{
			"correlation_id": correlationID,
			"status":         state.Status,
		})
		writeError(w, http.StatusInternalServerError, "unknown report status")
	}
}

// streamReport resolves the stored result locator back into a storage
// key and streams the report. A completed state without a usable locator
// is a data-integrity signal and surfaces as an inconsistency, distinct
// from a backend fetch failure.
func (s *Server) streamReport(ctx context.Context, w http.ResponseWriter, correlationID string, state report.State) {
	if state.ResultLocator == "" {
		s.logger.Warn(ctx, "completed report has no result locator", observability.Fields{
			"correlation_id": correlationID,
		})
		writeError(w, http.StatusInternalServerError, "report state is inconsistent")
		return
	}

	key, err := storage.ExtractKey(state.ResultLocator, s.cfg.Bucket)
	if err != nil {
		s.logger.Error(ctx, "completed report locator cannot be resolved", err, observability.Fields{
			"correlation_id": correlationID,
		})
		writeError(w, http.StatusInternalServerError, "report state is inconsistent")
		return
	}

	rc, err := s.storage.Get(ctx, key)
	if err != nil {
		s.metrics.RecordError("status", "fetch")
		s.logger.Error(ctx, "failed to fetch completed report", err, observability.Fields{
			"correlation_id": correlationID,
			"key":            key,
			"missing":        errors.Is(err, storage.ErrObjectNotFound),
		})
		writeError(w, http.StatusInternalServerError, "report is currently unavailable")
		return
	}
	defer rc.Close()

	// Client-facing filename, distinct from the internal storage key.
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadFilename(correlationID)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error(ctx, "failed to stream report", err, observability.Fields{
			"correlation_id": correlationID,
		})
	}
}

func downloadFilename(correlationID string) string {
	short := correlationID
	if len(short) > 8 {
		short = short[:8]
	}
	return "scene_report_" + short + ".xlsx"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
