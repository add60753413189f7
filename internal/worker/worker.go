// Package worker implements the background report generation pipeline.
// It is the sole owner of report state transitions: queued states seeded
// at ingress move to processing when a message is delivered, and to a
// terminal completed or failed state when the pipeline finishes.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Oxord/SceneFlow/internal/event"
	"github.com/Oxord/SceneFlow/internal/observability"
	"github.com/Oxord/SceneFlow/internal/report"
	"github.com/Oxord/SceneFlow/internal/scene"
	"github.com/Oxord/SceneFlow/internal/storage"
)

// Worker consumes processed-document events and runs the
// download -> parse -> render -> upload -> finalize pipeline.
type Worker struct {
	storage  storage.ObjectStorage
	store    *report.Store
	renderer *report.Renderer
	bucket   string
	baseURL  string
	logger   observability.Logger
	metrics  observability.Metrics
}

// New creates a report generation worker.
func New(
	objectStorage storage.ObjectStorage,
	store *report.Store,
	renderer *report.Renderer,
	bucket string,
	baseURL string,
	logger observability.Logger,
	metrics observability.Metrics,
) *Worker {
	return &Worker{
		storage:  objectStorage,
		store:    store,
		renderer: renderer,
		bucket:   bucket,
		baseURL:  baseURL,
		logger:   logger.WithFields(observability.Fields{"component": "worker"}),
		metrics:  metrics,
	}
}

// Handle processes one delivery body. A body that cannot be decoded, or
// that carries no correlation id, is returned as an error so the
// consumer rejects it without requeue; there is no state to attribute
// the failure to. Everything past that point is handled locally: the
// pipeline outcome lands in the state store as completed or failed, and
// Handle returns nil so the delivery is acknowledged.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var ev event.ProcessedDocumentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		w.metrics.RecordError("report_pipeline", "invalid_payload")
		return fmt.Errorf("decode processed-document event: %w", err)
	}

	if ev.CorrelationID == "" {
		w.metrics.RecordError("report_pipeline", "missing_correlation_id")
		return errors.New("processed-document event is missing a correlation id")
	}

	w.process(ctx, ev)
	return nil
}

// process runs the pipeline for one event and records the terminal
// state. A redelivered event for an already finished report is dropped
// so terminal states are never left; an in-flight rerun is safe because
// every state write is a last-write-wins overwrite.
func (w *Worker) process(ctx context.Context, ev event.ProcessedDocumentEvent) {
	if st, ok := w.store.Get(ev.CorrelationID); ok && st.Status.Terminal() {
		w.logger.Info(ctx, "skipping redelivered event for finished report", observability.Fields{
			"correlation_id": ev.CorrelationID,
			"status":         st.Status,
		})
		return
	}

	start := time.Now()
	w.metrics.StartOperation("report_pipeline")
	defer w.metrics.EndOperation("report_pipeline")
	defer func() {
		w.metrics.RecordDuration("report_pipeline", time.Since(start).Seconds())
	}()

	logger := w.logger.WithFields(observability.Fields{"correlation_id": ev.CorrelationID})
	logger.Info(ctx, "starting report generation", observability.Fields{
		"source_locator": ev.SourceLocator,
	})

	w.store.Set(ev.CorrelationID, report.State{Status: report.StatusProcessing})

	resultLocator, err := w.run(ctx, ev, logger)
	if err != nil {
		w.metrics.RecordError("report_pipeline", classifyError(err))
		logger.Error(ctx, "report generation failed", err, nil)
		w.store.Set(ev.CorrelationID, report.State{
			Status:       report.StatusFailed,
			ErrorMessage: err.Error(),
		})
		return
	}

	w.store.Set(ev.CorrelationID, report.State{
		Status:        report.StatusCompleted,
		ResultLocator: resultLocator,
	})

	w.metrics.RecordSuccess("report_pipeline")
	logger.Info(ctx, "report generated", observability.Fields{
		"result_locator": resultLocator,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
}

// run executes the pipeline steps and returns the result locator.
func (w *Worker) run(ctx context.Context, ev event.ProcessedDocumentEvent, logger observability.Logger) (string, error) {
	sourceKey, err := storage.ExtractKey(ev.SourceLocator, w.bucket)
	if err != nil {
		return "", err
	}

	rc, err := w.storage.Get(ctx, sourceKey)
	if err != nil {
		return "", fmt.Errorf("fetch source document %q: %w", sourceKey, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read source document %q: %w", sourceKey, err)
	}

	scenes, err := scene.Parse(data)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "source document parsed", observability.Fields{"scenes": len(scenes)})

	blob, err := w.renderer.Render(scenes)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	w.metrics.RecordFileSize("xlsx", int64(len(blob)))

	resultKey := ev.CorrelationID + "_report.xlsx"
	if err := w.storage.Put(ctx, resultKey, bytes.NewReader(blob), report.ContentTypeXLSX); err != nil {
		return "", fmt.Errorf("store report %q: %w", resultKey, err)
	}

	return storage.BuildLocator(w.baseURL, w.bucket, resultKey), nil
}

// classifyError buckets pipeline failures for metrics.
func classifyError(err error) string {
	var locErr *storage.LocatorFormatError
	var parseErr *scene.ParseError
	switch {
	case errors.As(err, &locErr):
		return "locator_format"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, storage.ErrObjectNotFound):
		return "source_missing"
	default:
		return "storage"
	}
}
