package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Oxord/SceneFlow/internal/event"
	"github.com/Oxord/SceneFlow/internal/observability"
	"github.com/Oxord/SceneFlow/internal/report"
	"github.com/Oxord/SceneFlow/internal/storage"
)

const (
	testBucket  = "docs"
	testBaseURL = "https://storage.example.com"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, exchange, routingKey string, ev any) error {
	args := m.Called(ctx, exchange, routingKey, ev)
	return args.Error(0)
}

type fixture struct {
	server    *Server
	storage   *storage.FilesystemStorage
	store     *report.Store
	publisher *mockPublisher
	mux       *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs, err := storage.NewFilesystemStorage(t.TempDir(), observability.NewNopLogger())
	require.NoError(t, err)

	store := report.NewStore()
	publisher := &mockPublisher{}

	srv := New(fs, store, publisher, Config{
		Bucket:           testBucket,
		BaseURL:          testBaseURL,
		UploadExchange:   "DocumentUploaded",
		UploadRoutingKey: "uploads",
	}, observability.NewNopLogger(), observability.NewNopMetrics())

	mux := http.NewServeMux()
	srv.Register(mux)

	return &fixture{server: srv, storage: fs, store: store, publisher: publisher, mux: mux}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleUpload(t *testing.T) {
	t.Run("accepts document and seeds queued state", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.On("Publish", mock.Anything, "DocumentUploaded", "uploads", mock.Anything).Return(nil)

		body, contentType := multipartBody(t, "document", "script.pdf", "screenplay bytes")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		correlationID := decodeJSON(t, rec)["correlationId"]
		require.NotEmpty(t, correlationID)

		state, ok := f.store.Get(correlationID)
		require.True(t, ok)
		assert.Equal(t, report.StatusQueued, state.Status)

		f.publisher.AssertCalled(t, "Publish", mock.Anything, "DocumentUploaded", "uploads",
			mock.MatchedBy(func(ev event.UploadedDocumentEvent) bool {
				return ev.CorrelationID == correlationID &&
					ev.Name == "script.pdf" &&
					ev.Size == int64(len("screenplay bytes")) &&
					strings.HasPrefix(ev.SourceLocator, testBaseURL+"/"+testBucket+"/")
			}))
	})

	t.Run("stored object is retrievable via the event locator", func(t *testing.T) {
		f := newFixture(t)
		var published event.UploadedDocumentEvent
		f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				published = args.Get(3).(event.UploadedDocumentEvent)
			}).Return(nil)

		body, contentType := multipartBody(t, "document", "script.pdf", "screenplay bytes")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		key, err := storage.ExtractKey(published.SourceLocator, testBucket)
		require.NoError(t, err)

		rc, err := f.storage.Get(context.Background(), key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "screenplay bytes", string(data))
	})

	t.Run("filename whitespace is trimmed before the key is minted", func(t *testing.T) {
		f := newFixture(t)
		var published event.UploadedDocumentEvent
		f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				published = args.Get(3).(event.UploadedDocumentEvent)
			}).Return(nil)

		body, contentType := multipartBody(t, "document", "  script.pdf ", "bytes")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		assert.Equal(t, "script.pdf", published.Name)

		key, err := storage.ExtractKey(published.SourceLocator, testBucket)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(key, "_script.pdf"), "key %q keeps filename whitespace", key)

		rc, err := f.storage.Get(context.Background(), key)
		require.NoError(t, err)
		rc.Close()
	})

	t.Run("missing document field", func(t *testing.T) {
		f := newFixture(t)

		body, contentType := multipartBody(t, "attachment", "script.pdf", "bytes")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty document", func(t *testing.T) {
		f := newFixture(t)

		body, contentType := multipartBody(t, "document", "script.pdf", "")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader("raw"))
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("publish failure", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("broker down"))

		body, contentType := multipartBody(t, "document", "script.pdf", "bytes")
		req := httptest.NewRequest(http.MethodPost, "/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodDelete, "/reports", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Run("missing correlation id parameter", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown correlation id", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/reports?correlationId=nope", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("pending statuses report as JSON", func(t *testing.T) {
		f := newFixture(t)
		f.store.Set("q1", report.State{Status: report.StatusQueued})
		f.store.Set("p1", report.State{Status: report.StatusProcessing})

		for id, want := range map[string]string{"q1": "queued", "p1": "processing"} {
			req := httptest.NewRequest(http.MethodGet, "/reports?correlationId="+id, nil)
			rec := httptest.NewRecorder()

			f.mux.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, want, decodeJSON(t, rec)["status"])
		}
	})

	t.Run("failed report carries the error message", func(t *testing.T) {
		f := newFixture(t)
		f.store.Set("f1", report.State{Status: report.StatusFailed, ErrorMessage: "parse scenes: no scene records"})

		req := httptest.NewRequest(http.MethodGet, "/reports?correlationId=f1", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, "failed", body["status"])
		assert.Equal(t, "parse scenes: no scene records", body["error"])
	})

	t.Run("completed report streams stored bytes", func(t *testing.T) {
		f := newFixture(t)

		content := "xlsx-bytes"
		require.NoError(t, f.storage.Put(context.Background(), "c1_report.xlsx",
			strings.NewReader(content), report.ContentTypeXLSX))
		f.store.Set("c1-abcdef12", report.State{
			Status:        report.StatusCompleted,
			ResultLocator: storage.BuildLocator(testBaseURL, testBucket, "c1_report.xlsx"),
		})

		req := httptest.NewRequest(http.MethodGet, "/reports?correlationId=c1-abcdef12", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, content, rec.Body.String())
		assert.Equal(t, report.ContentTypeXLSX, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "scene_report_c1-abcde.xlsx")
	})

	t.Run("completed without locator is inconsistent", func(t *testing.T) {
		f := newFixture(t)
		f.store.Set("c2", report.State{Status: report.StatusCompleted})

		req := httptest.NewRequest(http.MethodGet, "/reports?correlationId=c2", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeJSON(t, rec)["error"], "inconsistent")
	})

	t.Run("completed with missing object is unavailable not not-found", func(t *testing.T) {
		f := newFixture(t)
		f.store.Set("c3", report.State{
			Status:        report.StatusCompleted,
			ResultLocator: storage.BuildLocator(testBaseURL, testBucket, "gone_report.xlsx"),
		})

		req := httptest.NewRequest(http.MethodGet, "/reports?correlationId=c3", nil)
		rec := httptest.NewRecorder()

		f.mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decodeJSON(t, rec)["error"], "unavailable")
	})
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}
