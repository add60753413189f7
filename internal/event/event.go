// Package event defines the JSON-encoded messages exchanged over the
// broker. The correlation id inside each event is the sole join key
// between an upload and its eventual report.
package event

import "time"

// UploadedDocumentEvent is published by the ingress handler after a
// document has been stored and its report state seeded to queued.
type UploadedDocumentEvent struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SourceLocator string    `json:"sourceLocator"`
	UploadedAt    time.Time `json:"uploadedAt"`
	CorrelationID string    `json:"correlationId"`
}

// ProcessedDocumentEvent is consumed by the background worker. It is
// produced by the upstream processing stage once a document has been
// segmented into scenes and stored back.
type ProcessedDocumentEvent struct {
	SourceLocator string `json:"sourceLocator"`
	CorrelationID string `json:"correlationId"`
}
