// Package report holds the report generation state machine types, the
// concurrent state store polled by the status endpoint, and the XLSX
// renderer that turns parsed scenes into a tabular report.
package report

// Status is the report generation status for one correlation id.
// Transitions are monotone: Queued -> Processing -> Completed | Failed,
// and the terminal statuses are never left.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition occurs from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// State is the point-in-time report generation state for one correlation id.
type State struct {
	Status Status

	// ResultLocator points at the stored report blob. Set only with
	// StatusCompleted.
	ResultLocator string

	// ErrorMessage is the human-readable failure reason. Set only with
	// StatusFailed.
	ErrorMessage string
}

// ContentTypeXLSX is the MIME type of rendered reports.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
