package report

import (
	"time"

	"github.com/zombor/dsr-tracker/internal/posparse"
	"github.com/zombor/dsr-tracker/internal/reconcile"
	"github.com/zombor/dsr-tracker/internal/scan"
)

// Record is a persisted scan: the reconciled report when there is one, the
// recognized text and sections for diagnosis, and the uploaded image.
type Record struct {
	ID          string             `json:"id"`
	Generation  uint64             `json:"generation"`
	State       scan.State         `json:"state"`
	Reason      scan.RejectReason  `json:"reason,omitempty"`
	Error       string             `json:"error,omitempty"`
	Report      *reconcile.Report  `json:"report,omitempty"`
	RawText     string             `json:"raw_text"`
	Sections    []posparse.Section `json:"sections"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	CreatedAt   time.Time          `json:"created_at"`
}

// newRecord captures a terminal outcome.
func newRecord(id string, out scan.Outcome, now time.Time) *Record {
	r := &Record{
		ID:         id,
		Generation: out.Generation,
		State:      out.State,
		Reason:     out.Reason,
		Report:     out.Report,
		RawText:    out.RawText,
		Sections:   out.Sections,
		CreatedAt:  now,
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	return r
}
