package scan

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zombor/dsr-tracker/internal/posparse"
	"github.com/zombor/dsr-tracker/internal/reconcile"
)

// State is the lifecycle state of the current scan attempt.
type State int

const (
	Idle State = iota
	Recognizing
	Ready
	Rejected
	Failed
	TimedOut
)

var stateNames = map[State]string{
	Idle:        "idle",
	Recognizing: "recognizing",
	Ready:       "ready",
	Rejected:    "rejected",
	Failed:      "failed",
	TimedOut:    "timed_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}

// Terminal reports whether an attempt in this state has finished.
func (s State) Terminal() bool {
	return s == Ready || s == Rejected || s == Failed || s == TimedOut
}

// RejectReason says why a recognized receipt was rejected.
type RejectReason string

const (
	ReasonInsufficientData RejectReason = "insufficient_data"
	ReasonUnbalanced       RejectReason = "unbalanced"
)

// Outcome is a snapshot of a scan attempt.
type Outcome struct {
	Generation uint64             `json:"generation"`
	State      State              `json:"state"`
	Report     *reconcile.Report  `json:"report,omitempty"`
	Reason     RejectReason       `json:"reason,omitempty"`
	Err        error              `json:"-"`
	RawText    string             `json:"raw_text,omitempty"`
	Sections   []posparse.Section `json:"sections,omitempty"`
}

// Ready reports whether the attempt produced a balanced report.
func (o Outcome) Ready() bool {
	return o.State == Ready
}

var (
	// ErrTimeout is the cause of a TimedOut outcome.
	ErrTimeout = errors.New("recognition did not finish before the deadline")
	// ErrSuperseded is returned to waiters whose attempt was replaced by a
	// newer capture.
	ErrSuperseded = errors.New("scan superseded by a newer capture")
	// ErrClosed is returned to waiters of an attempt abandoned by Close.
	ErrClosed = errors.New("scan session closed")
)

// RecognitionError wraps a recognizer failure.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return "recognition failed: " + e.Err.Error()
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// UnbalancedError is the cause of a Rejected outcome whose report does not
// balance.
type UnbalancedError struct {
	Difference decimal.Decimal
	Tolerance  decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("cash difference %s is outside tolerance %s", e.Difference.StringFixed(2), e.Tolerance.StringFixed(2))
}
