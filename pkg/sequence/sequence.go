package sequence

import (
	"fmt"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
)

// Step is one command in a sequence.
type Step struct {
	// Name identifies the step in summaries and logs.
	Name string

	// Service is the target service id.
	Service frame.Service

	// Build constructs the TLV payload for the message id the session
	// allocates for this step. Nil means an empty payload.
	Build func(msgID uint32) []byte

	// WaitAfter is slept after the step, whether or not it was acked.
	WaitAfter time.Duration

	// WantAck makes the step wait for a response. A missing ack is a
	// soft failure; the run continues.
	WantAck bool

	// AckTimeout bounds the ack wait. Zero uses the runner default.
	AckTimeout time.Duration
}

// Sequence is an ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// State of a sequence run.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Name    string
	Service frame.Service

	// MessageID is the id the session allocated for the step.
	MessageID uint32

	// Acked is true when the step waited for an ack and got one.
	Acked bool

	// SoftFailure is the ack timeout, if any. The run continued.
	SoftFailure error

	Elapsed time.Duration
}

// Summary is the outcome of a sequence run.
type Summary struct {
	Sequence string
	State    State
	Results  []StepResult
}

// SoftFailures counts steps that missed their ack.
func (s *Summary) SoftFailures() int {
	n := 0
	for _, r := range s.Results {
		if r.SoftFailure != nil {
			n++
		}
	}
	return n
}

// SequenceError reports a run aborted by an unrecoverable error,
// identifying the step reached.
type SequenceError struct {
	Sequence string
	Step     int
	Name     string
	Cause    error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence %q aborted at step %d (%s): %v",
		e.Sequence, e.Step, e.Name, e.Cause)
}

func (e *SequenceError) Unwrap() error { return e.Cause }
