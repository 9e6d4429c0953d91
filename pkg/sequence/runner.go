package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/assembly"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/interaction"
	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

// DefaultAckTimeout bounds ack waits for steps that do not set their
// own.
const DefaultAckTimeout = time.Second

// Sender issues the steps. A session.Session satisfies it. Both methods
// allocate the message id the payload builder embeds.
type Sender interface {
	// Submit sends a request and waits for its response.
	Submit(ctx context.Context, svc frame.Service, build func(msgID uint32) []byte, timeout time.Duration) (uint32, *assembly.Message, error)

	// Send sends a request without waiting for a response.
	Send(svc frame.Service, build func(msgID uint32) []byte) (uint32, error)
}

// Config configures a Runner.
type Config struct {
	// Clock paces the steps. Nil means SystemClock.
	Clock Clock

	// AckTimeout bounds ack waits for steps without their own. Zero
	// means DefaultAckTimeout.
	AckTimeout time.Duration

	// Logger receives run state events. Nil disables logging.
	Logger log.Logger

	// ConnectionID tags log events.
	ConnectionID string
}

// Runner executes sequences against a Sender, one run at a time.
type Runner struct {
	sender     Sender
	clock      Clock
	ackTimeout time.Duration
	logger     log.Logger
	connID     string
}

// NewRunner creates a Runner.
func NewRunner(sender Sender, cfg Config) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return &Runner{
		sender:     sender,
		clock:      cfg.Clock,
		ackTimeout: cfg.AckTimeout,
		logger:     cfg.Logger,
		connID:     cfg.ConnectionID,
	}
}

// Run executes seq step by step. Ack timeouts are recorded as soft
// failures and the run continues; a transport error or cancelled
// context aborts the run with a SequenceError wrapping the cause. The
// Summary covers the steps executed in either case.
func (r *Runner) Run(ctx context.Context, seq Sequence) (*Summary, error) {
	summary := &Summary{
		Sequence: seq.Name,
		State:    StateRunning,
		Results:  make([]StepResult, 0, len(seq.Steps)),
	}
	r.logState(StateNotStarted, StateRunning, seq.Name)

	for i, step := range seq.Steps {
		if err := ctx.Err(); err != nil {
			return r.abort(summary, i, step.Name, err)
		}

		result := StepResult{Name: step.Name, Service: step.Service}
		start := r.clock.Now()

		if step.WantAck {
			timeout := step.AckTimeout
			if timeout <= 0 {
				timeout = r.ackTimeout
			}
			msgID, _, err := r.sender.Submit(ctx, step.Service, step.Build, timeout)
			result.MessageID = msgID
			switch {
			case err == nil:
				result.Acked = true
			case errors.Is(err, interaction.ErrRequestTimeout):
				// Ordering matters more than delivery confirmation
				// here: record and continue.
				result.SoftFailure = err
			default:
				return r.abort(summary, i, step.Name, err)
			}
		} else {
			msgID, err := r.sender.Send(step.Service, step.Build)
			result.MessageID = msgID
			if err != nil {
				return r.abort(summary, i, step.Name, err)
			}
		}

		if step.WaitAfter > 0 {
			if err := r.clock.Sleep(ctx, step.WaitAfter); err != nil {
				result.Elapsed = r.clock.Now().Sub(start)
				summary.Results = append(summary.Results, result)
				return r.abort(summary, i, step.Name, err)
			}
		}

		result.Elapsed = r.clock.Now().Sub(start)
		summary.Results = append(summary.Results, result)
	}

	summary.State = StateCompleted
	r.logState(StateRunning, StateCompleted, seq.Name)
	return summary, nil
}

func (r *Runner) abort(summary *Summary, step int, name string, cause error) (*Summary, error) {
	summary.State = StateAborted
	r.logState(StateRunning, StateAborted, name)
	return summary, &SequenceError{
		Sequence: summary.Sequence,
		Step:     step,
		Name:     name,
		Cause:    cause,
	}
}

func (r *Runner) logState(from, to State, detail string) {
	if r.logger == nil {
		return
	}
	r.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySequence,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   detail,
		},
	})
}
