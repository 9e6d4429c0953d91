package assembly

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

// DefaultTimeout is how long an unfinished fragment run may stall before
// it is discarded. Fragments of one message normally arrive within a few
// connection intervals.
const DefaultTimeout = 500 * time.Millisecond

// Reassembly errors. Both mean the offending frame (and any unfinished
// run it belonged to) was discarded; the connection stays usable.
var (
	// ErrOrphanFragment indicates a continuation fragment with no run in
	// progress.
	ErrOrphanFragment = errors.New("continuation fragment without assembly")

	// ErrFragmentOutOfOrder indicates a continuation fragment that does
	// not continue the run in progress.
	ErrFragmentOutOfOrder = errors.New("fragment out of order")
)

// Config configures a Reassembler.
type Config struct {
	// Timeout discards a stalled fragment run. Zero means DefaultTimeout.
	Timeout time.Duration

	// Logger receives assembly state events. Nil disables logging.
	Logger log.Logger

	// ConnectionID tags log events.
	ConnectionID string

	// Channel tags log events ("control" or "display").
	Channel string
}

// Reassembler collects one fragment run at a time. Safe for concurrent
// use, though frames of one channel arrive sequentially in practice.
type Reassembler struct {
	mu  sync.Mutex
	cur *run

	timeout time.Duration
	logger  log.Logger
	connID  string
	channel string
}

// run is an in-progress fragment run.
type run struct {
	service frame.Service
	typ     byte
	seq     uint8
	total   uint8
	next    uint8
	body    []byte
	timer   *time.Timer
}

// New creates a Reassembler.
func New(cfg Config) *Reassembler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Reassembler{
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		connID:  cfg.ConnectionID,
		channel: cfg.Channel,
	}
}

// Feed consumes one decoded frame. It returns the assembled message when
// f completes a logical message, nil while a run is still collecting.
//
// A first fragment aborts any unfinished run. Continuation fragments
// must continue the current run exactly (same seq and total, next index);
// anything else discards the run and returns an error. Errors are
// recoverable: the reassembler is idle again afterwards.
func (r *Reassembler) Feed(f *frame.Frame) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.First() {
		if r.cur != nil {
			r.discardLocked("superseded by new first fragment")
		}

		svc, _ := f.Service()
		if f.FragTotal == 1 {
			return &Message{Service: svc, Seq: f.Seq, Type: f.Type, Body: f.Body}, nil
		}

		cur := &run{
			service: svc,
			typ:     f.Type,
			seq:     f.Seq,
			total:   f.FragTotal,
			next:    2,
			body:    append([]byte(nil), f.Body...),
		}
		cur.timer = time.AfterFunc(r.timeout, func() { r.expire(cur) })
		r.cur = cur
		return nil, nil
	}

	// Continuation fragment.
	if r.cur == nil {
		return nil, fmt.Errorf("%w: fragment %d/%d seq 0x%02X",
			ErrOrphanFragment, f.FragIndex, f.FragTotal, f.Seq)
	}
	if f.Seq != r.cur.seq || f.FragTotal != r.cur.total || f.FragIndex != r.cur.next {
		err := fmt.Errorf("%w: got %d/%d seq 0x%02X, expected %d/%d seq 0x%02X",
			ErrFragmentOutOfOrder, f.FragIndex, f.FragTotal, f.Seq,
			r.cur.next, r.cur.total, r.cur.seq)
		r.discardLocked("out-of-order fragment")
		return nil, err
	}

	r.cur.body = append(r.cur.body, f.Body...)
	if f.FragIndex < r.cur.total {
		r.cur.next++
		return nil, nil
	}

	// Run complete.
	cur := r.cur
	cur.timer.Stop()
	r.cur = nil
	return &Message{Service: cur.service, Seq: cur.seq, Type: cur.typ, Body: cur.body}, nil
}

// Reset discards any unfinished run, e.g. on disconnect.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		r.discardLocked("reset")
	}
}

// expire is the timeout callback for a stalled run.
func (r *Reassembler) expire(cur *run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The run may have completed or been superseded since the timer fired.
	if r.cur != cur {
		return
	}
	r.discardLocked("assembly timeout")
}

// discardLocked drops the current run and logs the incomplete assembly.
// Caller holds r.mu.
func (r *Reassembler) discardLocked(reason string) {
	cur := r.cur
	r.cur = nil
	cur.timer.Stop()

	if r.logger != nil {
		r.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: r.connID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerAssembly,
			Category:     log.CategoryState,
			Channel:      r.channel,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityAssembly,
				OldState: "collecting",
				NewState: "discarded",
				Reason: fmt.Sprintf("%s: %s seq 0x%02X, %d/%d fragments",
					reason, cur.service, cur.seq, cur.next-1, cur.total),
			},
		})
	}
}
