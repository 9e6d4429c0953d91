package interaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/assembly"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
)

// DefaultTimeout bounds how long a request waits for its response. The
// glasses normally answer within one or two connection intervals.
const DefaultTimeout = 5 * time.Second

// Correlator errors.
var (
	ErrRequestTimeout = errors.New("request timed out")
	ErrDuplicateKey   = errors.New("message id already pending")
	ErrConnectionLost = errors.New("connection lost")
	ErrClosed         = errors.New("correlator is closed")
)

// Matcher decides whether an incoming message answers a pending request.
// The message id has already been matched when it runs.
type Matcher func(*assembly.Message) bool

// ResponseTo matches responses to a request sent on svc: same service
// family, answered on a plain (non-request) minor.
func ResponseTo(svc frame.Service) Matcher {
	return func(msg *assembly.Message) bool {
		return msg.Service.Major == svc.Major && !msg.Service.IsRequest()
	}
}

// Config configures a Correlator.
type Config struct {
	// Timeout bounds each wait. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Correlator routes incoming messages to pending request waiters.
// Safe for concurrent use.
type Correlator struct {
	mu      sync.RWMutex
	pending map[uint32]*Pending
	timeout time.Duration
	closed  bool
}

// Pending is one claimed message id awaiting its response.
type Pending struct {
	c     *Correlator
	id    uint32
	match Matcher
	ch    chan *assembly.Message
	err   error
}

// NewCorrelator creates a Correlator.
func NewCorrelator(cfg Config) *Correlator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Correlator{
		pending: make(map[uint32]*Pending),
		timeout: cfg.Timeout,
	}
}

// Expect claims msgID for a request sent on svc. Call it before writing
// the request so a fast response cannot slip past the waiter.
func (c *Correlator) Expect(svc frame.Service, msgID uint32) (*Pending, error) {
	return c.ExpectMatched(msgID, ResponseTo(svc))
}

// ExpectMatched claims msgID with a custom response matcher.
func (c *Correlator) ExpectMatched(msgID uint32, match Matcher) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if _, exists := c.pending[msgID]; exists {
		return nil, ErrDuplicateKey
	}

	p := &Pending{
		c:     c,
		id:    msgID,
		match: match,
		ch:    make(chan *assembly.Message, 1),
	}
	c.pending[msgID] = p
	return p, nil
}

// Wait blocks until the response arrives, the correlator timeout
// elapses, or ctx is done. It releases the claim in all cases.
func (p *Pending) Wait(ctx context.Context) (*assembly.Message, error) {
	return p.WaitTimeout(ctx, 0)
}

// WaitTimeout is Wait with a per-request timeout. Zero or negative
// falls back to the correlator timeout.
func (p *Pending) WaitTimeout(ctx context.Context, timeout time.Duration) (*assembly.Message, error) {
	defer p.Cancel()

	if timeout <= 0 {
		timeout = p.c.timeout
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, ErrRequestTimeout
	case msg, ok := <-p.ch:
		if !ok {
			return nil, p.err
		}
		return msg, nil
	}
}

// Cancel releases the claim without waiting. Safe to call after Wait.
func (p *Pending) Cancel() {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.c.pending[p.id] == p {
		delete(p.c.pending, p.id)
	}
}

// Dispatch offers an incoming message to the pending waiters. It reports
// whether a waiter consumed it; unconsumed messages are unsolicited
// notifications.
func (c *Correlator) Dispatch(msg *assembly.Message) bool {
	id, ok := msg.MessageID()
	if !ok {
		return false
	}

	// The send happens under the read lock so CancelAll cannot close the
	// channel in between. The channel is buffered, the send never blocks.
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, exists := c.pending[id]
	if !exists || (p.match != nil && !p.match(msg)) {
		return false
	}

	select {
	case p.ch <- msg:
		return true
	default:
		// Already answered.
		return false
	}
}

// CancelAll fails every pending wait with cause, e.g. ErrConnectionLost
// on disconnect. The correlator stays usable.
func (c *Correlator) CancelAll(cause error) {
	if cause == nil {
		cause = ErrConnectionLost
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		p.err = cause
		close(p.ch)
		delete(c.pending, id)
	}
}

// Close fails every pending wait and rejects further claims.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, p := range c.pending {
		p.err = ErrClosed
		close(p.ch)
		delete(c.pending, id)
	}
}
