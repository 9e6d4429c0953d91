package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

// Manager errors.
var (
	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("connection manager closed")

	// ErrAlreadyConnected is returned by Connect while the link is up.
	ErrAlreadyConnected = errors.New("already connected")
)

// DefaultAttemptTimeout bounds one recovery attempt. An attempt covers
// the scan, the link setup, the characteristic subscriptions and the
// pairing handshake.
const DefaultAttemptTimeout = 20 * time.Second

// State is the link lifecycle state.
type State uint8

const (
	// StateDisconnected means no link and no recovery in progress.
	StateDisconnected State = iota

	// StateConnecting means a caller-initiated attempt is in progress.
	StateConnecting

	// StateConnected means the link is up and paired.
	StateConnected

	// StateReconnecting means the link dropped and recovery is running.
	StateReconnecting

	// StateClosed means the manager has been shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc performs one complete link attempt: scan for the glasses,
// connect, subscribe the notify characteristics and run the pairing
// handshake. It is used for caller-initiated connects and for recovery.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// Connect performs one link attempt. Required.
	Connect ConnectFunc

	// Backoff shapes the recovery ramp. Zero fields take the defaults.
	Backoff BackoffConfig

	// AttemptTimeout bounds one recovery attempt. Zero means
	// DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// Logger receives state change and recovery failure events. Nil
	// disables logging.
	Logger log.Logger

	// ConnectionID tags logged events.
	ConnectionID string
}

// Manager supervises the BLE link. The glasses drop it whenever they
// fold shut or leave radio range, so the manager treats link loss as
// routine: LinkLost starts backed-off recovery, while Disconnect and
// Close are deliberate and stop it.
//
// The recovery goroutine starts with the manager and runs until Close.
type Manager struct {
	cfg     Config
	backoff *Backoff

	mu    sync.RWMutex
	state State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	kick   chan struct{}

	cbMu           sync.Mutex
	onStateChange  func(old, new State)
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a Manager and starts its recovery goroutine.
// Call Close when done.
func NewManager(cfg Config) *Manager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		backoff: NewBackoff(cfg.Backoff),
		state:   StateDisconnected,
		ctx:     ctx,
		cancel:  cancel,
		kick:    make(chan struct{}, 1),
	}

	m.wg.Add(1)
	go m.recoverLoop()
	return m
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connect runs one caller-initiated link attempt.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	old := m.state
	m.state = StateConnecting
	m.mu.Unlock()
	m.announce(old, StateConnecting, "connect requested")

	if err := m.cfg.Connect(ctx); err != nil {
		m.setState(StateDisconnected, err.Error())
		return err
	}

	m.backoff.Reset()
	m.setState(StateConnected, "link up")
	return nil
}

// Disconnect records a deliberate teardown and stops any recovery in
// progress. Call it before closing the transport so the resulting
// LinkLost is ignored.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateDisconnected
	m.mu.Unlock()
	m.announce(old, StateDisconnected, "disconnect requested")
}

// LinkLost reports that the transport dropped. Recovery starts unless
// the loss follows a deliberate Disconnect or Close.
func (m *Manager) LinkLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.mu.Unlock()
	m.announce(StateConnected, StateReconnecting, "link lost")

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Close shuts the manager down and waits for the recovery goroutine.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateClosed
	m.mu.Unlock()
	m.announce(old, StateClosed, "manager closed")

	m.cancel()
	m.wg.Wait()
}

// OnStateChange sets a callback for state changes. The callback runs
// on the manager's goroutines and must not call back into the manager.
func (m *Manager) OnStateChange(fn func(old, new State)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onStateChange = fn
}

// OnReconnecting sets a callback announcing each recovery attempt and
// the delay before it.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onReconnecting = fn
}

// recoverLoop waits for LinkLost kicks and drives recovery.
func (m *Manager) recoverLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.kick:
			m.recover()
		}
	}
}

// recover retries the link until it is up again or a deliberate
// Disconnect or Close intervenes.
func (m *Manager) recover() {
	for m.State() == StateReconnecting {
		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		m.cbMu.Lock()
		fn := m.onReconnecting
		m.cbMu.Unlock()
		if fn != nil {
			fn(attempt, delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}
		if m.State() != StateReconnecting {
			return
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.AttemptTimeout)
		err := m.cfg.Connect(ctx)
		cancel()
		if err != nil {
			m.logAttemptFailed(attempt, err)
			continue
		}

		m.backoff.Reset()
		m.setState(StateConnected, "link recovered")
		return
	}
}

// setState moves to a new state unless the manager is closed.
func (m *Manager) setState(to State, reason string) {
	m.mu.Lock()
	if m.state == StateClosed || m.state == to {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = to
	m.mu.Unlock()
	m.announce(old, to, reason)
}

// announce reports a state transition to the callback and the logger.
func (m *Manager) announce(old, new State, reason string) {
	m.cbMu.Lock()
	fn := m.onStateChange
	m.cbMu.Unlock()
	if fn != nil {
		fn(old, new)
	}

	if m.cfg.Logger == nil {
		return
	}
	m.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: m.cfg.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old.String(),
			NewState: new.String(),
			Reason:   reason,
		},
	})
}

func (m *Manager) logAttemptFailed(attempt int, err error) {
	if m.cfg.Logger == nil {
		return
	}
	m.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: m.cfg.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: fmt.Sprintf("recovery attempt %d", attempt),
		},
	})
}
