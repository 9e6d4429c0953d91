package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

// fastBackoff keeps recovery tests in the millisecond range.
var fastBackoff = BackoffConfig{
	Initial: time.Millisecond,
	Max:     2 * time.Millisecond,
	Jitter:  -1,
}

// captureLogger records protocol events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(ev log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// transitions returns the logged state changes as "OLD->NEW" strings.
func (l *captureLogger) transitions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Category == log.CategoryState && ev.StateChange != nil {
			out = append(out, fmt.Sprintf("%s->%s", ev.StateChange.OldState, ev.StateChange.NewState))
		}
	}
	return out
}

func (l *captureLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Category == log.CategoryError {
			n++
		}
	}
	return n
}

func TestConnect(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, m.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnectFailure(t *testing.T) {
	linkErr := errors.New("no glasses in range")
	m := NewManager(Config{
		Connect: func(ctx context.Context) error { return linkErr },
		Backoff: fastBackoff,
	})
	defer m.Close()

	assert.ErrorIs(t, m.Connect(context.Background()), linkErr)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestConnectAfterClose(t *testing.T) {
	m := NewManager(Config{
		Connect: func(ctx context.Context) error { return nil },
		Backoff: fastBackoff,
	})
	m.Close()

	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Connect(context.Background()), ErrClosed)
}

func TestLinkLostRecovers(t *testing.T) {
	// The first attempt brings the link up; after the loss, two
	// attempts fail before the glasses reappear.
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			switch calls.Add(1) {
			case 2, 3:
				return errors.New("still out of range")
			default:
				return nil
			}
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	recovered := make(chan struct{})
	m.OnStateChange(func(old, new State) {
		if old == StateReconnecting && new == StateConnected {
			close(recovered)
		}
	})

	require.NoError(t, m.Connect(context.Background()))
	m.LinkLost()
	assert.Equal(t, StateReconnecting, m.State())

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("recovery never completed")
	}
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, int32(4), calls.Load())
}

func TestLinkLostWhenNotConnected(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	// A stray loss report on a link that was never up starts nothing.
	m.LinkLost()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, int32(0), calls.Load())
}

func TestDisconnectIsDeliberate(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	// The transport teardown still reports a loss; it must not start
	// recovery.
	m.LinkLost()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDisconnectStopsRecovery(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("still out of range")
			}
			return nil
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	m.LinkLost()

	require.Eventually(t, func() bool { return calls.Load() >= 2 },
		2*time.Second, time.Millisecond, "recovery never attempted")

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	// At most one attempt was in flight when Disconnect landed.
	settled := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), settled+1)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestOnReconnecting(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("still out of range")
			}
			return nil
		},
		Backoff: fastBackoff,
	})
	defer m.Close()

	type announce struct {
		attempt int
		delay   time.Duration
	}
	announces := make(chan announce, 16)
	m.OnReconnecting(func(attempt int, delay time.Duration) {
		select {
		case announces <- announce{attempt, delay}:
		default:
		}
	})

	require.NoError(t, m.Connect(context.Background()))
	m.LinkLost()

	first := <-announces
	assert.Equal(t, 1, first.attempt)
	assert.Equal(t, time.Millisecond, first.delay)

	second := <-announces
	assert.Equal(t, 2, second.attempt)
	assert.Equal(t, 2*time.Millisecond, second.delay, "the ramp grows between attempts")
}

func TestStateEventsLogged(t *testing.T) {
	logger := &captureLogger{}
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				return errors.New("still out of range")
			}
			return nil
		},
		Backoff:      fastBackoff,
		Logger:       logger,
		ConnectionID: "conn-42",
	})
	defer m.Close()

	recovered := make(chan struct{})
	m.OnStateChange(func(old, new State) {
		if old == StateReconnecting && new == StateConnected {
			close(recovered)
		}
	})

	require.NoError(t, m.Connect(context.Background()))
	m.LinkLost()
	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("recovery never completed")
	}

	got := logger.transitions()
	assert.Equal(t, []string{
		"DISCONNECTED->CONNECTING",
		"CONNECTING->CONNECTED",
		"CONNECTED->RECONNECTING",
		"RECONNECTING->CONNECTED",
	}, got)

	logger.mu.Lock()
	for _, ev := range logger.events {
		assert.Equal(t, "conn-42", ev.ConnectionID)
		assert.Equal(t, log.LayerTransport, ev.Layer)
		if ev.StateChange != nil {
			assert.Equal(t, log.StateEntityConnection, ev.StateChange.Entity)
		}
	}
	logger.mu.Unlock()

	// The failed attempt surfaced as an error event.
	assert.Equal(t, 1, logger.errorCount())
}

func TestCloseStopsRecovery(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(Config{
		Connect: func(ctx context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("still out of range")
			}
			return nil
		},
		Backoff: fastBackoff,
	})

	require.NoError(t, m.Connect(context.Background()))
	m.LinkLost()

	// Close returns only after the recovery goroutine has exited.
	m.Close()
	assert.Equal(t, StateClosed, m.State())

	settled := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
