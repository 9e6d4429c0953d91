package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hudlink-protocol/hudlink-go/internal/simulator"
	"github.com/hudlink-protocol/hudlink-go/pkg/assembly"
	"github.com/hudlink-protocol/hudlink-go/pkg/command"
	"github.com/hudlink-protocol/hudlink-go/pkg/connection"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/log"
	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/session"
	"github.com/hudlink-protocol/hudlink-go/pkg/transport"
	"github.com/hudlink-protocol/hudlink-go/pkg/version"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// supportedFirmware is the firmware line the command builders target.
// Glasses on another major line speak incompatible wire formats.
var supportedFirmware = version.FirmwareVersion{Major: 1}

// simFirmware is what the simulated glasses report.
const simFirmware = "1.2"

// firmwarePollTimeout bounds the post-handshake firmware query.
const firmwarePollTimeout = 2 * time.Second

// BridgeConfig configures the glasses link behind the HTTP API.
type BridgeConfig struct {
	// DevicePrefix selects glasses by advertised name.
	DevicePrefix string

	// PreferredArm selects which arm to connect to when both advertise.
	PreferredArm string

	// Simulate replaces the BLE link with the in-memory simulator.
	Simulate bool

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// Clock paces sequences and the auth handshake. Nil means the wall
	// clock.
	Clock sequence.Clock
}

// Bridge owns the session and its transport and exposes the operations
// the HTTP handlers call. Link loss triggers automatic reconnection
// through the connection manager.
type Bridge struct {
	cfg  BridgeConfig
	sess *session.Session
	mgr  *connection.Manager

	mu            sync.Mutex
	tr            transport.Transport
	connected     bool
	firmware      version.FirmwareVersion
	firmwareKnown bool

	subMu sync.Mutex
	subs  map[chan bridgeEvent]struct{}

	done chan struct{}
}

// bridgeEvent is one entry on the /api/v1/events stream.
type bridgeEvent struct {
	Time      string  `json:"time"`
	Type      string  `json:"type"`
	Service   string  `json:"service,omitempty"`
	Command   *uint64 `json:"command,omitempty"`
	MessageID uint32  `json:"message_id,omitempty"`
	Size      int     `json:"size,omitempty"`
	State     string  `json:"state,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// NewBridge creates a Bridge. Call Close when done.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Clock == nil {
		cfg.Clock = sequence.SystemClock
	}

	b := &Bridge{
		cfg: cfg,
		sess: session.New(session.Config{
			Logger: cfg.Logger,
			Clock:  cfg.Clock,
		}),
		subs: map[chan bridgeEvent]struct{}{},
		done: make(chan struct{}),
	}

	b.mgr = connection.NewManager(connection.Config{
		Connect:      b.connectOnce,
		Logger:       cfg.Logger,
		ConnectionID: b.sess.ID(),
	})
	b.mgr.OnStateChange(func(oldState, newState connection.State) {
		b.publish(bridgeEvent{Type: "state", State: newState.String()})
	})
	b.mgr.OnReconnecting(func(attempt int, delay time.Duration) {
		b.publish(bridgeEvent{
			Type:   "state",
			State:  connection.StateReconnecting.String(),
			Detail: fmt.Sprintf("attempt %d, next in %s", attempt, delay),
		})
	})

	go b.pumpNotifications()
	return b
}

// Connect brings the link up and runs the pairing handshake.
func (b *Bridge) Connect(ctx context.Context) error {
	return b.mgr.Connect(ctx)
}

// connectOnce is the connection.ConnectFunc: one attempt at bringing
// the link up, used for both manual connects and reconnection.
func (b *Bridge) connectOnce(ctx context.Context) error {
	var tr transport.Transport

	if b.cfg.Simulate {
		sim := simulator.New(simulator.Config{Duplicate: true, Firmware: simFirmware})
		for _, svc := range ackedServices() {
			sim.AckService(svc)
		}
		b.sess.Bind(sim)
		sim.Attach(&linkHandler{sess: b.sess, lost: b.onLinkLost})
		tr = sim
	} else {
		ble := transport.NewBLECentral(&linkHandler{sess: b.sess, lost: b.onLinkLost}, transport.BLEConfig{
			NamePrefix:   b.cfg.DevicePrefix,
			PreferredArm: b.cfg.PreferredArm,
			Logger:       b.cfg.Logger,
			ConnectionID: b.sess.ID(),
		})
		b.sess.Bind(ble)
		if err := ble.Connect(ctx); err != nil {
			return err
		}
		tr = ble
	}

	if err := command.Authenticate(ctx, b.sess, b.cfg.Clock); err != nil {
		tr.Close()
		return fmt.Errorf("pairing handshake: %w", err)
	}

	if err := b.checkFirmware(ctx); err != nil {
		tr.Close()
		return err
	}

	b.mu.Lock()
	b.tr = tr
	b.connected = true
	b.mu.Unlock()
	return nil
}

// checkFirmware polls the glasses for their firmware version and
// refuses a different major line. Glasses that do not answer, or
// answer without a version field, pass as unknown; early firmware
// ignores status polls outside the handshake.
func (b *Bridge) checkFirmware(ctx context.Context) error {
	_, resp, err := b.sess.Submit(ctx, command.System, command.StatusQueryPayload, firmwarePollTimeout)
	if err != nil {
		return nil
	}
	raw, ok := command.FirmwareString(resp.Body)
	if !ok {
		return nil
	}

	fw, err := gateFirmware(raw)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.firmware = fw
	b.firmwareKnown = true
	b.mu.Unlock()
	return nil
}

// gateFirmware parses a reported firmware version and decides whether
// this build can drive it.
func gateFirmware(raw string) (version.FirmwareVersion, error) {
	fw, err := version.Parse(raw)
	if err != nil {
		return version.FirmwareVersion{}, fmt.Errorf("glasses reported firmware %q: %w", raw, err)
	}
	if !fw.Compatible(supportedFirmware) {
		return version.FirmwareVersion{}, fmt.Errorf(
			"unsupported firmware %s: this build drives the %d.x line", fw, supportedFirmware.Major)
	}
	return fw, nil
}

// Firmware returns the glasses' firmware version, when known.
func (b *Bridge) Firmware() (version.FirmwareVersion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firmware, b.firmwareKnown
}

// ackedServices lists the services the simulator acknowledges, which is
// every service the bridge sends acked steps to.
func ackedServices() []frame.Service {
	return []frame.Service{
		command.System,
		command.Conversate,
		command.Teleprompter,
		command.DisplayConfig,
		command.Navigation,
		command.Dashboard,
		command.Widget,
	}
}

// onLinkLost runs on transport disconnect and hands the recovery
// decision to the manager.
func (b *Bridge) onLinkLost() {
	b.mu.Lock()
	b.connected = false
	b.firmwareKnown = false
	b.mu.Unlock()
	b.mgr.LinkLost()
}

// Disconnect tears the link down without reconnecting.
func (b *Bridge) Disconnect() error {
	// Flip the manager first so the transport teardown below is not
	// mistaken for link loss.
	b.mgr.Disconnect()

	b.mu.Lock()
	tr := b.tr
	b.tr = nil
	b.connected = false
	b.firmwareKnown = false
	b.mu.Unlock()

	if tr == nil {
		return nil
	}
	return tr.Close()
}

// Connected reports whether the link is up.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SessionID returns the session's connection id.
func (b *Bridge) SessionID() string { return b.sess.ID() }

// State returns the connection manager state.
func (b *Bridge) State() connection.State { return b.mgr.State() }

// SendText displays a transcription message.
func (b *Bridge) SendText(ctx context.Context, text string) (*sequence.Summary, error) {
	return b.sess.Run(ctx, command.TextSequence(text))
}

// SendTeleprompter pushes paged text to the teleprompter.
func (b *Bridge) SendTeleprompter(ctx context.Context, title, body string) (*sequence.Summary, error) {
	return b.sess.Run(ctx, command.TeleprompterSequence(title, body))
}

// NavStart enters navigation mode.
func (b *Bridge) NavStart(ctx context.Context) (*sequence.Summary, error) {
	return b.sess.Run(ctx, command.NavStartSequence())
}

// NavUpdate pushes a turn instruction.
func (b *Bridge) NavUpdate(ctx context.Context, info command.BasicInfo) (*sequence.Summary, error) {
	return b.sess.Run(ctx, command.NavUpdateSequence(info))
}

// NavStop exits navigation mode.
func (b *Bridge) NavStop(ctx context.Context) (*sequence.Summary, error) {
	return b.sess.Run(ctx, command.NavStopSequence())
}

// SendRaw sends an arbitrary payload to svc. With appendID the
// allocated message id is appended as wire field 2, which responses
// echo; wantAck then waits for the response and returns its body.
func (b *Bridge) SendRaw(ctx context.Context, svc frame.Service, payload []byte, appendID, wantAck bool) (uint32, []byte, error) {
	build := func(msgID uint32) []byte {
		if !appendID {
			return payload
		}
		return wire.NewBuilder().
			Raw(payload).
			Varint(wire.FieldMessageID, uint64(msgID)).
			Build()
	}
	if !wantAck {
		id, err := b.sess.Send(svc, build)
		return id, nil, err
	}
	id, resp, err := b.sess.Submit(ctx, svc, build, 0)
	if err != nil {
		return id, nil, err
	}
	return id, resp.Body, nil
}

// RunSequence executes a caller-supplied sequence, e.g. one loaded
// from YAML.
func (b *Bridge) RunSequence(ctx context.Context, seq sequence.Sequence) (*sequence.Summary, error) {
	return b.sess.Run(ctx, seq)
}

// Subscribe registers an event stream consumer. The returned cancel
// func must be called when the consumer goes away.
func (b *Bridge) Subscribe() (<-chan bridgeEvent, func()) {
	ch := make(chan bridgeEvent, 16)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()

	cancel := func() {
		b.subMu.Lock()
		delete(b.subs, ch)
		b.subMu.Unlock()
	}
	return ch, cancel
}

// publish fans an event out to all subscribers, dropping it for any
// that lag.
func (b *Bridge) publish(ev bridgeEvent) {
	ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// pumpNotifications turns unsolicited session messages into stream
// events.
func (b *Bridge) pumpNotifications() {
	for msg := range b.sess.Notifications() {
		b.publish(notificationEvent(msg))
	}
	close(b.done)
}

func notificationEvent(msg *assembly.Message) bridgeEvent {
	ev := bridgeEvent{
		Type:    "notification",
		Service: msg.Service.String(),
		Size:    len(msg.Body),
	}
	if id, ok := msg.MessageID(); ok {
		ev.MessageID = id
	}
	if cmd, ok := msg.Command(); ok {
		ev.Command = &cmd
	}
	return ev
}

// Close shuts the bridge down: the manager stops reconnecting and the
// session is torn down.
func (b *Bridge) Close() error {
	b.mgr.Close()
	err := b.sess.Close()
	<-b.done
	return err
}
