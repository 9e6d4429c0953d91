package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hudlink-protocol/hudlink-go/pkg/assembly"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/interaction"
	"github.com/hudlink-protocol/hudlink-go/pkg/log"
	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/transport"
)

// Counter start values observed after pairing. The glasses accept a
// reconnect only when the counters start over.
const (
	InitialSeq       = 0x08
	InitialMessageID = 0x14
)

// DefaultNotificationBuffer bounds the unsolicited message stream.
const DefaultNotificationBuffer = 32

// Session errors.
var (
	ErrSessionClosed = errors.New("session is closed")
	ErrNotBound      = errors.New("no transport bound")
)

// Config configures a Session.
type Config struct {
	// AckTimeout is the default response wait. Zero means
	// interaction.DefaultTimeout.
	AckTimeout time.Duration

	// AssemblyTimeout discards stalled fragment runs. Zero means
	// assembly.DefaultTimeout.
	AssemblyTimeout time.Duration

	// DedupWindow is the duplicate suppression window in frames. Zero
	// means assembly.DefaultDedupWindow.
	DedupWindow int

	// MaxFrameSize bounds physical frames. Zero means
	// frame.DefaultMaxFrameSize.
	MaxFrameSize int

	// NotificationBuffer bounds the unsolicited stream. When full the
	// oldest message is dropped; the pipeline never blocks. Zero means
	// DefaultNotificationBuffer.
	NotificationBuffer int

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// Clock paces sequence runs. Nil means the wall clock.
	Clock sequence.Clock
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		AckTimeout:         interaction.DefaultTimeout,
		AssemblyTimeout:    assembly.DefaultTimeout,
		DedupWindow:        assembly.DefaultDedupWindow,
		MaxFrameSize:       frame.DefaultMaxFrameSize,
		NotificationBuffer: DefaultNotificationBuffer,
	}
}

// Session is the protocol state for one connection.
type Session struct {
	id     string
	cfg    Config
	logger log.Logger

	pipe   *assemblyPipeline
	runner *sequence.Runner

	mu     sync.Mutex
	tr     transport.Transport
	seq    uint8
	msgID  uint32
	closed bool
}

// assemblyPipeline groups the inbound stages so they reset together.
type assemblyPipeline struct {
	dedup *assembly.Deduper
	reasm map[transport.Channel]*assembly.Reassembler
	corr  *interaction.Correlator
	notif chan *assembly.Message
}

// New creates a Session. Bind a transport before submitting.
func New(cfg Config) *Session {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = DefaultNotificationBuffer
	}

	id := uuid.New().String()
	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.Logger,
		seq:    InitialSeq,
		msgID:  InitialMessageID,
	}

	s.pipe = &assemblyPipeline{
		dedup: assembly.NewDeduper(cfg.DedupWindow),
		reasm: map[transport.Channel]*assembly.Reassembler{
			transport.ChannelControl: assembly.New(assembly.Config{
				Timeout:      cfg.AssemblyTimeout,
				Logger:       cfg.Logger,
				ConnectionID: id,
				Channel:      transport.ChannelControl.String(),
			}),
			transport.ChannelDisplay: assembly.New(assembly.Config{
				Timeout:      cfg.AssemblyTimeout,
				Logger:       cfg.Logger,
				ConnectionID: id,
				Channel:      transport.ChannelDisplay.String(),
			}),
		},
		corr:  interaction.NewCorrelator(interaction.Config{Timeout: cfg.AckTimeout}),
		notif: make(chan *assembly.Message, cfg.NotificationBuffer),
	}
	s.runner = sequence.NewRunner(s, sequence.Config{
		Clock:        cfg.Clock,
		AckTimeout:   cfg.AckTimeout,
		Logger:       cfg.Logger,
		ConnectionID: id,
	})
	return s
}

// ID returns the session's connection id.
func (s *Session) ID() string { return s.id }

// Bind attaches the transport the session writes through.
func (s *Session) Bind(tr transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tr = tr
}

// Submit sends a request built for a fresh message id and waits for
// the matching response. A zero timeout uses the configured default.
func (s *Session) Submit(ctx context.Context, svc frame.Service, build func(msgID uint32) []byte, timeout time.Duration) (uint32, *assembly.Message, error) {
	msgID, frames, err := s.prepare(svc, build)
	if err != nil {
		return msgID, nil, err
	}

	p, err := s.pipe.corr.Expect(svc, msgID)
	if err != nil {
		return msgID, nil, err
	}

	if err := s.writeFrames(svc, frames); err != nil {
		p.Cancel()
		return msgID, nil, err
	}
	s.logMessage(log.DirectionOut, log.MessageTypeRequest, svc, msgID, frames)

	resp, err := p.WaitTimeout(ctx, timeout)
	if err != nil {
		return msgID, nil, err
	}
	return msgID, resp, nil
}

// Send sends a request without waiting for a response.
func (s *Session) Send(svc frame.Service, build func(msgID uint32) []byte) (uint32, error) {
	msgID, frames, err := s.prepare(svc, build)
	if err != nil {
		return msgID, err
	}
	if err := s.writeFrames(svc, frames); err != nil {
		return msgID, err
	}
	s.logMessage(log.DirectionOut, log.MessageTypeRequest, svc, msgID, frames)
	return msgID, nil
}

// WriteRaw writes one pre-built physical frame, bypassing the counter
// allocation. The auth handshake uses its own fixed sequence numbers.
func (s *Session) WriteRaw(raw []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return ErrNotBound
	}
	return tr.Write(raw)
}

// Run executes a command sequence against this session.
func (s *Session) Run(ctx context.Context, seq sequence.Sequence) (*sequence.Summary, error) {
	return s.runner.Run(ctx, seq)
}

// Notifications returns the unsolicited message stream. The channel is
// closed by Close. Slow consumers lose the oldest messages, never
// block the pipeline.
func (s *Session) Notifications() <-chan *assembly.Message {
	return s.pipe.notif
}

// Close tears the session down: pending requests fail, assembly timers
// stop, the notification stream closes. The bound transport is closed
// as well.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tr := s.tr
	s.mu.Unlock()

	var err error
	if tr != nil {
		err = tr.Close()
	}
	s.pipe.corr.Close()
	for _, r := range s.pipe.reasm {
		r.Reset()
	}

	s.mu.Lock()
	close(s.pipe.notif)
	s.mu.Unlock()
	return err
}

// prepare allocates the message id and sequence number and encodes the
// payload into physical frames.
func (s *Session) prepare(svc frame.Service, build func(msgID uint32) []byte) (uint32, [][]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrSessionClosed
	}
	if s.tr == nil {
		s.mu.Unlock()
		return 0, nil, ErrNotBound
	}
	msgID := s.msgID
	s.msgID++
	seq := s.seq
	s.seq++ // wraps mod 256
	s.mu.Unlock()

	var payload []byte
	if build != nil {
		payload = build(msgID)
	}
	frames, err := frame.Encode(frame.TypeCommand, seq, svc, payload, s.cfg.MaxFrameSize)
	if err != nil {
		return msgID, nil, fmt.Errorf("encoding request for %s: %w", svc, err)
	}
	return msgID, frames, nil
}

func (s *Session) writeFrames(svc frame.Service, frames [][]byte) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return ErrNotBound
	}

	for i, raw := range frames {
		if err := tr.Write(raw); err != nil {
			return fmt.Errorf("writing fragment %d/%d to %s: %w", i+1, len(frames), svc, err)
		}
	}
	return nil
}

// OnConnect implements transport.Handler. The counters and inbound
// state start over for the new link.
func (s *Session) OnConnect() {
	s.mu.Lock()
	s.seq = InitialSeq
	s.msgID = InitialMessageID
	s.mu.Unlock()

	s.pipe.dedup.Reset()
	for _, r := range s.pipe.reasm {
		r.Reset()
	}
	s.logState("disconnected", "connected", "")
}

// OnDisconnect implements transport.Handler. Pending requests fail
// with the connection loss; the session can be rebound and reused.
func (s *Session) OnDisconnect(err error) {
	cause := interaction.ErrConnectionLost
	if err != nil {
		cause = fmt.Errorf("%w: %w", interaction.ErrConnectionLost, err)
	}
	s.pipe.corr.CancelAll(cause)
	for _, r := range s.pipe.reasm {
		r.Reset()
	}

	reason := "closed"
	if err != nil {
		reason = err.Error()
	}
	s.logState("connected", "disconnected", reason)
}

// OnChunk implements transport.Handler: the inbound pipeline. Framing
// and assembly errors are recovered here and surface only as log
// events; one bad frame never aborts the connection.
func (s *Session) OnChunk(ch transport.Channel, chunk []byte) {
	// Dedup across both channels so a mirrored frame dispatches once.
	if s.pipe.dedup.Seen(chunk) {
		s.logFrame(ch, chunk, nil, true)
		return
	}

	f, err := frame.Decode(chunk)
	if err != nil {
		s.logError(ch, fmt.Errorf("dropping frame: %w", err))
		return
	}
	s.logFrame(ch, chunk, f, false)

	msg, err := s.pipe.reasm[ch].Feed(f)
	if err != nil {
		s.logError(ch, fmt.Errorf("dropping fragment: %w", err))
		return
	}
	if msg == nil {
		return
	}

	if s.pipe.corr.Dispatch(msg) {
		s.logAssembled(ch, log.MessageTypeResponse, msg)
		return
	}
	s.logAssembled(ch, log.MessageTypeNotification, msg)
	s.publish(msg)
}

// publish pushes msg on the notification stream, dropping the oldest
// entry when the consumer lags.
func (s *Session) publish(msg *assembly.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.pipe.notif <- msg:
	default:
		select {
		case <-s.pipe.notif:
		default:
		}
		select {
		case s.pipe.notif <- msg:
		default:
		}
	}
}

func (s *Session) logFrame(ch transport.Channel, chunk []byte, f *frame.Frame, duplicate bool) {
	if s.logger == nil {
		return
	}
	fe := &log.FrameEvent{Size: len(chunk), Duplicate: duplicate}
	if f != nil {
		fe.Seq = f.Seq
		fe.FragIndex = f.FragIndex
		fe.FragTotal = f.FragTotal
		if svc, ok := f.Service(); ok {
			fe.Service = svc.String()
		}
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerFrame,
		Category:     log.CategoryMessage,
		Channel:      ch.String(),
		Frame:        fe,
	})
}

func (s *Session) logAssembled(ch transport.Channel, typ log.MessageType, msg *assembly.Message) {
	if s.logger == nil {
		return
	}
	me := &log.MessageEvent{
		Type:    typ,
		Service: msg.Service.String(),
		Size:    len(msg.Body),
	}
	if id, ok := msg.MessageID(); ok {
		me.MessageID = id
	}
	if cmd, ok := msg.Command(); ok {
		me.Command = &cmd
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryMessage,
		Channel:      ch.String(),
		Message:      me,
	})
}

func (s *Session) logMessage(dir log.Direction, typ log.MessageType, svc frame.Service, msgID uint32, frames [][]byte) {
	if s.logger == nil {
		return
	}
	size := 0
	for _, f := range frames {
		size += len(f)
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    dir,
		Layer:        log.LayerSession,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:      typ,
			Service:   svc.String(),
			MessageID: msgID,
			Size:      size,
		},
	})
}

func (s *Session) logState(from, to, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (s *Session) logError(ch transport.Channel, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerFrame,
		Category:     log.CategoryError,
		Channel:      ch.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerFrame,
			Message: err.Error(),
		},
	})
}

// Compile-time interface satisfaction checks.
var (
	_ transport.Handler = (*Session)(nil)
	_ sequence.Sender   = (*Session)(nil)
)
