// Package simulator is an in-memory stand-in for the glasses, used by
// session and command tests and by the bridge's development mode. It
// decodes whatever the session writes, acks registered services the way
// the real device does, and can replay the device's quirks: duplicate
// delivery on both arm radios and fragmented large responses.
package simulator

import (
	"errors"
	"sync"

	"github.com/hudlink-protocol/hudlink-go/pkg/assembly"
	"github.com/hudlink-protocol/hudlink-go/pkg/command"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/transport"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("simulator is closed")

// Config configures simulated device quirks.
type Config struct {
	// Duplicate delivers every response twice, as when both arm radios
	// mirror the traffic.
	Duplicate bool

	// ResponsePadding inflates ack bodies by this many bytes, forcing
	// fragmented responses when it exceeds one frame.
	ResponsePadding int

	// Firmware is the version string System status responses report.
	// Empty omits the field, like early firmware does.
	Firmware string

	// MaxFrameSize for responses. Zero means frame.DefaultMaxFrameSize.
	MaxFrameSize int
}

// Simulator implements transport.Transport against an in-memory device.
type Simulator struct {
	cfg Config

	mu       sync.Mutex
	handler  transport.Handler
	reasm    *assembly.Reassembler
	received []*assembly.Message
	acked    map[frame.Service]bool
	seq      uint8
	closed   bool
}

// New creates a Simulator.
func New(cfg Config) *Simulator {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	return &Simulator{
		cfg:   cfg,
		reasm: assembly.New(assembly.Config{}),
		acked: map[frame.Service]bool{},
		seq:   0x01,
	}
}

// AckService makes the simulator acknowledge requests to svc with a
// response echoing the command and message id.
func (s *Simulator) AckService(svc frame.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked[svc] = true
}

// Attach registers the handler and reports the link as up.
func (s *Simulator) Attach(h transport.Handler) {
	s.mu.Lock()
	s.handler = h
	s.closed = false
	s.mu.Unlock()
	h.OnConnect()
}

// Write decodes one outbound frame. When the frame completes a logical
// message, the message is recorded and, for registered services, acked
// synchronously through the handler.
func (s *Simulator) Write(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	f, err := frame.Decode(data)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msg, err := s.reasm.Feed(f)
	if err != nil || msg == nil {
		s.mu.Unlock()
		return err
	}
	s.received = append(s.received, msg)

	handler := s.handler
	var raws [][]byte
	if s.acked[msg.Service] {
		raws = s.buildAckLocked(msg)
	}
	s.mu.Unlock()

	if handler == nil {
		return nil
	}
	for _, raw := range raws {
		handler.OnChunk(transport.ChannelControl, raw)
		if s.cfg.Duplicate {
			handler.OnChunk(transport.ChannelControl, append([]byte(nil), raw...))
		}
	}
	return nil
}

// buildAckLocked encodes the response frames for msg. Caller holds s.mu.
func (s *Simulator) buildAckLocked(msg *assembly.Message) [][]byte {
	b := wire.NewBuilder()
	if cmd, ok := msg.Command(); ok {
		b.Varint(wire.FieldCommand, cmd)
	}
	if id, ok := msg.MessageID(); ok {
		b.Varint(wire.FieldMessageID, uint64(id))
	}
	if s.cfg.Firmware != "" && msg.Service.Major == command.System.Major {
		b.String(command.FieldFirmware, s.cfg.Firmware)
	}
	if s.cfg.ResponsePadding > 0 {
		b.Bytes(15, make([]byte, s.cfg.ResponsePadding))
	}

	respSvc := frame.Service{Major: msg.Service.Major, Minor: 0x00}
	raws, err := frame.Encode(frame.TypeResponse, s.seq, respSvc, b.Build(), s.cfg.MaxFrameSize)
	if err != nil {
		return nil
	}
	s.seq++
	return raws
}

// Notify emits an unsolicited notification message to the handler.
func (s *Simulator) Notify(svc frame.Service, body []byte) error {
	s.mu.Lock()
	handler := s.handler
	raws, err := frame.Encode(frame.TypeResponse, s.seq, svc, body, s.cfg.MaxFrameSize)
	s.seq++
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	for _, raw := range raws {
		handler.OnChunk(transport.ChannelControl, raw)
		if s.cfg.Duplicate {
			handler.OnChunk(transport.ChannelControl, append([]byte(nil), raw...))
		}
	}
	return nil
}

// Drop simulates the glasses dropping the link.
func (s *Simulator) Drop(err error) {
	s.mu.Lock()
	s.closed = true
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler.OnDisconnect(err)
	}
}

// Close implements transport.Transport.
func (s *Simulator) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler.OnDisconnect(nil)
	}
	return nil
}

// Messages returns the logical messages received so far.
func (s *Simulator) Messages() []*assembly.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*assembly.Message(nil), s.received...)
}

var _ transport.Transport = (*Simulator)(nil)
