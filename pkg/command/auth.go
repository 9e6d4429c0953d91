package command

import (
	"context"
	"fmt"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// Auth handshake timing: one frame every AuthStepDelay, then
// AuthSettle before the first regular command.
const (
	AuthStepDelay = 100 * time.Millisecond
	AuthSettle    = 500 * time.Millisecond
)

// authTransactionID is the constant transaction id the vendor app
// sends in both timestamped handshake frames (a 10-byte varint).
const authTransactionID = 0xFFFFFFFFFFFFFFE8

// AuthFrames builds the fixed 7-frame pairing handshake. The handshake
// predates the session counters: it uses sequence numbers 1 through 7
// and its own message ids, which is why it returns complete physical
// frames for Session.WriteRaw rather than payload builders.
func AuthFrames(now time.Time) ([][]byte, error) {
	ts := uint64(now.Unix())

	payloads := []struct {
		svc  frame.Service
		body []byte
	}{
		{System, statusQuery(0x0C)},
		{Auth, modeSelect(0x0E, 2)},
		{Auth, timestampExchange(0x0F, ts)},
		{System, statusQuery(0x10)},
		{System, statusQuery(0x11)},
		{Auth, modeSelect(0x12, 1)},
		{Auth, timestampExchange(0x13, ts)},
	}

	frames := make([][]byte, 0, len(payloads))
	for i, p := range payloads {
		raws, err := frame.Encode(frame.TypeCommand, uint8(i+1), p.svc, p.body, frame.DefaultMaxFrameSize)
		if err != nil {
			return nil, err
		}
		frames = append(frames, raws...)
	}
	return frames, nil
}

// RawWriter writes pre-built physical frames, bypassing counter
// allocation. *session.Session satisfies it via WriteRaw.
type RawWriter interface {
	WriteRaw(raw []byte) error
}

// Authenticate runs the pairing handshake on a fresh link: the seven
// fixed frames paced at AuthStepDelay, then AuthSettle before regular
// commands may follow. The glasses do not acknowledge these frames.
func Authenticate(ctx context.Context, w RawWriter, clock sequence.Clock) error {
	if clock == nil {
		clock = sequence.SystemClock
	}

	frames, err := AuthFrames(clock.Now())
	if err != nil {
		return fmt.Errorf("building handshake: %w", err)
	}

	for i, raw := range frames {
		if err := w.WriteRaw(raw); err != nil {
			return fmt.Errorf("handshake frame %d/%d: %w", i+1, len(frames), err)
		}
		if err := clock.Sleep(ctx, AuthStepDelay); err != nil {
			return err
		}
	}
	return clock.Sleep(ctx, AuthSettle)
}

func statusQuery(msgID uint32) []byte {
	return wire.NewBuilder().
		Varint(1, 4).
		Varint(2, uint64(msgID)).
		Embedded(3, func(b *wire.Builder) {
			b.Varint(1, 1).Varint(2, 4)
		}).
		Build()
}

func modeSelect(msgID uint32, mode uint64) []byte {
	return wire.NewBuilder().
		Varint(1, 5).
		Varint(2, uint64(msgID)).
		Embedded(4, func(b *wire.Builder) {
			b.Varint(1, mode)
		}).
		Build()
}

func timestampExchange(msgID uint32, ts uint64) []byte {
	return wire.NewBuilder().
		Varint(1, 128).
		Varint(2, uint64(msgID)).
		Embedded(128, func(b *wire.Builder) {
			b.Varint(1, ts).Varint(2, authTransactionID)
		}).
		Build()
}
