package assembly

import (
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// Message is one assembled logical message. It is immutable once emitted
// by a Reassembler.
type Message struct {
	// Service is the service id from the first fragment.
	Service frame.Service

	// Seq is the frame sequence counter shared by all fragments.
	Seq uint8

	// Type is the frame type (frame.TypeCommand or frame.TypeResponse).
	Type byte

	// Body is the assembled TLV payload.
	Body []byte
}

// MessageID extracts the correlation message id (TLV field 2) from the
// body. The boolean is false when the field is absent.
func (m *Message) MessageID() (uint32, bool) {
	return wire.MessageID(m.Body)
}

// Command extracts the command number (TLV field 1) from the body.
func (m *Message) Command() (uint64, bool) {
	return wire.Command(m.Body)
}
