package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Device is the advertised device name (populated after connect).
	Device string `cbor:"6,keyasint,omitempty"`

	// Channel is the notify channel the event arrived on
	// ("control" or "display"), empty for outbound traffic.
	Channel string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Frame layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Assembled messages
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/sequence state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the BLE layer (raw characteristic chunks).
	LayerTransport Layer = 0
	// LayerFrame is the frame codec layer.
	LayerFrame Layer = 1
	// LayerAssembly is the fragment reassembly layer.
	LayerAssembly Layer = 2
	// LayerSession is the session/correlation layer.
	LayerSession Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerFrame:
		return "FRAME"
	case LayerAssembly:
		return "ASSEMBLY"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates protocol traffic (frames and messages).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one physical frame at the frame layer.
type FrameEvent struct {
	// Size is the frame size in bytes on the wire.
	Size int `cbor:"1,keyasint"`

	// Seq is the frame sequence counter.
	Seq uint8 `cbor:"2,keyasint"`

	// FragIndex is the 1-based fragment position.
	FragIndex uint8 `cbor:"3,keyasint,omitempty"`

	// FragTotal is the fragment count of the logical message.
	FragTotal uint8 `cbor:"4,keyasint,omitempty"`

	// Service is the service id ("0xMM-NN"), empty on continuation
	// fragments which carry none.
	Service string `cbor:"5,keyasint,omitempty"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`

	// Duplicate marks a frame suppressed by dual-channel deduplication.
	Duplicate bool `cbor:"8,keyasint,omitempty"`
}

// MessageEvent captures an assembled logical message.
type MessageEvent struct {
	// Type distinguishes request/response/notification.
	Type MessageType `cbor:"1,keyasint"`

	// Service is the service id ("0xMM-NN").
	Service string `cbor:"2,keyasint"`

	// MessageID correlates request/response pairs (0 when absent).
	MessageID uint32 `cbor:"3,keyasint,omitempty"`

	// Command is the command number (field 1), when present.
	Command *uint64 `cbor:"4,keyasint,omitempty"`

	// Size is the assembled payload size in bytes.
	Size int `cbor:"5,keyasint"`
}

// MessageType distinguishes request/response/notification.
type MessageType uint8

const (
	// MessageTypeRequest indicates an outbound request.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a correlated response.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification indicates an unsolicited message.
	MessageTypeNotification MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and sequence lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityAssembly indicates a reassembly state change
	// (started, completed, discarded, timed out).
	StateEntityAssembly StateEntity = 1
	// StateEntitySequence indicates an activation sequence state change.
	StateEntitySequence StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityAssembly:
		return "ASSEMBLY"
	case StateEntitySequence:
		return "SEQUENCE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
