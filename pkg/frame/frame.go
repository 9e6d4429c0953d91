package frame

import "errors"

// Frame layout constants.
const (
	// Magic is the first byte of every frame.
	Magic = 0xAA

	// TypeCommand marks app→glasses traffic.
	TypeCommand = 0x21

	// TypeResponse marks glasses→app traffic.
	TypeResponse = 0x12

	// HeaderSize is the full header on a first fragment, including the
	// magic byte and the two service bytes.
	HeaderSize = 8

	// ContHeaderSize is the header on a continuation fragment, which
	// carries no service bytes.
	ContHeaderSize = 6

	// ChecksumSize is the size of the trailing CRC.
	ChecksumSize = 2

	// MinFrameSize is the smallest valid frame: a first fragment with an
	// empty payload.
	MinFrameSize = HeaderSize + ChecksumSize

	// MaxFragments bounds fragTotal. Larger values are framing errors.
	MaxFragments = 20

	// DefaultMaxFrameSize is the default frame size limit, sized for a
	// negotiated ATT MTU of 247 (3 bytes ATT header).
	DefaultMaxFrameSize = 244
)

// Framing errors.
var (
	// ErrTooShort indicates the buffer is smaller than the minimum frame.
	ErrTooShort = errors.New("frame too short")

	// ErrBadMagic indicates the frame does not start with 0xAA.
	ErrBadMagic = errors.New("bad magic byte")

	// ErrUnknownType indicates a type byte other than 0x21 or 0x12.
	ErrUnknownType = errors.New("unknown frame type")

	// ErrLengthOutOfRange indicates the length byte disagrees with the
	// number of bytes actually present.
	ErrLengthOutOfRange = errors.New("frame length out of range")

	// ErrFragmentOutOfRange indicates fragIndex/fragTotal outside
	// 1 ≤ index ≤ total ≤ MaxFragments.
	ErrFragmentOutOfRange = errors.New("fragment counters out of range")

	// ErrChecksumMismatch indicates the trailing CRC does not match the
	// fragment body.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrBodyTooLarge indicates a message that would not fit in
	// MaxFragments fragments.
	ErrBodyTooLarge = errors.New("message body too large")

	// ErrFrameSizeTooSmall indicates a frame size limit with no room for
	// any payload.
	ErrFrameSizeTooSmall = errors.New("max frame size too small")
)

// Frame is one decoded physical frame. Decode copies the body, so a Frame
// does not alias the notification buffer it was parsed from.
type Frame struct {
	// Type is TypeCommand or TypeResponse.
	Type byte

	// Seq is the frame sequence counter. All fragments of one logical
	// message share the same value.
	Seq uint8

	// FragTotal is the 1-based fragment count of the logical message.
	FragTotal uint8

	// FragIndex is the 1-based position of this fragment.
	FragIndex uint8

	// Body is the payload slice carried by this fragment.
	Body []byte

	service Service
}

// First returns true if this is the first (or only) fragment of a message.
func (f *Frame) First() bool {
	return f.FragIndex == 1
}

// Service returns the service id and true on a first fragment.
// Continuation fragments have no service bytes on the wire; the positions
// where a first fragment carries them hold payload instead, so reading a
// service from a continuation fragment would return payload bytes. The
// boolean makes that mistake impossible.
func (f *Frame) Service() (Service, bool) {
	if !f.First() {
		return Service{}, false
	}
	return f.service, true
}
