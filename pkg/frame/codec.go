package frame

import (
	"encoding/binary"
	"fmt"
)

// Encode splits body into fragments and encodes one physical frame per
// fragment. All fragments share seq, carry 1-based fragment counters and
// their own CRC. The service id appears only on the first fragment.
//
// Fragment payloads are cut uniformly at maxFrameSize-10 bytes (header
// plus CRC), so the fragment count is ceil(len(body)/chunk). An empty body
// still produces one frame.
func Encode(typ byte, seq uint8, svc Service, body []byte, maxFrameSize int) ([][]byte, error) {
	if typ != TypeCommand && typ != TypeResponse {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, typ)
	}
	// The length byte counts payload+CRC and cannot exceed 255.
	if maxFrameSize > 255+HeaderSize {
		maxFrameSize = 255 + HeaderSize
	}

	chunk := maxFrameSize - HeaderSize - ChecksumSize
	if chunk < 1 {
		return nil, fmt.Errorf("%w: %d", ErrFrameSizeTooSmall, maxFrameSize)
	}

	total := (len(body) + chunk - 1) / chunk
	if total == 0 {
		total = 1
	}
	if total > MaxFragments {
		return nil, fmt.Errorf("%w: %d bytes need %d fragments", ErrBodyTooLarge, len(body), total)
	}

	frames := make([][]byte, 0, total)
	for i := 1; i <= total; i++ {
		start := (i - 1) * chunk
		end := start + chunk
		if end > len(body) {
			end = len(body)
		}
		frames = append(frames, encodeFragment(typ, seq, svc, uint8(total), uint8(i), body[start:end]))
	}
	return frames, nil
}

// encodeFragment encodes a single physical frame.
func encodeFragment(typ byte, seq uint8, svc Service, total, index uint8, body []byte) []byte {
	headerSize := HeaderSize
	if index > 1 {
		headerSize = ContHeaderSize
	}

	buf := make([]byte, 0, headerSize+len(body)+ChecksumSize)
	buf = append(buf, Magic, typ, seq, 0, total, index)
	if index == 1 {
		buf = append(buf, svc.Major, svc.Minor)
	}
	buf = append(buf, body...)

	// Length counts every byte after the 8-byte header, CRC included.
	buf = binary.LittleEndian.AppendUint16(buf, Checksum(body))
	buf[3] = uint8(len(buf) - HeaderSize)
	return buf
}

// Decode parses and validates one physical frame. The returned Frame owns
// a copy of the body. raw must contain exactly one frame; trailing bytes
// are a length error.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	if raw[0] != Magic {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadMagic, raw[0])
	}

	typ := raw[1]
	if typ != TypeCommand && typ != TypeResponse {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, typ)
	}

	if declared := int(raw[3]); len(raw) != HeaderSize+declared {
		return nil, fmt.Errorf("%w: header declares %d bytes, frame has %d",
			ErrLengthOutOfRange, HeaderSize+declared, len(raw))
	}

	total, index := raw[4], raw[5]
	if total < 1 || total > MaxFragments || index < 1 || index > total {
		return nil, fmt.Errorf("%w: fragment %d/%d", ErrFragmentOutOfRange, index, total)
	}

	bodyStart := HeaderSize
	if index > 1 {
		bodyStart = ContHeaderSize
	}
	body := raw[bodyStart : len(raw)-ChecksumSize]

	want := binary.LittleEndian.Uint16(raw[len(raw)-ChecksumSize:])
	if got := Checksum(body); got != want {
		return nil, fmt.Errorf("%w: computed 0x%04X, frame carries 0x%04X",
			ErrChecksumMismatch, got, want)
	}

	f := &Frame{
		Type:      typ,
		Seq:       raw[2],
		FragTotal: total,
		FragIndex: index,
		Body:      append([]byte(nil), body...),
	}
	if index == 1 {
		f.service = Service{Major: raw[6], Minor: raw[7]}
	}
	return f, nil
}
