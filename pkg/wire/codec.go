package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire types used by the protocol.
const (
	// TypeVarint is a base-128 varint value.
	TypeVarint = 0

	// TypeFixed64 is a little-endian 8-byte value.
	TypeFixed64 = 1

	// TypeBytes is a length-delimited byte string.
	TypeBytes = 2

	// TypeFixed32 is a little-endian 4-byte value.
	TypeFixed32 = 5
)

// Field numbers with protocol-wide meaning on request services.
const (
	// FieldCommand carries the command number (field 1).
	FieldCommand = 1

	// FieldMessageID carries the correlation message id (field 2).
	FieldMessageID = 2
)

// Codec errors.
var (
	// ErrTruncated indicates the payload ends inside a field.
	ErrTruncated = errors.New("truncated payload")

	// ErrVarintOverflow indicates a varint longer than 64 bits.
	ErrVarintOverflow = errors.New("varint overflow")

	// ErrInvalidField indicates a zero field number.
	ErrInvalidField = errors.New("invalid field number")

	// ErrUnsupportedType indicates a wire type the protocol never uses.
	ErrUnsupportedType = errors.New("unsupported wire type")
)

// Field is one decoded TLV field.
type Field struct {
	// Number is the field number.
	Number uint32

	// Type is the wire type.
	Type uint8

	// Value holds varint and fixed-width values.
	Value uint64

	// Data holds length-delimited values. It aliases the parsed payload.
	Data []byte
}

// Uvarint decodes a varint from the start of data and returns the value
// and the number of bytes consumed.
func Uvarint(data []byte) (uint64, int, error) {
	v, n := binary.Uvarint(data)
	if n == 0 {
		return 0, 0, ErrTruncated
	}
	if n < 0 {
		return 0, 0, ErrVarintOverflow
	}
	return v, n, nil
}

// Scan walks the fields of payload in order, calling fn for each.
// Scanning stops early when fn returns false. An error is returned when
// the payload is corrupt; fields delivered before the error are valid.
func Scan(payload []byte, fn func(Field) bool) error {
	i := 0
	for i < len(payload) {
		tag, n, err := Uvarint(payload[i:])
		if err != nil {
			return fmt.Errorf("field tag at offset %d: %w", i, err)
		}
		i += n

		f := Field{Number: uint32(tag >> 3), Type: uint8(tag & 0x07)}
		if f.Number == 0 {
			return fmt.Errorf("offset %d: %w", i-n, ErrInvalidField)
		}

		switch f.Type {
		case TypeVarint:
			v, n, err := Uvarint(payload[i:])
			if err != nil {
				return fmt.Errorf("field %d value: %w", f.Number, err)
			}
			f.Value = v
			i += n

		case TypeBytes:
			length, n, err := Uvarint(payload[i:])
			if err != nil {
				return fmt.Errorf("field %d length: %w", f.Number, err)
			}
			i += n
			if length > uint64(len(payload)-i) {
				return fmt.Errorf("field %d data: %w", f.Number, ErrTruncated)
			}
			f.Data = payload[i : i+int(length)]
			i += int(length)

		case TypeFixed32:
			if len(payload)-i < 4 {
				return fmt.Errorf("field %d: %w", f.Number, ErrTruncated)
			}
			f.Value = uint64(binary.LittleEndian.Uint32(payload[i:]))
			i += 4

		case TypeFixed64:
			if len(payload)-i < 8 {
				return fmt.Errorf("field %d: %w", f.Number, ErrTruncated)
			}
			f.Value = binary.LittleEndian.Uint64(payload[i:])
			i += 8

		default:
			return fmt.Errorf("field %d: %w: %d", f.Number, ErrUnsupportedType, f.Type)
		}

		if !fn(f) {
			return nil
		}
	}
	return nil
}

// Parse decodes all fields of payload.
func Parse(payload []byte) ([]Field, error) {
	var fields []Field
	err := Scan(payload, func(f Field) bool {
		fields = append(fields, f)
		return true
	})
	return fields, err
}

// Command extracts the command number (field 1) from a request payload.
// The boolean is false when the field is absent or the payload is corrupt
// before it.
func Command(payload []byte) (uint64, bool) {
	return scanVarint(payload, FieldCommand)
}

// MessageID extracts the correlation message id (field 2).
func MessageID(payload []byte) (uint32, bool) {
	v, ok := scanVarint(payload, FieldMessageID)
	return uint32(v), ok
}

func scanVarint(payload []byte, number uint32) (uint64, bool) {
	var value uint64
	var found bool
	_ = Scan(payload, func(f Field) bool {
		if f.Number == number && f.Type == TypeVarint {
			value = f.Value
			found = true
			return false
		}
		return true
	})
	return value, found
}
