package wire

import "encoding/binary"

// Builder assembles a TLV payload field by field. The zero value is
// ready to use. Methods return the builder for chaining.
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with capacity preallocated.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 64)}
}

func (b *Builder) tag(number uint32, wireType uint8) {
	b.buf = binary.AppendUvarint(b.buf, uint64(number)<<3|uint64(wireType))
}

// Varint appends a varint field.
func (b *Builder) Varint(number uint32, value uint64) *Builder {
	b.tag(number, TypeVarint)
	b.buf = binary.AppendUvarint(b.buf, value)
	return b
}

// Bytes appends a length-delimited field.
func (b *Builder) Bytes(number uint32, data []byte) *Builder {
	b.tag(number, TypeBytes)
	b.buf = binary.AppendUvarint(b.buf, uint64(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

// String appends a length-delimited UTF-8 string field.
func (b *Builder) String(number uint32, s string) *Builder {
	b.tag(number, TypeBytes)
	b.buf = binary.AppendUvarint(b.buf, uint64(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// Embedded appends a nested message field built by fn.
func (b *Builder) Embedded(number uint32, fn func(*Builder)) *Builder {
	nested := NewBuilder()
	fn(nested)
	return b.Bytes(number, nested.Build())
}

// Raw appends pre-encoded field bytes verbatim.
func (b *Builder) Raw(data []byte) *Builder {
	b.buf = append(b.buf, data...)
	return b
}

// Build returns the encoded payload.
func (b *Builder) Build() []byte {
	return b.buf
}
