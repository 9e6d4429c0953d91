package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderParseRoundTrip(t *testing.T) {
	payload := NewBuilder().
		Varint(1, 5).
		Varint(2, 20).
		String(3, "turn left").
		Bytes(7, []byte{0xDE, 0xAD}).
		Build()

	fields, err := Parse(payload)
	require.NoError(t, err)
	require.Len(t, fields, 4)

	assert.Equal(t, uint32(1), fields[0].Number)
	assert.Equal(t, uint64(5), fields[0].Value)
	assert.Equal(t, uint32(2), fields[1].Number)
	assert.Equal(t, uint64(20), fields[1].Value)
	assert.Equal(t, uint32(3), fields[2].Number)
	assert.Equal(t, []byte("turn left"), fields[2].Data)
	assert.Equal(t, uint32(7), fields[3].Number)
	assert.Equal(t, []byte{0xDE, 0xAD}, fields[3].Data)
}

func TestBuilderEmbedded(t *testing.T) {
	payload := NewBuilder().
		Varint(1, 1).
		Embedded(3, func(b *Builder) {
			b.Varint(1, 1).Bytes(2, []byte{0x08, 0x01})
		}).
		Build()

	fields, err := Parse(payload)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	inner, err := Parse(fields[1].Data)
	require.NoError(t, err)
	require.Len(t, inner, 2)
	assert.Equal(t, uint64(1), inner[0].Value)
	assert.Equal(t, []byte{0x08, 0x01}, inner[1].Data)
}

func TestBuilderKnownEncoding(t *testing.T) {
	// Field 1 varint 5, field 2 varint 20: the navigation startup payload.
	payload := NewBuilder().Varint(1, 5).Varint(2, 20).Build()
	assert.Equal(t, []byte{0x08, 0x05, 0x10, 0x14}, payload)
}

func TestBuilderMultiByteVarint(t *testing.T) {
	payload := NewBuilder().Varint(1, 300).Build()
	assert.Equal(t, []byte{0x08, 0xAC, 0x02}, payload)

	fields, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), fields[0].Value)
}

func TestCommandAndMessageID(t *testing.T) {
	payload := NewBuilder().
		Varint(1, 7).
		Varint(2, 20).
		Bytes(5, []byte("hud")).
		Build()

	cmd, ok := Command(payload)
	require.True(t, ok)
	assert.Equal(t, uint64(7), cmd)

	id, ok := MessageID(payload)
	require.True(t, ok)
	assert.Equal(t, uint32(20), id)
}

func TestMessageIDAbsent(t *testing.T) {
	payload := NewBuilder().Varint(1, 7).Build()

	_, ok := MessageID(payload)
	assert.False(t, ok)
}

func TestMessageIDSkipsBytesField(t *testing.T) {
	// A bytes field numbered 2 must not be mistaken for the message id.
	payload := NewBuilder().
		Bytes(2, []byte{0x01}).
		Varint(2, 33).
		Build()

	id, ok := MessageID(payload)
	require.True(t, ok)
	assert.Equal(t, uint32(33), id)
}

func TestParseCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{
			name:    "truncated varint",
			payload: []byte{0x08, 0x80},
			wantErr: ErrTruncated,
		},
		{
			name:    "truncated bytes field",
			payload: []byte{0x12, 0x05, 0x01},
			wantErr: ErrTruncated,
		},
		{
			name:    "zero field number",
			payload: []byte{0x00, 0x01},
			wantErr: ErrInvalidField,
		},
		{
			name:    "group wire type",
			payload: []byte{0x0B},
			wantErr: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseReturnsFieldsBeforeCorruption(t *testing.T) {
	payload := append(NewBuilder().Varint(1, 5).Build(), 0x80)

	fields, err := Parse(payload)
	assert.Error(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, uint64(5), fields[0].Value)
}

func TestParseEmpty(t *testing.T) {
	fields, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
