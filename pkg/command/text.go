package command

import (
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// Conversate commands.
const (
	conversateCmdConfig     = 1
	conversateCmdTranscript = 5
)

// ConversateConfigPayload opens a transcription session with display
// defaults enabled.
func ConversateConfigPayload(msgID uint32) []byte {
	return wire.NewBuilder().
		Varint(1, conversateCmdConfig).
		Varint(2, uint64(msgID)).
		Embedded(3, func(b *wire.Builder) {
			b.Varint(1, 1)
			b.Embedded(2, func(b *wire.Builder) {
				b.Varint(1, 1).Varint(2, 1).Varint(3, 1).Varint(4, 1)
			})
		}).
		Build()
}

// TranscriptionPayload pushes transcript text. Non-final text updates
// the live line; final text commits it.
func TranscriptionPayload(msgID uint32, text string, final bool) []byte {
	finalFlag := uint64(0)
	if final {
		finalFlag = 1
	}
	return wire.NewBuilder().
		Varint(1, conversateCmdTranscript).
		Varint(2, uint64(msgID)).
		Embedded(7, func(b *wire.Builder) {
			b.String(1, text).Varint(2, finalFlag)
		}).
		Build()
}

// TextSequence shows text through the conversate service: open the
// session, clear the live line, then commit the text. The waits match
// the vendor app.
func TextSequence(text string) sequence.Sequence {
	return sequence.Sequence{
		Name: "conversate-text",
		Steps: []sequence.Step{
			{
				Name:      "config",
				Service:   Conversate,
				Build:     ConversateConfigPayload,
				WaitAfter: 300 * time.Millisecond,
			},
			{
				Name:      "clear",
				Service:   Conversate,
				Build:     func(id uint32) []byte { return TranscriptionPayload(id, "", false) },
				WaitAfter: 300 * time.Millisecond,
			},
			{
				Name:      "commit",
				Service:   Conversate,
				Build:     func(id uint32) []byte { return TranscriptionPayload(id, text, true) },
				WaitAfter: 500 * time.Millisecond,
			},
		},
	}
}
