package command

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// Page geometry the glasses render.
const (
	PageCharsPerLine = 25
	PageLinesPerPage = 10
	minPageCount     = 14
)

// displayConfigBlob is the display region setup captured from the
// vendor app. Opaque; replayed verbatim.
var displayConfigBlob = mustHex(
	"0801121308021090" + "4E1D00E094442500" + "000000280030001213" +
		"0803100D0F1D0040" + "8D44250000000028" + "0030001212080410" +
		"001D0000884225" + "00000000280030" + "001212080510001D" +
		"00009242250000" + "A242280030001212" + "080610001D0000C6" +
		"42250000C4422800" + "30001800")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("bad hex constant: %v", err))
	}
	return b
}

// DisplayConfigPayload sets up the display regions the teleprompter
// renders into.
func DisplayConfigPayload(msgID uint32) []byte {
	return wire.NewBuilder().
		Varint(1, 2).
		Varint(2, uint64(msgID)).
		Bytes(4, displayConfigBlob).
		Build()
}

// TeleprompterInitPayload opens a teleprompter session sized for
// totalLines lines of content.
func TeleprompterInitPayload(msgID uint32, totalLines int) []byte {
	contentHeight := (totalLines * 2665) / 140
	if contentHeight < 1 {
		contentHeight = 1
	}
	return wire.NewBuilder().
		Varint(1, 1).
		Varint(2, uint64(msgID)).
		Embedded(3, func(b *wire.Builder) {
			b.Varint(1, 1)
			b.Embedded(2, func(b *wire.Builder) {
				b.Varint(1, 1).Varint(2, 0).Varint(3, 0).
					Varint(4, 267).
					Varint(5, uint64(contentHeight)).
					Varint(6, 230).Varint(7, 1294).
					Varint(8, 5).Varint(9, 0)
			})
		}).
		Build()
}

// ContentPagePayload pushes one page of teleprompter text.
func ContentPagePayload(msgID uint32, page int, text string) []byte {
	return wire.NewBuilder().
		Varint(1, 3).
		Varint(2, uint64(msgID)).
		Embedded(5, func(b *wire.Builder) {
			// The renderer expects a leading newline on every page.
			b.Varint(1, uint64(page)).
				Varint(2, PageLinesPerPage).
				String(3, "\n"+text)
		}).
		Build()
}

// MarkerPayload separates the first page batch from the rest.
func MarkerPayload(msgID uint32) []byte {
	return wire.NewBuilder().
		Varint(1, 0xFF).
		Varint(2, uint64(msgID)).
		Embedded(13, func(b *wire.Builder) {
			b.Varint(1, 0).Varint(2, 6)
		}).
		Build()
}

// SyncPayload commits the pushed content. Sent on the System service.
func SyncPayload(msgID uint32) []byte {
	return wire.NewBuilder().
		Varint(1, 14).
		Varint(2, uint64(msgID)).
		Bytes(13, nil).
		Build()
}

// FormatPages word-wraps title and message into fixed-geometry pages:
// PageCharsPerLine columns, PageLinesPerPage lines, padded to at least
// 14 pages because the glasses pre-allocate that many.
func FormatPages(title, message string) []string {
	var lines []string
	if title != "" {
		lines = append(lines, strings.ToUpper(title))
		lines = append(lines, strings.Repeat("-", 20))
	}

	for _, paragraph := range strings.Split(message, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			lines = append(lines, "")
			continue
		}
		current := ""
		for _, word := range strings.Fields(paragraph) {
			if len(current)+len(word)+1 > PageCharsPerLine {
				if current != "" {
					lines = append(lines, strings.TrimSpace(current))
				}
				current = word + " "
			} else {
				current += word + " "
			}
		}
		if strings.TrimSpace(current) != "" {
			lines = append(lines, strings.TrimSpace(current))
		}
	}

	for len(lines) < PageLinesPerPage {
		lines = append(lines, " ")
	}

	var pages []string
	for i := 0; i < len(lines); i += PageLinesPerPage {
		page := lines[i:min(i+PageLinesPerPage, len(lines))]
		for len(page) < PageLinesPerPage {
			page = append(page, " ")
		}
		pages = append(pages, strings.Join(page, "\n")+" \n")
	}

	emptyPage := strings.Join(blankLines(PageLinesPerPage), "\n") + " \n"
	for len(pages) < minPageCount {
		pages = append(pages, emptyPage)
	}
	return pages
}

func blankLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = " "
	}
	return lines
}

// TeleprompterSequence shows paged text: display config, session init,
// the first ten pages, a batch marker, the remaining pages, and a
// final sync. Ordering and waits match the vendor app.
func TeleprompterSequence(title, body string) sequence.Sequence {
	pages := FormatPages(title, body)

	totalLines := 0
	for _, p := range pages {
		for _, ln := range strings.Split(p, "\n") {
			if strings.TrimSpace(ln) != "" {
				totalLines++
			}
		}
	}

	steps := []sequence.Step{
		{
			Name:      "display-config",
			Service:   DisplayConfig,
			Build:     DisplayConfigPayload,
			WaitAfter: 300 * time.Millisecond,
		},
		{
			Name:      "init",
			Service:   Teleprompter,
			Build:     func(id uint32) []byte { return TeleprompterInitPayload(id, totalLines) },
			WaitAfter: 500 * time.Millisecond,
		},
	}

	// The glasses take the first ten pages up front, the rest after
	// the marker.
	firstBatch := min(10, len(pages))
	for i := 0; i < firstBatch; i++ {
		steps = append(steps, pageStep(i, pages[i]))
	}
	steps = append(steps, sequence.Step{
		Name:      "marker",
		Service:   Teleprompter,
		Build:     MarkerPayload,
		WaitAfter: 50 * time.Millisecond,
	})
	for i := firstBatch; i < len(pages); i++ {
		steps = append(steps, pageStep(i, pages[i]))
	}
	steps = append(steps, sequence.Step{
		Name:      "sync",
		Service:   System,
		Build:     SyncPayload,
		WaitAfter: 100 * time.Millisecond,
	})

	return sequence.Sequence{Name: "teleprompter", Steps: steps}
}

func pageStep(page int, text string) sequence.Step {
	return sequence.Step{
		Name:      fmt.Sprintf("page-%d", page),
		Service:   Teleprompter,
		Build:     func(id uint32) []byte { return ContentPagePayload(id, page, text) },
		WaitAfter: 50 * time.Millisecond,
	}
}
