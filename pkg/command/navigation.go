package command

import (
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// Navigation commands.
const (
	NavCmdHeartbeat = 0
	NavCmdStartup   = 5
	NavCmdBasicInfo = 7
	NavCmdExit      = 12
)

// BasicInfo is one navigation HUD update. Empty strings leave the
// corresponding HUD field untouched.
type BasicInfo struct {
	// Direction indexes the turn arrow glyph.
	Direction uint64

	Distance       string
	Road           string
	SpendTime      string
	RemainDistance string
	ArrivalTime    string
	Speed          string

	WorkMethod uint64
}

// NavStartupPayload activates navigation mode.
func NavStartupPayload(msgID uint32) []byte {
	return navCommand(NavCmdStartup, msgID).Build()
}

// NavBasicInfoPayload pushes HUD data.
func NavBasicInfoPayload(msgID uint32, info BasicInfo) []byte {
	return navCommand(NavCmdBasicInfo, msgID).
		Embedded(5, func(b *wire.Builder) {
			b.Varint(1, info.Direction)
			if info.Distance != "" {
				b.String(2, info.Distance)
			}
			if info.Road != "" {
				b.String(3, info.Road)
			}
			if info.SpendTime != "" {
				b.String(4, info.SpendTime)
			}
			if info.RemainDistance != "" {
				b.String(5, info.RemainDistance)
			}
			if info.ArrivalTime != "" {
				b.String(6, info.ArrivalTime)
			}
			if info.Speed != "" {
				b.String(7, info.Speed)
			}
			b.Varint(8, info.WorkMethod)
		}).
		Build()
}

// NavHeartbeatPayload keeps navigation mode alive.
func NavHeartbeatPayload(msgID uint32) []byte {
	return navCommand(NavCmdHeartbeat, msgID).Build()
}

// NavExitPayload closes navigation mode.
func NavExitPayload(msgID uint32) []byte {
	return navCommand(NavCmdExit, msgID).Build()
}

func navCommand(cmd uint64, msgID uint32) *wire.Builder {
	return wire.NewBuilder().Varint(1, cmd).Varint(2, uint64(msgID))
}

// NavStartSequence activates navigation mode.
func NavStartSequence() sequence.Sequence {
	return sequence.Sequence{
		Name: "nav-start",
		Steps: []sequence.Step{{
			Name:      "startup",
			Service:   Navigation,
			Build:     NavStartupPayload,
			WaitAfter: 500 * time.Millisecond,
		}},
	}
}

// NavUpdateSequence pushes one HUD update.
func NavUpdateSequence(info BasicInfo) sequence.Sequence {
	return sequence.Sequence{
		Name: "nav-update",
		Steps: []sequence.Step{{
			Name:      "basic-info",
			Service:   Navigation,
			Build:     func(id uint32) []byte { return NavBasicInfoPayload(id, info) },
			WaitAfter: 100 * time.Millisecond,
		}},
	}
}

// NavStopSequence exits navigation mode.
func NavStopSequence() sequence.Sequence {
	return sequence.Sequence{
		Name: "nav-stop",
		Steps: []sequence.Step{{
			Name:      "exit",
			Service:   Navigation,
			Build:     NavExitPayload,
			WaitAfter: 300 * time.Millisecond,
		}},
	}
}
