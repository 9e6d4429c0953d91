package transport

import "fmt"

// Channel identifies which notify characteristic delivered a chunk.
type Channel int

const (
	// ChannelControl carries protocol responses and notifications.
	ChannelControl Channel = iota

	// ChannelDisplay carries rendered display payloads.
	ChannelDisplay
)

func (c Channel) String() string {
	switch c {
	case ChannelControl:
		return "control"
	case ChannelDisplay:
		return "display"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}
