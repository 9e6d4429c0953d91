package command

import "github.com/hudlink-protocol/hudlink-go/pkg/frame"

// Known services. Request services use minor 0x20; responses come back
// on minor 0x00 or 0x01 of the same major.
var (
	// System is the general control service (sync, wake).
	System = frame.Service{Major: 0x80, Minor: 0x00}

	// Auth carries the pairing handshake.
	Auth = frame.Service{Major: 0x80, Minor: 0x20}

	// Widget drives home-screen widgets.
	Widget = frame.Service{Major: 0x01, Minor: 0x20}

	// Teleprompter carries paged scrolling text.
	Teleprompter = frame.Service{Major: 0x06, Minor: 0x20}

	// Navigation drives the turn-by-turn HUD.
	Navigation = frame.Service{Major: 0x08, Minor: 0x20}

	// Dashboard is the glasses' home dashboard service.
	Dashboard = frame.Service{Major: 0x0A, Minor: 0x20}

	// Conversate is the live transcription display.
	Conversate = frame.Service{Major: 0x0B, Minor: 0x20}

	// DisplayConfig sets up display regions before teleprompter use.
	DisplayConfig = frame.Service{Major: 0x0E, Minor: 0x20}
)
