package command

import "github.com/hudlink-protocol/hudlink-go/pkg/wire"

// FieldFirmware is the System status response field carrying the
// firmware version string ("major.minor").
const FieldFirmware = 3

// StatusQueryPayload builds the System status request the handshake
// sends. The bridge reuses it after pairing to poll the firmware
// version.
func StatusQueryPayload(msgID uint32) []byte {
	return statusQuery(msgID)
}

// FirmwareString extracts the firmware version string from a System
// status response body. The boolean is false when the glasses did not
// report one; early firmware omits the field.
func FirmwareString(body []byte) (string, bool) {
	var s string
	var found bool
	_ = wire.Scan(body, func(f wire.Field) bool {
		if f.Number == FieldFirmware && f.Type == wire.TypeBytes {
			s = string(f.Data)
			found = true
			return false
		}
		return true
	})
	return s, found
}
