package transport

import (
	"fmt"

	"tinygo.org/x/bluetooth"
)

// The glasses use a vendor UUID range with 16-bit characteristic ids.
const uuidBase = "00002760-08c2-11e1-9073-0e8ac72e%04x"

// GATT characteristic ids.
const (
	// CharWrite accepts command frames (write without response).
	CharWrite = 0x5401

	// CharControlNotify delivers protocol responses.
	CharControlNotify = 0x5402

	// CharDisplayNotify delivers rendered display payloads.
	CharDisplayNotify = 0x6402
)

// CharacteristicUUID returns the full UUID for a 16-bit characteristic
// id from the vendor range.
func CharacteristicUUID(id uint16) (bluetooth.UUID, error) {
	return bluetooth.ParseUUID(fmt.Sprintf(uuidBase, id))
}
