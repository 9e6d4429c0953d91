// Package transport carries raw frame chunks to and from the glasses.
//
// The glasses expose one GATT write characteristic for commands and two
// notify characteristics for inbound traffic: the control channel
// (protocol responses) and the display channel (rendered display
// payloads). Both feed the same decode pipeline; the Channel value only
// records which one delivered a chunk.
//
// BLECentral is the production implementation: it scans for the
// glasses by advertised name, connects, subscribes to both notify
// characteristics, and hands every notification chunk to the Handler.
// Tests use in-memory implementations of the same interfaces instead.
package transport
