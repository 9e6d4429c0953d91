// Package frame implements the binary frame codec for the glasses link.
//
// Every GATT write and notification carries exactly one frame:
//
//	┌──────┬──────┬──────┬──────┬──────────┬──────────┬───────────────┬─────────┬───────────┐
//	│ 0xAA │ type │ seq  │ len  │ fragTotal│ fragIndex│ service (2B)  │ payload │ CRC16 LE  │
//	└──────┴──────┴──────┴──────┴──────────┴──────────┴───────────────┴─────────┴───────────┘
//
// type is 0x21 for app→glasses commands and 0x12 for glasses→app responses.
// len counts every byte after the 8-byte header, so a whole frame is
// 8+len bytes. The CRC (CRC-16/CCITT, poly 0x1021, init 0xFFFF) covers the
// fragment body and is appended little-endian.
//
// Messages larger than one frame are split across up to 20 fragments that
// share one seq value. fragIndex/fragTotal are 1-based. Only the first
// fragment carries the service id: on continuation fragments the two bytes
// at the service position are payload, so their body starts at offset 6.
// Frame.Service reflects this and reports the service only on first
// fragments.
package frame
