// Package wire implements the TLV payload encoding carried inside frames.
//
// Payloads are protobuf-compatible field streams: each field is a varint
// tag (field number shifted left by 3, ORed with the wire type) followed
// by the value. Only the scalar wire types observed on the link are
// supported.
//
// Two field numbers have protocol-wide meaning on request services:
// field 1 is the command and field 2 the message id used for
// request/response correlation.
package wire
