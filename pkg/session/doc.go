// Package session ties the protocol layers together for one
// connection.
//
// A Session owns the full inbound pipeline: raw chunks from the
// transport are deduplicated (both arm radios mirror traffic), decoded
// into frames, reassembled into logical messages, and then either
// matched to a pending request or published on the notification
// stream. Outbound, it allocates the sequence and message-id counters,
// fragments payloads to the frame size, and writes through the bound
// transport.
//
// Counters start at their observed post-pairing values (seq 0x08,
// message id 0x14) and reset whenever the link comes up, so a
// reconnect looks like a fresh session to the glasses.
//
// One Session serves one connection. Construct it, bind a transport,
// and hand it to the transport as its Handler:
//
//	sess := session.New(session.DefaultConfig())
//	ble := transport.NewBLECentral(sess, transport.DefaultBLEConfig())
//	sess.Bind(ble)
//	err := ble.Connect(ctx)
package session
