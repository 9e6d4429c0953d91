// Package connection supervises the BLE link lifecycle.
//
// The glasses drop the link whenever they fold shut or leave radio
// range, so link loss is routine rather than exceptional. The Manager
// separates the two ways a link ends: LinkLost starts automatic
// recovery, while Disconnect and Close are deliberate and stop it.
//
// # Recovery
//
// Recovery retries the full link attempt (scan, connect, subscribe,
// pairing handshake) with an exponential, jittered ramp:
//
//	delay(n) = Initial * Multiplier^(n-1), capped at Max
//	actual   = delay(n) + random(0, delay(n) * Jitter)
//
// The defaults ramp 500ms, 1s, 2s, 4s, 8s, 16s, then hold at 30s.
// A successful attempt resets the ramp. Each attempt is bounded by
// AttemptTimeout so a scan that never finds the glasses cannot wedge
// the loop.
//
// State transitions and failed recovery attempts are reported through
// the protocol event log, tagged with the session's connection id.
package connection
