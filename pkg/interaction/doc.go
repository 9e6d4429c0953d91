// Package interaction correlates requests with their responses.
//
// Requests go out on a `*-0x20` service and carry a message id in their
// payload. The glasses answer on the paired plain service (`*-0x00` or
// `*-0x01`) echoing the same id, so the pair (service family, message id)
// links a response back to its request. A Correlator keeps the pending
// requests and hands each incoming response to the waiter that claimed
// its id, or reports it unclaimed so the caller can treat it as an
// unsolicited notification.
//
// Waits are bounded by a timeout and by the caller's context. When the
// connection drops, CancelAll fails every pending wait at once.
package interaction
