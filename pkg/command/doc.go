// Package command builds the application payloads the glasses
// understand: the auth handshake, conversate text, teleprompter
// content, and the navigation HUD.
//
// Builders construct TLV payloads only and do no I/O; they take the
// message id allocated by the session. Feature workflows are exposed
// as sequence.Sequence values reproducing the packet ordering and
// timing the device accepts. The payload constants come from captures
// of the vendor app; several of them (display config, teleprompter
// geometry) are opaque blobs replayed verbatim.
package command
