package transport

// Handler receives transport events. Implemented by session.Session.
//
// OnChunk is called from the notification callback; implementations
// must not block in it.
type Handler interface {
	// OnChunk delivers one raw notification chunk.
	OnChunk(ch Channel, chunk []byte)

	// OnConnect signals that the link is up and subscribed.
	OnConnect()

	// OnDisconnect signals that the link is gone. err is nil on a
	// deliberate Close.
	OnDisconnect(err error)
}

// Transport writes raw frame bytes to the glasses.
// Implemented by BLECentral and by the test simulator.
type Transport interface {
	// Write sends one physical frame. Frames over the negotiated MTU
	// are the caller's problem; the codec sizes fragments to fit.
	Write(data []byte) error

	// Close tears the link down.
	Close() error
}

// Compile-time interface satisfaction check.
var _ Transport = (*BLECentral)(nil)
