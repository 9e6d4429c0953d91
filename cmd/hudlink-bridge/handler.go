package main

import (
	"github.com/hudlink-protocol/hudlink-go/pkg/session"
	"github.com/hudlink-protocol/hudlink-go/pkg/transport"
)

// linkHandler forwards transport events to the session and reports
// link loss to the bridge so the manager can reconnect.
type linkHandler struct {
	sess *session.Session
	lost func()
}

func (h *linkHandler) OnChunk(ch transport.Channel, chunk []byte) {
	h.sess.OnChunk(ch, chunk)
}

func (h *linkHandler) OnConnect() {
	h.sess.OnConnect()
}

func (h *linkHandler) OnDisconnect(err error) {
	h.sess.OnDisconnect(err)
	if h.lost != nil {
		h.lost()
	}
}

var _ transport.Handler = (*linkHandler)(nil)
