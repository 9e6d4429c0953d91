// Package assembly turns physical frames back into logical messages.
//
// The glasses send larger responses as fragment runs: up to 20 frames
// sharing one seq value, with 1-based fragment counters. A Reassembler
// collects one run at a time and emits the assembled message when the
// last fragment arrives. Routing uses fragment continuity only, never the
// service bytes, because continuation fragments do not carry any.
//
// Fragment runs that stall are discarded after a timeout, and a new first
// fragment always wins over an unfinished run. Neither case is fatal to
// the connection; both are reported through the protocol log.
//
// The glasses also mirror traffic across the left and right arm radios,
// so the same frame can arrive twice. A Deduper in front of the
// reassembler suppresses these duplicates by content hash.
package assembly
