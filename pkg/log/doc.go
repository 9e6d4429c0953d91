// Package log provides structured protocol logging for the glasses link.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, frame, assembly,
// session). It is separate from operational logging (slog) - protocol
// capture provides a complete machine-readable event trace for debugging
// reverse-engineered traffic.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For captures: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("session.hlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Frame: physical frames with fragment counters (FrameEvent)
//   - Assembly/Session: assembled messages (MessageEvent)
//   - Connection and sequence lifecycle (StateChangeEvent)
//
// Errors at any layer use a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with .hlog extension. The Reader type
// provides streaming, filtered access for offline analysis.
package log
