package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

func TestFormatFrameEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerFrame,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:    128,
			Seq:     0x09,
			Service: "0x06-20",
			Data:    []byte{0xaa, 0x21, 0x09, 0x04},
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	// Check timestamp format
	if !strings.Contains(output, "2026-01-28T10:15:32.123456Z") {
		t.Errorf("expected RFC3339Nano timestamp, got: %s", output)
	}

	// Check connection ID (shortened)
	if !strings.Contains(output, "[conn:abc12345]") {
		t.Errorf("expected shortened connection ID, got: %s", output)
	}

	// Check direction
	if !strings.Contains(output, "OUT") {
		t.Errorf("expected OUT direction, got: %s", output)
	}

	// Check layer
	if !strings.Contains(output, "FRAME") {
		t.Errorf("expected FRAME layer, got: %s", output)
	}

	// Check frame info
	if !strings.Contains(output, "Frame") {
		t.Errorf("expected Frame label, got: %s", output)
	}
	if !strings.Contains(output, "128 bytes") {
		t.Errorf("expected frame size, got: %s", output)
	}
	if !strings.Contains(output, "Seq: 9") {
		t.Errorf("expected sequence counter, got: %s", output)
	}
	if !strings.Contains(output, "Service: 0x06-20") {
		t.Errorf("expected service id, got: %s", output)
	}
}

func TestFormatDuplicateFrameEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC),
		Direction: log.DirectionIn,
		Layer:     log.LayerFrame,
		Category:  log.CategoryMessage,
		Channel:   "display",
		Frame: &log.FrameEvent{
			Size:      32,
			Seq:       0x12,
			Duplicate: true,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Frame(dup)") {
		t.Errorf("expected duplicate marker, got: %s", output)
	}
	if !strings.Contains(output, "(display)") {
		t.Errorf("expected channel, got: %s", output)
	}
}

func TestFormatFragmentedFrameEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC),
		Direction: log.DirectionOut,
		Layer:     log.LayerFrame,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      180,
			Seq:       0x0a,
			FragIndex: 2,
			FragTotal: 3,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Fragment: 2/3") {
		t.Errorf("expected fragment position, got: %s", output)
	}
}

func TestFormatMessageEventRequest(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	cmd := uint64(1)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			Service:   "0x06-20",
			MessageID: 0x15,
			Command:   &cmd,
			Size:      24,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	// Check message type
	if !strings.Contains(output, "REQUEST") {
		t.Errorf("expected REQUEST type, got: %s", output)
	}

	// Check message ID
	if !strings.Contains(output, "MessageID: 0x15") {
		t.Errorf("expected MessageID: 0x15, got: %s", output)
	}

	// Check command and service
	if !strings.Contains(output, "Command: 1") {
		t.Errorf("expected Command: 1, got: %s", output)
	}
	if !strings.Contains(output, "Service: 0x06-20") {
		t.Errorf("expected Service: 0x06-20, got: %s", output)
	}
}

func TestFormatMessageEventNotification(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 125789000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:    log.MessageTypeNotification,
			Service: "0x0B-00",
			Size:    8,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "NOTIFICATION") {
		t.Errorf("expected NOTIFICATION type, got: %s", output)
	}
	if !strings.Contains(output, "8 bytes") {
		t.Errorf("expected payload size, got: %s", output)
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 30, 0, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: "CONNECTING",
			NewState: "CONNECTED",
			Reason:   "link established",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	// Check category
	if !strings.Contains(output, "State") {
		t.Errorf("expected State category, got: %s", output)
	}

	// Check entity
	if !strings.Contains(output, "CONNECTION") {
		t.Errorf("expected CONNECTION entity, got: %s", output)
	}

	// Check transition
	if !strings.Contains(output, "CONNECTING -> CONNECTED") {
		t.Errorf("expected state transition, got: %s", output)
	}
	if !strings.Contains(output, "link established") {
		t.Errorf("expected reason, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 1, 28, 10, 15, 35, 0, time.UTC),
		Direction: log.DirectionIn,
		Layer:     log.LayerFrame,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerFrame,
			Message: "crc mismatch",
			Context: "decoding frame",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Error") {
		t.Errorf("expected Error label, got: %s", output)
	}
	if !strings.Contains(output, "crc mismatch") {
		t.Errorf("expected error message, got: %s", output)
	}
	if !strings.Contains(output, "decoding frame") {
		t.Errorf("expected error context, got: %s", output)
	}
}

func TestFilterByLayer(t *testing.T) {
	events := []log.Event{
		{Layer: log.LayerTransport, Category: log.CategoryMessage},
		{Layer: log.LayerFrame, Category: log.CategoryMessage},
		{Layer: log.LayerSession, Category: log.CategoryMessage},
	}

	frameLayer := log.LayerFrame
	filter := ViewFilter{Layer: &frameLayer}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Layer != log.LayerFrame {
		t.Errorf("expected frame layer, got %v", filtered[0].Layer)
	}
}

func TestFilterByDirection(t *testing.T) {
	events := []log.Event{
		{Direction: log.DirectionIn, Category: log.CategoryMessage},
		{Direction: log.DirectionOut, Category: log.CategoryMessage},
		{Direction: log.DirectionIn, Category: log.CategoryMessage},
	}

	out := log.DirectionOut
	filter := ViewFilter{Direction: &out}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Direction != log.DirectionOut {
		t.Errorf("expected out direction, got %v", filtered[0].Direction)
	}
}

func TestFilterByCategory(t *testing.T) {
	events := []log.Event{
		{Category: log.CategoryMessage},
		{Category: log.CategoryState},
		{Category: log.CategoryError},
	}

	state := log.CategoryState
	filter := ViewFilter{Category: &state}

	filtered := filterEvents(events, filter)
	if len(filtered) != 1 {
		t.Errorf("expected 1 event, got %d", len(filtered))
	}
	if filtered[0].Category != log.CategoryState {
		t.Errorf("expected state category, got %v", filtered[0].Category)
	}
}

func TestParseLayer(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Layer
		wantErr  bool
	}{
		{"transport", log.LayerTransport, false},
		{"TRANSPORT", log.LayerTransport, false},
		{"frame", log.LayerFrame, false},
		{"assembly", log.LayerAssembly, false},
		{"session", log.LayerSession, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLayer(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLayer(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseLayer(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseLayer(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Direction
		wantErr  bool
	}{
		{"in", log.DirectionIn, false},
		{"IN", log.DirectionIn, false},
		{"out", log.DirectionOut, false},
		{"OUT", log.DirectionOut, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseDirection(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDirection(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseDirection(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseDirection(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Category
		wantErr  bool
	}{
		{"message", log.CategoryMessage, false},
		{"MESSAGE", log.CategoryMessage, false},
		{"state", log.CategoryState, false},
		{"error", log.CategoryError, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseCategory(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCategory(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseCategory(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("parseCategory(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		}
	}
}

func TestRunViewFiltersEvents(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerFrame, Category: log.CategoryMessage, Frame: &log.FrameEvent{Size: 32, Seq: 8}},
		{Timestamp: ts, Layer: log.LayerSession, Category: log.CategoryMessage, Message: &log.MessageEvent{Type: log.MessageTypeRequest, Service: "0x06-20", Size: 4}},
	}

	path := createTestLogFile(t, events)

	sessionLayer := log.LayerSession
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &sessionLayer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "FRAME") {
		t.Errorf("expected frame event filtered out, got: %s", output)
	}
	if !strings.Contains(output, "SESSION") {
		t.Errorf("expected session event, got: %s", output)
	}
}
