package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// frameOut is a typical outbound command frame event: one teleprompter
// page as it leaves the session.
func frameOut(connID string, seq uint8) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Layer:        LayerFrame,
		Category:     CategoryMessage,
		Channel:      "control",
		Frame: &FrameEvent{
			Size:    0x2C,
			Seq:     seq,
			Service: "0x06-20",
			Data:    []byte{0xAA, 0x21, seq, 0x22, 0x01, 0x01, 0x06, 0x20},
		},
	}
}

// readBack decodes every event in the log file at path.
func readBack(t *testing.T, path string) []Event {
	t.Helper()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, ev)
	}
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(frameOut("conn-1", 0x08))
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.ConnectionID != "conn-1" {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, "conn-1")
	}
	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Seq != 0x08 {
		t.Errorf("Frame.Seq: got %#x, want 0x08", decoded.Frame.Seq)
	}
	if decoded.Frame.Service != "0x06-20" {
		t.Errorf("Frame.Service: got %q, want %q", decoded.Frame.Service, "0x06-20")
	}
}

func TestFileLoggerAppendsAcrossOpens(t *testing.T) {
	// The bridge reopens the same log on restart; the earlier session
	// must survive.
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger1, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger1.Log(frameOut("conn-1", 0x08))
	logger1.Close()

	logger2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger second open failed: %v", err)
	}
	logger2.Log(frameOut("conn-2", 0x09))
	logger2.Close()

	events := readBack(t, path)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ConnectionID != "conn-1" || events[1].ConnectionID != "conn-2" {
		t.Errorf("connection ids out of order: %q, %q",
			events[0].ConnectionID, events[1].ConnectionID)
	}
}

func TestFileLoggerAllEventShapes(t *testing.T) {
	// One of each payload variant the protocol layers emit.
	path := filepath.Join(t.TempDir(), "session.hlog")

	cmd := uint64(3)
	shapes := []Event{
		frameOut("conn-1", 0x08),
		{
			Timestamp:    time.Now(),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerAssembly,
			Category:     CategoryMessage,
			Message: &MessageEvent{
				Type:      MessageTypeResponse,
				Service:   "0x06-00",
				MessageID: 0x14,
				Command:   &cmd,
				Size:      620,
			},
		},
		{
			Timestamp:    time.Now(),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerSession,
			Category:     CategoryState,
			StateChange: &StateChangeEvent{
				Entity:   StateEntitySequence,
				OldState: "RUNNING",
				NewState: "COMPLETED",
			},
		},
		{
			Timestamp:    time.Now(),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerFrame,
			Category:     CategoryError,
			Error: &ErrorEventData{
				Layer:   LayerFrame,
				Message: "crc mismatch",
				Context: "dropping frame",
			},
		},
	}

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, ev := range shapes {
		logger.Log(ev)
	}
	logger.Close()

	events := readBack(t, path)
	if len(events) != len(shapes) {
		t.Fatalf("expected %d events, got %d", len(shapes), len(events))
	}
	if events[1].Message == nil || events[1].Message.MessageID != 0x14 {
		t.Errorf("message event did not survive the round trip: %+v", events[1].Message)
	}
	if events[1].Message != nil && (events[1].Message.Command == nil || *events[1].Message.Command != cmd) {
		t.Errorf("command did not survive the round trip: %+v", events[1].Message)
	}
	if events[2].StateChange == nil || events[2].StateChange.Entity != StateEntitySequence {
		t.Errorf("state change did not survive the round trip: %+v", events[2].StateChange)
	}
	if events[3].Error == nil || events[3].Error.Message != "crc mismatch" {
		t.Errorf("error event did not survive the round trip: %+v", events[3].Error)
	}
}

func TestFileLoggerConcurrentWriters(t *testing.T) {
	// The session logs from its own goroutines while sequences run.
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const writers = 10
	const eventsEach = 100

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsEach; j++ {
				logger.Log(frameOut("conn-"+string(rune('A'+id)), uint8(j)))
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	events := readBack(t, path)
	if len(events) != writers*eventsEach {
		t.Errorf("event count: got %d, want %d", len(events), writers*eventsEach)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.hlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(frameOut("conn-1", 0x08))

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close is discarded, not a panic.
	logger.Log(frameOut("conn-1", 0x09))

	if got := readBack(t, path); len(got) != 1 {
		t.Errorf("expected 1 event after close, got %d", len(got))
	}
}
