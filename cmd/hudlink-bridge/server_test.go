package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
)

// newTestServer wires a server to a simulated bridge with a fake clock
// so sequence pacing does not slow the tests down.
func newTestServer(t *testing.T) (*Server, *Bridge) {
	t.Helper()

	bridge := NewBridge(BridgeConfig{
		Simulate: true,
		Clock:    sequence.NewFakeClock(time.Unix(1700000000, 0)),
	})
	srv := NewServer(ServerConfig{Version: "test"}, bridge)
	t.Cleanup(func() { srv.Close() })
	return srv, bridge
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func connect(t *testing.T, srv *Server) {
	t.Helper()

	w := postJSON(t, srv, "/api/v1/connect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("connect failed: %d %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %q", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("Expected version 'test', got %q", resp["version"])
	}
}

func TestHealthEndpointMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestStatusBeforeConnect(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["connected"] != false {
		t.Errorf("Expected connected false, got %v", resp["connected"])
	}
	if resp["state"] != "DISCONNECTED" {
		t.Errorf("Expected state DISCONNECTED, got %v", resp["state"])
	}
}

func TestConnectAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["connected"] != true {
		t.Errorf("Expected connected true, got %v", resp["connected"])
	}
	if resp["state"] != "CONNECTED" {
		t.Errorf("Expected state CONNECTED, got %v", resp["state"])
	}
}

func TestConnectTwice(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	w := postJSON(t, srv, "/api/v1/connect", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502 for second connect, got %d", w.Code)
	}
}

func TestTextEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	w := postJSON(t, srv, "/api/v1/text", `{"text":"hello world"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["state"] != "completed" {
		t.Errorf("Expected state completed, got %v", resp["state"])
	}
	if resp["steps"] != float64(3) {
		t.Errorf("Expected 3 steps, got %v", resp["steps"])
	}
	if resp["soft_failures"] != float64(0) {
		t.Errorf("Expected 0 soft failures, got %v", resp["soft_failures"])
	}
}

func TestTextRequiresText(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	w := postJSON(t, srv, "/api/v1/text", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestTextWithoutConnection(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/text", `{"text":"hello"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["state"] != "aborted" {
		t.Errorf("Expected state aborted, got %v", resp["state"])
	}
}

func TestTeleprompterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	w := postJSON(t, srv, "/api/v1/teleprompter", `{"title":"Notes","body":"some text"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["state"] != "completed" {
		t.Errorf("Expected state completed, got %v", resp["state"])
	}
	// config + init + 14 pages + marker + sync
	if resp["steps"] != float64(18) {
		t.Errorf("Expected 18 steps, got %v", resp["steps"])
	}
}

func TestNavigationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	for _, path := range []string{
		"/api/v1/navigation/start",
		"/api/v1/navigation/stop",
	} {
		w := postJSON(t, srv, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}

	w := postJSON(t, srv, "/api/v1/navigation/update",
		`{"direction":2,"distance":"500m","road":"Main St"}`)
	if w.Code != http.StatusOK {
		t.Errorf("update: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRawEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	// Command 5 to the transcription service; the simulator echoes the
	// command and appended message id.
	w := postJSON(t, srv, "/api/v1/raw",
		`{"service":"0x0B-20","payload":"08 05","append_message_id":true,"want_ack":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["message_id"] != float64(0x14) {
		t.Errorf("Expected message_id 0x14, got %v", resp["message_id"])
	}
	// Echoed command 5, message id 0x14.
	if resp["response"] != "08051014" {
		t.Errorf("Unexpected response payload: %v", resp["response"])
	}
}

func TestRawEndpointBadService(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/v1/raw", `{"service":"junk","payload":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestDisconnectEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	connect(t, srv)

	w := postJSON(t, srv, "/api/v1/disconnect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	sw := httptest.NewRecorder()
	srv.mux.ServeHTTP(sw, req)

	var resp map[string]any
	if err := json.Unmarshal(sw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["connected"] != false {
		t.Errorf("Expected connected false after disconnect, got %v", resp["connected"])
	}
}

func TestEventsStream(t *testing.T) {
	srv, bridge := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.mux.ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the handler to subscribe, then emit an event.
	deadline := time.After(2 * time.Second)
	for {
		bridge.publish(bridgeEvent{Type: "state", State: "CONNECTED"})
		bridge.subMu.Lock()
		n := len(bridge.subs)
		bridge.subMu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("handler never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bridge.publish(bridgeEvent{Type: "state", State: "CONNECTED"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, `"type":"state"`) {
		t.Errorf("Expected a state event in the stream, got %q", body)
	}
	if !strings.Contains(body, "CONNECTED") {
		t.Errorf("Expected CONNECTED in the stream, got %q", body)
	}
}

func TestStatusReportsFirmware(t *testing.T) {
	srv, _ := newTestServer(t)

	getStatus := func() map[string]any {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()
		srv.mux.ServeHTTP(w, req)

		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		return resp
	}

	if fw, ok := getStatus()["firmware"]; ok {
		t.Errorf("Expected no firmware before connect, got %v", fw)
	}

	connect(t, srv)
	if fw := getStatus()["firmware"]; fw != simFirmware {
		t.Errorf("Expected firmware %q, got %v", simFirmware, fw)
	}

	w := postJSON(t, srv, "/api/v1/disconnect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("disconnect failed: %d", w.Code)
	}
	if fw, ok := getStatus()["firmware"]; ok {
		t.Errorf("Expected no firmware after disconnect, got %v", fw)
	}
}

func TestGateFirmware(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"1.0", false},
		{"1.7", false},
		{"2.0", true},
		{"0.9", true},
		{"glasses", true},
	}
	for _, tt := range tests {
		fw, err := gateFirmware(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("gateFirmware(%q): expected an error, got %v", tt.raw, fw)
			}
			continue
		}
		if err != nil {
			t.Errorf("gateFirmware(%q): %v", tt.raw, err)
		} else if fw.String() != tt.raw {
			t.Errorf("gateFirmware(%q) = %s", tt.raw, fw)
		}
	}
}
