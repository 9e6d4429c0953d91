package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hudlink-protocol/hudlink-go/pkg/command"
	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/sequence"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr    string
	Version string

	// ConnectTimeout bounds one connect attempt, scan and handshake
	// included.
	ConnectTimeout time.Duration
}

// Server is the HTTP front for the bridge.
type Server struct {
	config ServerConfig
	mux    *http.ServeMux
	server *http.Server
	bridge *Bridge
}

// NewServer creates a server driving the given bridge.
func NewServer(cfg ServerConfig, bridge *Bridge) *Server {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		bridge: bridge,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.mux,
	}

	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/status", s.handleStatus)

	// Link control
	s.mux.HandleFunc("/api/v1/connect", s.handleConnect)
	s.mux.HandleFunc("/api/v1/disconnect", s.handleDisconnect)

	// Display operations
	s.mux.HandleFunc("/api/v1/text", s.handleText)
	s.mux.HandleFunc("/api/v1/teleprompter", s.handleTeleprompter)
	s.mux.HandleFunc("/api/v1/navigation/start", s.handleNavStart)
	s.mux.HandleFunc("/api/v1/navigation/update", s.handleNavUpdate)
	s.mux.HandleFunc("/api/v1/navigation/stop", s.handleNavStop)
	s.mux.HandleFunc("/api/v1/raw", s.handleRaw)

	// Event stream
	s.mux.HandleFunc("/api/v1/events", s.handleEvents)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

// handleStatus returns the link status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]any{
		"connected":  s.bridge.Connected(),
		"state":      s.bridge.State().String(),
		"session_id": s.bridge.SessionID(),
	}
	if fw, ok := s.bridge.Firmware(); ok {
		status["firmware"] = fw.String()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleConnect brings the link up.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := contextWithTimeout(r, s.config.ConnectTimeout)
	defer cancel()

	if err := s.bridge.Connect(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "connected",
	})
}

// handleDisconnect tears the link down.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.bridge.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "disconnected",
	})
}

// handleText displays a transcription message.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}

	summary, err := s.bridge.SendText(r.Context(), req.Text)
	s.writeSummary(w, summary, err)
}

// handleTeleprompter pushes paged text to the teleprompter.
func (s *Server) handleTeleprompter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("body is required"))
		return
	}

	summary, err := s.bridge.SendTeleprompter(r.Context(), req.Title, req.Body)
	s.writeSummary(w, summary, err)
}

// handleNavStart enters navigation mode.
func (s *Server) handleNavStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.bridge.NavStart(r.Context())
	s.writeSummary(w, summary, err)
}

// handleNavUpdate pushes a turn instruction.
func (s *Server) handleNavUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Direction      uint64 `json:"direction"`
		Distance       string `json:"distance"`
		Road           string `json:"road"`
		SpendTime      string `json:"spend_time"`
		RemainDistance string `json:"remain_distance"`
		ArrivalTime    string `json:"arrival_time"`
		Speed          string `json:"speed"`
		WorkMethod     uint64 `json:"work_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	info := command.BasicInfo{
		Direction:      req.Direction,
		Distance:       req.Distance,
		Road:           req.Road,
		SpendTime:      req.SpendTime,
		RemainDistance: req.RemainDistance,
		ArrivalTime:    req.ArrivalTime,
		Speed:          req.Speed,
		WorkMethod:     req.WorkMethod,
	}

	summary, err := s.bridge.NavUpdate(r.Context(), info)
	s.writeSummary(w, summary, err)
}

// handleNavStop exits navigation mode.
func (s *Server) handleNavStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.bridge.NavStop(r.Context())
	s.writeSummary(w, summary, err)
}

// handleRaw sends an arbitrary payload to a service.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Service         string `json:"service"`
		Payload         string `json:"payload"`
		AppendMessageID bool   `json:"append_message_id"`
		WantAck         bool   `json:"want_ack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	svc, err := frame.ParseService(req.Service)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payload, err := hex.DecodeString(strings.ReplaceAll(req.Payload, " ", ""))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload hex: %w", err))
		return
	}

	id, resp, err := s.bridge.SendRaw(r.Context(), svc, payload, req.AppendMessageID, req.WantAck)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	result := map[string]any{
		"message_id": id,
	}
	if req.WantAck {
		result["response"] = hex.EncodeToString(resp)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEvents streams bridge events as newline-delimited JSON until
// the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, cancel := s.bridge.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSummary reports a sequence run outcome, including partial
// results when the run aborted.
func (s *Server) writeSummary(w http.ResponseWriter, summary *sequence.Summary, err error) {
	if err != nil {
		status := http.StatusBadGateway
		resp := map[string]any{"error": err.Error()}
		if summary != nil {
			resp["state"] = summary.State.String()
			resp["steps"] = len(summary.Results)
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":         summary.State.String(),
		"steps":         len(summary.Results),
		"soft_failures": summary.SoftFailures(),
	})
}

// contextWithTimeout derives a request context bounded by d.
func contextWithTimeout(r *http.Request, d time.Duration) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Close shuts down the server and the bridge behind it.
func (s *Server) Close() error {
	s.server.Close()
	return s.bridge.Close()
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
