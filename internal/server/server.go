package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/wit-terminal/voicecore/internal/trace"
	"github.com/wit-terminal/voicecore/internal/voice"
)

// Pipeline is the narrow surface the dashboard needs from a *voice.Context.
// Defined as an interface so server can be tested without a real pipeline.
type Pipeline interface {
	GetStats() voice.Stats
	GetState() voice.State
	StartRecording(maxMs int) error
	StopRecording() error
	GetRecording(buf []byte) (int, error)
	SetSensitivity(s float64) error
	SetNoiseSuppression(level float64) error
	SetBeamDirection(deg float64) error
	RegisterWakeWordCallback(name string, cb voice.WakeWordCallback)
}

// Message types exchanged over the dashboard websocket.
type Message struct {
	Type string `json:"type"`
}

// StatsMessage carries a periodic snapshot of the pipeline's counters.
type StatsMessage struct {
	Type            string    `json:"type"`
	State           string    `json:"state"`
	FramesProcessed uint64    `json:"frames_processed"`
	BufferOverruns  uint64    `json:"buffer_overruns"`
	VADActivations  uint64    `json:"vad_activations"`
	WakeDetections  uint64    `json:"wake_detections"`
	BackendFailures uint64    `json:"backend_failures"`
	AvgEnergyDB     float64  `json:"avg_energy_db"`
	NoiseFloorDB    float64  `json:"noise_floor_db"`
	ClippingCount   []uint64 `json:"clipping_count"`
}

// WakeMessage announces a wake-word detection.
type WakeMessage struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ControlMessage is a client->server command over the websocket.
type ControlMessage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value,omitempty"`
}

// ErrorMessage reports a rejected command.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server serves the embedded terminal's dashboard: a websocket stream of
// pipeline stats/wake events plus a small REST surface for recording
// control, grounded on the teacher's websocket-broadcaster pattern.
type Server struct {
	pipeline Pipeline

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter

	wakeCh chan WakeMessage
}

// New creates a Server bound to pipeline. It registers a wake-word callback
// for every configured name so detections are forwarded to dashboards.
func New(pipeline Pipeline, wakeWordNames []string) *Server {
	s := &Server{
		pipeline:   pipeline,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		wakeCh:     make(chan WakeMessage, 32),
	}

	for _, name := range wakeWordNames {
		pipeline.RegisterWakeWordCallback(name, func(d voice.Detection) {
			select {
			case s.wakeCh <- WakeMessage{Type: "wake", Name: d.Name, Confidence: d.Confidence, TimestampMs: d.TimestampMs}:
			default:
				slog.Warn("wake event dropped, dashboard channel full")
			}
		})
	}

	go s.broadcastStats()
	go s.broadcastWakeEvents()

	return s
}

// Handler returns the HTTP handler for the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("GET /api/recording", s.handleRecordingGet)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("dashboard connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var ctrl ControlMessage
		if err := json.Unmarshal(msg, &ctrl); err != nil {
			continue
		}
		s.handleControl(baseCtx, conn, ctrl)
	}
}

func (s *Server) handleControl(ctx context.Context, conn *websocket.Conn, msg ControlMessage) {
	log := trace.Logger(ctx)
	var err error
	switch msg.Type {
	case "set_sensitivity":
		err = s.pipeline.SetSensitivity(msg.Value)
	case "set_noise_suppression":
		err = s.pipeline.SetNoiseSuppression(msg.Value)
	case "set_beam_direction":
		err = s.pipeline.SetBeamDirection(msg.Value)
	default:
		return
	}
	if err != nil {
		log.Warn("control command failed", "type", msg.Type, "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
	}
}

func (s *Server) broadcastStats() {
	ticker := time.NewTicker(StatsBroadcastInterval)
	defer ticker.Stop()
	for range ticker.C {
		stats := s.pipeline.GetStats()
		msg := StatsMessage{
			Type:            "stats",
			State:           s.pipeline.GetState().String(),
			FramesProcessed: stats.FramesProcessed,
			BufferOverruns:  stats.BufferOverruns,
			VADActivations:  stats.VADActivations,
			WakeDetections:  stats.WakeDetections,
			BackendFailures: stats.BackendFailures,
			AvgEnergyDB:     stats.AvgEnergyDB,
			NoiseFloorDB:    stats.NoiseFloorDB,
			ClippingCount:   stats.ClippingCount,
		}
		s.broadcast(msg)
	}
}

func (s *Server) broadcastWakeEvents() {
	for msg := range s.wakeCh {
		s.broadcast(msg)
	}
}

func (s *Server) broadcast(msg interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = wsjson.Write(ctx, c, msg)
		}(conn)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pipeline.GetStats()
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"state": s.pipeline.GetState().String(),
		"stats": stats,
	})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.StartRecording(0); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recording_started"})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.StopRecording(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recording_stopped"})
}

func (s *Server) handleRecordingGet(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16*1024*1024)
	n, err := s.pipeline.GetRecording(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf[:n])
}
