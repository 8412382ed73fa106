package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/config"
	"squeezer-go/internal/fileset"
	"squeezer-go/internal/pipeline"
	"squeezer-go/internal/policy"
	"squeezer-go/internal/statistics"
)

// Server exposes the compression pipeline over HTTP and streams batch
// events to connected WebSocket clients. It implements
// pipeline.Observer.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	manager    *compressor.Manager
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current batch state
	batchMutex sync.RWMutex
	current    *pipeline.Pipeline
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	Inputs          []string `json:"inputs"`
	OutputDirectory string   `json:"output_directory,omitempty"`
	Quality         string   `json:"quality,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, manager *compressor.Manager) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		manager:   manager,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.batchMutex.RLock()
	p := s.current
	s.batchMutex.RUnlock()

	state := pipeline.StateIdle
	var statsData interface{}
	if p != nil {
		state = p.State()
		statsData = statsSnapshot(p.Stats())
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"state":      state.String(),
			"running":    state == pipeline.StateRunning,
			"statistics": statsData,
			"toolchain": map[string]interface{}{
				"available": s.manager.Toolchain().Available(),
				"hwaccel":   s.manager.Toolchain().PreferredBackend().String(),
			},
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Inputs) == 0 {
		s.writeError(w, "At least one input path is required", http.StatusBadRequest)
		return
	}

	for _, input := range req.Inputs {
		if _, err := os.Stat(input); os.IsNotExist(err) {
			s.writeError(w, fmt.Sprintf("Input does not exist: %s", input), http.StatusBadRequest)
			return
		}
	}

	tierName := req.Quality
	if tierName == "" {
		tierName = s.cfg.QualityTier
	}
	tier, err := policy.ParseTier(tierName)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outputDir := req.OutputDirectory
	if outputDir == "" {
		outputDir = s.cfg.OutputDirectory
	}

	s.batchMutex.Lock()
	if s.current != nil && s.current.State() == pipeline.StateRunning {
		s.batchMutex.Unlock()
		s.writeError(w, "Batch already in progress", http.StatusConflict)
		return
	}

	tasks, err := fileset.Collect(req.Inputs)
	if err != nil {
		s.batchMutex.Unlock()
		s.writeError(w, fmt.Sprintf("Failed to collect files: %v", err), http.StatusBadRequest)
		return
	}
	if len(tasks) == 0 {
		s.batchMutex.Unlock()
		s.writeError(w, "No supported media files found", http.StatusBadRequest)
		return
	}

	p := pipeline.New(s.log, s.manager, s)
	if err := p.Start(context.Background(), tasks, outputDir, tier); err != nil {
		s.batchMutex.Unlock()
		s.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	s.current = p
	s.batchMutex.Unlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
		Data: map[string]interface{}{
			"files":   len(tasks),
			"quality": tier.String(),
			"output":  outputDir,
		},
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.batchMutex.RLock()
	p := s.current
	s.batchMutex.RUnlock()

	if p == nil || p.State() != pipeline.StateRunning {
		s.writeError(w, "No batch in progress", http.StatusConflict)
		return
	}

	p.Cancel()
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Cancellation requested",
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.batchMutex.RLock()
	p := s.current
	s.batchMutex.RUnlock()

	if p == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statsSnapshot(p.Stats()),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// OnProgress broadcasts a progress snapshot to all WebSocket clients.
func (s *Server) OnProgress(ev pipeline.ProgressEvent) {
	data := map[string]interface{}{
		"current_file": ev.CurrentFile,
		"processed":    ev.Processed,
		"total":        ev.Total,
		"percent":      ev.Percent,
		"terminal":     ev.Terminal,
	}
	if ev.Remaining != nil {
		data["eta"] = fileset.FormatETA(*ev.Remaining)
	}
	s.broadcastWSMessage("progress", data)
}

// OnResult broadcasts one file's outcome.
func (s *Server) OnResult(res pipeline.FileResult) {
	data := map[string]interface{}{
		"file":    res.Task.SourcePath,
		"success": res.Success(),
		"elapsed": res.Elapsed.String(),
	}
	if res.Success() {
		data["output"] = res.OutputPath
		data["original_size"] = res.OriginalSize
		data["compressed_size"] = res.CompressedSize
		data["saved_percent"] = res.SavedPercent
	} else {
		data["error"] = res.Err.Error()
		data["error_kind"] = res.ErrKind.String()
	}
	s.broadcastWSMessage("file_result", data)
}

// OnError broadcasts an error message, including the consolidated
// end-of-batch failure report.
func (s *Server) OnError(message string) {
	s.broadcastWSMessage("error", map[string]interface{}{
		"message": message,
	})
}

// OnFinished broadcasts the terminal batch summary.
func (s *Server) OnFinished(sum pipeline.Summary) {
	s.broadcastWSMessage("finished", map[string]interface{}{
		"processed":     sum.Processed,
		"failed":        sum.Failed,
		"bytes_in":      sum.BytesIn,
		"bytes_out":     sum.BytesOut,
		"saved_percent": sum.SavedPercent,
		"elapsed":       sum.Elapsed.String(),
		"cancelled":     sum.Cancelled,
	})
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func statsSnapshot(stats *statistics.BatchStats) map[string]interface{} {
	if stats == nil {
		return nil
	}
	return map[string]interface{}{
		"summary": stats.GetSummary(),
		"files": map[string]interface{}{
			"processed": atomic.LoadInt64(&stats.FilesProcessed),
			"images":    atomic.LoadInt64(&stats.ImagesCompressed),
			"videos":    atomic.LoadInt64(&stats.VideosCompressed),
			"failed":    atomic.LoadInt64(&stats.FilesFailed),
		},
		"bytes": map[string]interface{}{
			"in":            atomic.LoadInt64(&stats.BytesIn),
			"out":           atomic.LoadInt64(&stats.BytesOut),
			"saved_percent": stats.SavedPercent(),
		},
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
