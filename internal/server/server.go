package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolibrelab/wavcapture/internal/service"
)

// Server represents the web server for controlling WavCapture
type Server struct {
	service  service.Service
	registry *prometheus.Registry
	port     string
	mux      *http.ServeMux
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Status  service.Status `json:"status"`
}

// SessionResponse is returned by the start and stop endpoints
type SessionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Session *service.Session `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// FilesResponse represents the JSON response for the files endpoint
type FilesResponse struct {
	Files           []service.RecordingInfo `json:"files"`
	TotalCount      int                     `json:"total_count"`
	OutputDirectory string                  `json:"output_directory"`
}

// New creates a server for svc. registry may be nil, in which case
// /metrics is not served.
func New(svc service.Service, registry *prometheus.Registry, port string) *Server {
	s := &Server{
		service:  svc,
		registry: registry,
		port:     port,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/start", s.handleStartRecording)
	s.mux.HandleFunc("/stop", s.handleStopRecording)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/api/files", s.handleFiles)
	s.mux.HandleFunc("/api/files/stream/", s.handleFileStream)
	s.mux.HandleFunc("/api/files/download/", s.handleFileDownload)
	if registry != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting WavCapture Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleIndex serves a minimal page listing the endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>WavCapture</title>
</head>
<body>
    <h1>WavCapture</h1>
    <h2>API Endpoints:</h2>
    <ul>
        <li>POST /start - Start recording (form field: name)</li>
        <li>POST /stop - Stop recording</li>
        <li>GET /status - Get status</li>
        <li>GET /api/files - List recordings</li>
        <li>GET /api/files/download/&lt;name&gt; - Download a recording</li>
        <li>GET /metrics - Prometheus metrics</li>
    </ul>
</body>
</html>`

// handleStartRecording starts a new recording named by the form field "name"
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to parse form: %v", err),
			"operation", "start_recording")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))

	session, err := s.service.Start(name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrAlreadyRecording) {
			status = http.StatusConflict
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "start_recording", "name", name)
		return
	}

	s.sendJSON(w, http.StatusOK, SessionResponse{
		Success: true,
		Message: "Recording started",
		Session: session,
	})
}

// handleStopRecording stops the current recording session
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	session, err := s.service.Stop(r.Context())
	if errors.Is(err, service.ErrNotRecording) {
		s.sendErrorResponse(w, http.StatusConflict, err.Error(), "operation", "stop_recording")
		return
	}
	if err != nil {
		// The session is still reported so the client knows which file is affected
		slog.Error("Recording stopped with error", "error", err)
		s.sendJSON(w, http.StatusInternalServerError, SessionResponse{
			Success: false,
			Message: "Recording stopped with error",
			Session: session,
			Error:   fmt.Sprintf("Failed to stop recording: %v", err),
		})
		return
	}

	message := "Recording stopped"
	if session.Transcript != "" {
		message = "Recording stopped and transcribed"
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{
		Success: true,
		Message: message,
		Session: session,
		Error:   session.Error,
	})
}

// handleStatus returns the current status and session info
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := s.service.Status()
	s.sendJSON(w, http.StatusOK, StatusResponse{
		Success: true,
		Message: generateStatusMessage(status),
		Status:  status,
	})
}

func generateStatusMessage(status service.Status) string {
	switch {
	case status.Recording && status.Current != nil:
		return fmt.Sprintf("Recording %s", filepath.Base(status.Current.OutputFile))
	case status.LastError != "":
		return status.LastError
	case status.Last != nil:
		return fmt.Sprintf("Last recording: %s", filepath.Base(status.Last.OutputFile))
	default:
		return "Idle"
	}
}

// handleFiles lists the recordings of the output directory
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err),
			"operation", "list_files")
		return
	}
	if recordings == nil {
		recordings = []service.RecordingInfo{}
	}

	s.sendJSON(w, http.StatusOK, FilesResponse{
		Files:           recordings,
		TotalCount:      len(recordings),
		OutputDirectory: s.service.GetConfig().Output.Directory,
	})
}

// handleFileStream serves a recording inline with range support
func (s *Server) handleFileStream(w http.ResponseWriter, r *http.Request) {
	filePath, filename, ok := s.recordingPath(w, r, "/api/files/stream/")
	if !ok {
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		http.Error(w, "Error opening file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// handleFileDownload serves a recording as an attachment
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	filePath, filename, ok := s.recordingPath(w, r, "/api/files/download/")
	if !ok {
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		http.Error(w, "Error opening file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// recordingPath validates the file name following prefix and returns its
// path inside the output directory. It writes the error response itself.
func (s *Server) recordingPath(w http.ResponseWriter, r *http.Request, prefix string) (string, string, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", "", false
	}

	filename := strings.TrimPrefix(r.URL.Path, prefix)
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return "", "", false
	}

	// Validate filename (prevent path traversal)
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return "", "", false
	}
	if strings.ToLower(filepath.Ext(filename)) != ".wav" {
		http.Error(w, "File type not supported", http.StatusForbidden)
		return "", "", false
	}

	filePath := filepath.Join(s.service.GetConfig().Output.Directory, filename)
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error accessing file", http.StatusInternalServerError)
		}
		return "", "", false
	}
	return filePath, filename, true
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	s.sendJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

// getLocalIP returns the local IP address for network access
func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
