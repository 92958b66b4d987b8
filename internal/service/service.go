package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/wavcapture/internal/audio"
	"github.com/audiolibrelab/wavcapture/internal/config"
	"github.com/audiolibrelab/wavcapture/internal/play"
	"github.com/audiolibrelab/wavcapture/internal/transcribe"
	"github.com/audiolibrelab/wavcapture/internal/wav"
)

// Service is the recording API shared by the CLI and the HTTP server
type Service interface {
	// Recording operations
	Start(name string) (*Session, error)
	Stop(ctx context.Context) (*Session, error)
	Status() Status

	// Post-processing operations
	Transcribe(ctx context.Context, path string) (string, error)
	Play(ctx context.Context, name string) error

	// Information operations
	ListRecordings() ([]RecordingInfo, error)
	GetConfig() *config.Config
	GetLastError() string

	Close() error
}

// ErrNotRecording is returned by Stop when no session is active
var ErrNotRecording = errors.New("no recording in progress")

// ErrAlreadyRecording is returned by Start while a session is active
var ErrAlreadyRecording = errors.New("recording already in progress")

// Session describes one recording
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	OutputFile  string        `json:"output_file"`
	StartTime   time.Time     `json:"start_time"`
	StopTime    time.Time     `json:"stop_time,omitempty"`
	Duration    time.Duration `json:"duration"`
	Format      wav.Format    `json:"format"`
	Payload     int64         `json:"payload_bytes"`
	AutoStopped bool          `json:"auto_stopped"`
	Transcript  string        `json:"transcript,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Status is a snapshot of the service
type Status struct {
	State     audio.State `json:"state"`
	Recording bool        `json:"recording"`
	Current   *Session    `json:"current,omitempty"`
	Last      *Session    `json:"last,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// RecordingInfo describes a WAV file in the output directory
type RecordingInfo struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Size         int64         `json:"size"`
	SizeHuman    string        `json:"size_human"`
	ModTime      time.Time     `json:"mod_time"`
	ModTimeHuman string        `json:"mod_time_human"`
	Duration     time.Duration `json:"duration"`
	Finalized    bool          `json:"finalized"`
	DownloadURL  string        `json:"download_url"`
}

// Option configures a RecordingService
type Option func(*RecordingService)

// WithBackend replaces the backend named in the configuration
func WithBackend(b audio.Backend) Option {
	return func(s *RecordingService) { s.backend = b }
}

// WithTranscriber replaces the configured transcription command
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(s *RecordingService) { s.transcriber = t }
}

// WithMetrics passes m to every recorder the service builds
func WithMetrics(m *audio.Metrics) Option {
	return func(s *RecordingService) { s.metrics = m }
}

// WithStopHandler registers fn to be called after every stop, including
// automatic ones. fn runs without the service lock held.
func WithStopHandler(fn func(*Session)) Option {
	return func(s *RecordingService) { s.onStop = fn }
}

// RecordingService owns one recorder and reuses it across recordings
type RecordingService struct {
	cfg         *config.Config
	backend     audio.Backend
	transcriber transcribe.Transcriber
	metrics     *audio.Metrics
	onStop      func(*Session)

	mu       sync.Mutex
	recorder *audio.Recorder
	current  *Session
	last     *Session
	timer    *time.Timer

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service for cfg. The recorder is built on the first Start.
func New(cfg *config.Config, opts ...Option) (*RecordingService, error) {
	s := &RecordingService{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.backend == nil {
		backend, err := audio.NewBackend(cfg.Audio.Backend)
		if err != nil {
			return nil, err
		}
		s.backend = backend
	}
	return s, nil
}

// Start begins a new recording named name. An empty name gets a generated one.
func (s *RecordingService) Start(name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("Service.Start called", "name", name)
	s.clearLastError()

	if s.current != nil {
		return nil, ErrAlreadyRecording
	}

	rec, err := s.readyRecorder()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to initialize recorder: %v", err))
		return nil, err
	}

	id := uuid.NewString()
	fileName := play.CleanFileName(name)
	if fileName == "" {
		fileName = id
	}

	if err := os.MkdirAll(s.cfg.Output.Directory, 0755); err != nil {
		err = fmt.Errorf("failed to create output directory: %w", err)
		s.setLastError(err.Error())
		return nil, err
	}
	path := filepath.Join(s.cfg.Output.Directory, fileName+".wav")

	if err := rec.SetOutputFile(path); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return nil, err
	}
	if err := rec.Prepare(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to prepare recording: %v", err))
		return nil, err
	}
	if err := rec.Start(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return nil, err
	}

	session := &Session{
		ID:         id,
		Name:       name,
		OutputFile: path,
		StartTime:  time.Now(),
		Format:     rec.Config().Format(),
	}
	s.current = session

	if s.cfg.MaxDuration > 0 {
		s.timer = time.AfterFunc(s.cfg.MaxDuration, func() { s.autoStop(id) })
	}

	slog.Info("Recording started", "name", name, "file", path, "sample_rate", session.Format.SampleRate)
	copied := *session
	return &copied, nil
}

// Stop ends the current recording and transcribes it when enabled
func (s *RecordingService) Stop(ctx context.Context) (*Session, error) {
	return s.stop(ctx, "")
}

func (s *RecordingService) autoStop(id string) {
	slog.Info("Maximum recording duration reached, stopping", "max_duration", s.cfg.MaxDuration)
	if _, err := s.stop(context.Background(), id); err != nil && !errors.Is(err, ErrNotRecording) {
		slog.Error("Automatic stop failed", "error", err)
	}
}

// stop ends the current session. A non-empty id only stops that session.
func (s *RecordingService) stop(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	session := s.current
	if session == nil || (id != "" && session.ID != id) {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	var stopErr error
	if s.recorder.State() == audio.StateRecording {
		stopErr = s.recorder.Stop()
	} else {
		stopErr = fmt.Errorf("%w: recorder is %s", audio.ErrIllegalState, s.recorder.State())
	}

	session.StopTime = time.Now()
	session.Duration = session.StopTime.Sub(session.StartTime)
	session.Payload = s.recorder.Payload()
	session.AutoStopped = id != ""

	if stopErr != nil {
		session.Error = stopErr.Error()
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", stopErr))
	} else if err := s.recorder.Reset(); err != nil {
		slog.Warn("Failed to reset recorder, it will be rebuilt", "error", err)
	}

	s.current = nil
	s.last = session
	wantTranscript := stopErr == nil && s.cfg.Transcription.Enabled
	s.mu.Unlock()

	slog.Info("Recording stopped", "file", session.OutputFile, "duration", session.Duration, "bytes", session.Payload)

	if wantTranscript {
		text, err := s.Transcribe(ctx, session.OutputFile)
		s.mu.Lock()
		if err != nil {
			session.Error = err.Error()
			s.setLastError(fmt.Sprintf("Transcription failed: %v", err))
		} else {
			session.Transcript = text
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	copied := *session
	s.mu.Unlock()

	if s.onStop != nil {
		s.onStop(&copied)
	}
	return &copied, stopErr
}

// readyRecorder returns a recorder in StateInitializing, resetting the
// current one or building a new one through the fallback factory.
func (s *RecordingService) readyRecorder() (*audio.Recorder, error) {
	if s.recorder != nil {
		switch s.recorder.State() {
		case audio.StateInitializing:
			return s.recorder, nil
		case audio.StateStopped, audio.StateReady:
			if err := s.recorder.Reset(); err == nil {
				return s.recorder, nil
			}
		}
		if err := s.recorder.Release(); err != nil {
			slog.Debug("Failed to release recorder", "error", err)
		}
		s.recorder = nil
	}

	var opts []audio.Option
	if s.metrics != nil {
		opts = append(opts, audio.WithMetrics(s.metrics))
	}

	rec, err := audio.NewFirstAvailable(s.backend, audio.CandidatesFromConfig(s.cfg.Audio), opts...)
	if err != nil {
		return nil, err
	}
	s.recorder = rec
	return rec, nil
}

// Status returns the recorder state and the current and last sessions
func (s *RecordingService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:     audio.StateInitializing,
		Recording: s.current != nil,
		LastError: s.GetLastError(),
	}
	if s.recorder != nil {
		status.State = s.recorder.State()
	}
	if s.current != nil {
		current := *s.current
		current.Duration = time.Since(current.StartTime)
		current.Payload = s.recorder.Payload()
		status.Current = &current
	}
	if s.last != nil {
		last := *s.last
		status.Last = &last
	}
	return status
}

// Transcribe runs the transcriber on path. Files inside the output
// directory are reported as recorded by this tool.
func (s *RecordingService) Transcribe(ctx context.Context, path string) (string, error) {
	t, err := s.getTranscriber()
	if err != nil {
		return "", err
	}

	if _, err := wav.Inspect(path); err != nil {
		return "", fmt.Errorf("cannot transcribe %s: %w", path, err)
	}

	recorded := strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.cfg.Output.Directory)+string(filepath.Separator))
	return t.Transcribe(ctx, path, recorded)
}

func (s *RecordingService) getTranscriber() (transcribe.Transcriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcriber == nil {
		cmd, err := transcribe.NewCommand(s.cfg.Transcription)
		if err != nil {
			return nil, err
		}
		s.transcriber = cmd
	}
	return s.transcriber, nil
}

// Play plays a recording from the output directory
func (s *RecordingService) Play(ctx context.Context, name string) error {
	return play.New(s.cfg.Output.Directory).Play(ctx, name)
}

// ListRecordings returns the WAV files of the output directory, newest first
func (s *RecordingService) ListRecordings() ([]RecordingInfo, error) {
	recordingDir := s.cfg.Output.Directory

	if err := os.MkdirAll(recordingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	files, err := os.ReadDir(recordingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() || strings.ToLower(filepath.Ext(file.Name())) != ".wav" {
			continue
		}

		filePath := filepath.Join(recordingDir, file.Name())
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		recording := RecordingInfo{
			Name:         file.Name(),
			Path:         filePath,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			DownloadURL:  fmt.Sprintf("/api/files/download/%s", file.Name()),
		}
		if wavInfo, err := wav.Inspect(filePath); err == nil {
			recording.Duration = wavInfo.Duration
			recording.Finalized = wavInfo.Finalized
		} else {
			slog.Debug("Skipping WAV inspection", "file", file.Name(), "error", err)
		}

		recordings = append(recordings, recording)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// GetConfig returns the current configuration
func (s *RecordingService) GetConfig() *config.Config {
	return s.cfg
}

// Close stops any recording in progress and releases the recorder
func (s *RecordingService) Close() error {
	if _, err := s.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotRecording) {
		slog.Warn("Failed to stop recording on close", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.recorder != nil {
		err = s.recorder.Release()
		s.recorder = nil
	}
	if s.transcriber != nil {
		err = errors.Join(err, s.transcriber.Close())
	}
	return err
}

// GetLastError returns the last error message (thread-safe)
func (s *RecordingService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *RecordingService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *RecordingService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
