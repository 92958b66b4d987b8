package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// pipewireQuantum is the graph quantum assumed when sizing the stream
// buffer, in frames.
const pipewireQuantum = 1024

// PipeWireBackend captures raw PCM from pw-record through a pipe
type PipeWireBackend struct {
	// RecordCommand overrides the pw-record binary
	RecordCommand string
	// Graph lists and validates capture nodes. Nil uses pw-link.
	Graph *PipeWire
}

func (b *PipeWireBackend) MinBufferSize(cfg RecorderConfig) (int, error) {
	if _, err := pipewireFormat(cfg.BitsPerSample); err != nil {
		return 0, err
	}
	return 2 * pipewireQuantum * cfg.Format().BlockAlign(), nil
}

func (b *PipeWireBackend) Open(cfg RecorderConfig, bufferSize int) (Stream, error) {
	args, err := pipewireArgs(cfg)
	if err != nil {
		return nil, err
	}

	path, err := exec.LookPath(b.recordCommand())
	if err != nil {
		return nil, fmt.Errorf("pw-record not available: %w", err)
	}
	if err := b.graph().ValidateNode(cfg.Source); err != nil {
		return nil, err
	}

	slog.Debug("PipeWire stream opened", "command", path, "args", args, "buffer_size", bufferSize)
	return &pipewireStream{
		path:       path,
		args:       args,
		capacity:   bufferSize,
		blockAlign: cfg.Format().BlockAlign(),
	}, nil
}

func (b *PipeWireBackend) ListSources() ([]string, error) {
	return b.graph().ListNodes()
}

func (b *PipeWireBackend) Type() BackendType {
	return BackendTypePipeWire
}

func (b *PipeWireBackend) recordCommand() string {
	if b.RecordCommand == "" {
		return "pw-record"
	}
	return b.RecordCommand
}

func (b *PipeWireBackend) graph() *PipeWire {
	if b.Graph == nil {
		return NewPipeWire()
	}
	return b.Graph
}

func pipewireFormat(bitsPerSample int) (string, error) {
	switch bitsPerSample {
	case 8:
		return "u8", nil
	case 16:
		return "s16", nil
	}
	return "", fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
}

// pipewireArgs builds the pw-record arguments writing raw PCM to stdout
func pipewireArgs(cfg RecorderConfig) ([]string, error) {
	format, err := pipewireFormat(cfg.BitsPerSample)
	if err != nil {
		return nil, err
	}
	args := []string{
		"--rate", strconv.Itoa(cfg.SampleRate),
		"--channels", strconv.Itoa(cfg.Channels),
		"--format", format,
		"--raw",
	}
	if cfg.Source != "" && cfg.Source != "default" {
		args = append(args, "--target", cfg.Source)
	}
	return append(args, "-"), nil
}

type pipewireStream struct {
	path       string
	args       []string
	capacity   int
	blockAlign int

	mu           sync.Mutex
	periodFrames int
	notify       func()
	accumulated  int
	pending      []byte
	cmd          *exec.Cmd
	done         chan struct{}
	released     bool
}

func (s *pipewireStream) SetNotificationPeriod(frames int, notify func()) error {
	if frames <= 0 {
		return fmt.Errorf("invalid notification period %d", frames)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodFrames = frames
	s.notify = notify
	return nil
}

func (s *pipewireStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return errStreamReleased
	}
	if s.cmd != nil {
		return nil
	}

	cmd := exec.Command(s.path, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create pw-record pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start pw-record: %w", err)
	}

	s.cmd = cmd
	s.done = make(chan struct{})
	s.accumulated = 0
	go s.readLoop(stdout, s.done)

	slog.Debug("pw-record started", "pid", cmd.Process.Pid)
	return nil
}

func (s *pipewireStream) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt pw-record, killing it", "error", err)
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("pw-record did not exit after interrupt, killing it", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-done
	}

	// An interrupted pw-record exits with a non-zero status
	if err := cmd.Wait(); err != nil {
		slog.Debug("pw-record exited", "error", err)
	}
	return nil
}

func (s *pipewireStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0, errStreamReleased
	}
	n := min(len(p), len(s.pending))
	n -= n % s.blockAlign
	copy(p, s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return n, nil
}

func (s *pipewireStream) Release() error {
	if err := s.Stop(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.pending = nil
	return nil
}

func (s *pipewireStream) readLoop(r io.Reader, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.push(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Warn("Failed to read from pw-record", "error", err)
			}
			return
		}
	}
}

// push appends captured bytes and fires one notification per full period
func (s *pipewireStream) push(data []byte) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}

	s.pending = append(s.pending, data...)
	if over := len(s.pending) - s.capacity; over > 0 {
		// Overrun: the oldest frames are lost
		s.pending = dropFrames(s.pending, over, s.blockAlign)
	}

	fire := 0
	periodBytes := s.periodFrames * s.blockAlign
	s.accumulated += len(data)
	for periodBytes > 0 && s.accumulated >= periodBytes {
		s.accumulated -= periodBytes
		fire++
	}
	notify := s.notify
	s.mu.Unlock()

	for ; fire > 0 && notify != nil; fire-- {
		notify()
	}
}
