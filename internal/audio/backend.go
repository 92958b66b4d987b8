package audio

import (
	"fmt"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo     BackendType = "malgo"
	BackendTypeSynthetic BackendType = "synthetic"
	BackendTypePipeWire  BackendType = "pipewire"
	BackendTypeAuto      BackendType = "auto"
)

// Backend opens capture streams for a recorder configuration
type Backend interface {
	// MinBufferSize returns the smallest stream buffer in bytes the backend
	// accepts for cfg, or an error when cfg cannot be captured at all.
	MinBufferSize(cfg RecorderConfig) (int, error)

	// Open creates a stopped capture stream with a buffer of bufferSize bytes
	Open(cfg RecorderConfig, bufferSize int) (Stream, error)

	// List available audio sources
	ListSources() ([]string, error)

	// Get the backend type
	Type() BackendType
}

// Stream is an opened capture stream. Captured frames accumulate in the
// stream buffer until Read drains them.
type Stream interface {
	// SetNotificationPeriod arranges for notify to be called every time
	// frames new frames have been captured. notify runs on a backend
	// goroutine and must not block.
	SetNotificationPeriod(frames int, notify func()) error

	Start() error
	Stop() error

	// Read copies buffered frames into p and returns the number of bytes
	// copied. It never blocks; zero means nothing was buffered.
	Read(p []byte) (int, error)

	// Release frees the stream. A released stream cannot be started again.
	Release() error
}

// NewBackend returns the backend registered under name
func NewBackend(name string) (Backend, error) {
	backendType, err := determineBackend(name)
	if err != nil {
		return nil, err
	}

	switch backendType {
	case BackendTypeSynthetic:
		return &SyntheticBackend{Signal: SignalTone}, nil
	case BackendTypePipeWire:
		return &PipeWireBackend{}, nil
	default:
		return &MalgoBackend{}, nil
	}
}

// determineBackend maps a configured backend name to a backend type
func determineBackend(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		// malgo picks the platform's native capture API
		return BackendTypeMalgo, nil
	case "malgo":
		return BackendTypeMalgo, nil
	case "synthetic":
		return BackendTypeSynthetic, nil
	case "pipewire":
		return BackendTypePipeWire, nil
	}
	return "", fmt.Errorf("unknown audio backend: %s", name)
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo, BackendTypePipeWire, BackendTypeSynthetic}
}
