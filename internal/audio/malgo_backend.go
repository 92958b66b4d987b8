package audio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// malgoPeriodMs is the device period requested from miniaudio. The stream
// buffer must hold at least two of them.
const malgoPeriodMs = 20

// MalgoBackend captures from a miniaudio device
type MalgoBackend struct{}

func (b *MalgoBackend) MinBufferSize(cfg RecorderConfig) (int, error) {
	if _, err := malgoFormat(cfg.BitsPerSample); err != nil {
		return 0, err
	}
	frames := cfg.SampleRate * malgoPeriodMs / 1000
	return 2 * frames * cfg.Format().BlockAlign(), nil
}

func (b *MalgoBackend) Open(cfg RecorderConfig, bufferSize int) (Stream, error) {
	format, err := malgoFormat(cfg.BitsPerSample)
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = format
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = malgoPeriodMs

	if source := cfg.Source; source != "" && source != "default" {
		id, err := findCaptureDevice(ctx, source)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	s := &malgoStream{
		ctx:        ctx,
		capacity:   bufferSize,
		blockAlign: cfg.Format().BlockAlign(),
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	s.device = device

	slog.Debug("Capture device opened", "source", cfg.Source, "sample_rate", cfg.SampleRate, "buffer_size", bufferSize)
	return s, nil
}

func (b *MalgoBackend) ListSources() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	sources := make([]string, 0, len(infos))
	for _, info := range infos {
		sources = append(sources, info.Name())
	}
	return sources, nil
}

func (b *MalgoBackend) Type() BackendType {
	return BackendTypeMalgo
}

func malgoFormat(bitsPerSample int) (malgo.FormatType, error) {
	switch bitsPerSample {
	case 8:
		return malgo.FormatU8, nil
	case 16:
		return malgo.FormatS16, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
}

// findCaptureDevice matches source against device names, exactly first and
// then as a case-insensitive substring.
func findCaptureDevice(ctx *malgo.AllocatedContext, source string) (*malgo.DeviceID, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	for i := range infos {
		if infos[i].Name() == source {
			return &infos[i].ID, nil
		}
	}
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(source)) {
			return &infos[i].ID, nil
		}
	}
	return nil, fmt.Errorf("capture source not found: %s", source)
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		slog.Debug("Failed to uninitialize audio context", "error", err)
	}
	ctx.Free()
}

type malgoStream struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	capacity   int
	blockAlign int

	mu           sync.Mutex
	periodFrames int
	notify       func()
	accumulated  int
	pending      []byte
	released     bool
}

func (s *malgoStream) SetNotificationPeriod(frames int, notify func()) error {
	if frames <= 0 {
		return fmt.Errorf("invalid notification period %d", frames)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodFrames = frames
	s.notify = notify
	return nil
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return errStreamReleased
	}
	s.accumulated = 0
	s.mu.Unlock()
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil
	}
	return s.device.Stop()
}

func (s *malgoStream) Read(p []byte) (int, error) {
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

func (s *malgoStream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.pending = nil
	s.mu.Unlock()

	s.device.Uninit()
	freeContext(s.ctx)
	return nil
}

// onData runs on the miniaudio thread
func (s *malgoStream) onData(_, input []byte, frameCount uint32) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}

	s.pending = append(s.pending, input...)
	if over := len(s.pending) - s.capacity; over > 0 {
		// Overrun: the oldest frames are lost
		s.pending = dropFrames(s.pending, over, s.blockAlign)
	}

	fire := 0
	s.accumulated += int(frameCount)
	for s.periodFrames > 0 && s.accumulated >= s.periodFrames {
		s.accumulated -= s.periodFrames
		fire++
	}
	notify := s.notify
	s.mu.Unlock()

	for ; fire > 0 && notify != nil; fire-- {
		notify()
	}
}
