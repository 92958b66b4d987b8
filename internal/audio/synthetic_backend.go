package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

// Signal selects what a synthetic stream generates
type Signal string

const (
	SignalSilence Signal = "silence"
	SignalTone    Signal = "tone"
)

const (
	defaultToneFrequency = 440.0
	toneAmplitude        = 0.25
)

var errStreamReleased = errors.New("stream released")

// SyntheticBackend generates audio instead of capturing it. Streams are
// paced by a ticker at the notification period, or by Pulse when Manual is
// set.
type SyntheticBackend struct {
	Signal    Signal
	Frequency float64

	// Manual disables the ticker; frames are produced only by Pulse
	Manual bool

	// SupportedRates restricts the sample rates that can be opened.
	// Empty means every rate is accepted.
	SupportedRates []int

	// MinBuffer is the minimum stream buffer size in bytes
	MinBuffer int

	mu      sync.Mutex
	streams []*syntheticStream
}

func (b *SyntheticBackend) MinBufferSize(cfg RecorderConfig) (int, error) {
	if err := b.check(cfg); err != nil {
		return 0, err
	}
	return b.MinBuffer, nil
}

func (b *SyntheticBackend) Open(cfg RecorderConfig, bufferSize int) (Stream, error) {
	if err := b.check(cfg); err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", bufferSize)
	}

	s := &syntheticStream{
		backend:  b,
		cfg:      cfg,
		capacity: bufferSize,
	}

	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

func (b *SyntheticBackend) ListSources() ([]string, error) {
	return []string{"synthetic"}, nil
}

func (b *SyntheticBackend) Type() BackendType {
	return BackendTypeSynthetic
}

// Pulse generates one notification period on every started stream and
// delivers the notification before returning.
func (b *SyntheticBackend) Pulse() {
	b.mu.Lock()
	streams := slices.Clone(b.streams)
	b.mu.Unlock()

	for _, s := range streams {
		s.pulse()
	}
}

// OpenStreams returns the number of streams opened and not yet released
func (b *SyntheticBackend) OpenStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

func (b *SyntheticBackend) check(cfg RecorderConfig) error {
	if len(b.SupportedRates) > 0 && !slices.Contains(b.SupportedRates, cfg.SampleRate) {
		return fmt.Errorf("sample rate %d not supported", cfg.SampleRate)
	}
	return cfg.Format().Validate()
}

func (b *SyntheticBackend) remove(s *syntheticStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams = slices.DeleteFunc(b.streams, func(o *syntheticStream) bool { return o == s })
}

type syntheticStream struct {
	backend  *SyntheticBackend
	cfg      RecorderConfig
	capacity int

	mu           sync.Mutex
	periodFrames int
	notify       func()
	started      bool
	released     bool
	pending      []byte
	frame        int64

	stop chan struct{}
	done chan struct{}
}

func (s *syntheticStream) SetNotificationPeriod(frames int, notify func()) error {
	if frames <= 0 {
		return fmt.Errorf("invalid notification period %d", frames)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodFrames = frames
	s.notify = notify
	return nil
}

func (s *syntheticStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return errStreamReleased
	}
	if s.started {
		return nil
	}
	s.started = true

	if !s.backend.Manual && s.periodFrames > 0 {
		period := time.Duration(s.periodFrames) * time.Second / time.Duration(s.cfg.SampleRate)
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.run(period, s.stop, s.done)
	}
	return nil
}

func (s *syntheticStream) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (s *syntheticStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0, errStreamReleased
	}
	// Keep reads frame aligned
	blockAlign := s.cfg.Format().BlockAlign()
	n := min(len(p), len(s.pending))
	n -= n % blockAlign
	copy(p, s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return n, nil
}

func (s *syntheticStream) Release() error {
	if err := s.Stop(); err != nil {
		return err
	}

	s.mu.Lock()
	s.released = true
	s.pending = nil
	s.mu.Unlock()

	s.backend.remove(s)
	return nil
}

func (s *syntheticStream) run(period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pulse()
		}
	}
}

// pulse appends one period of frames, dropping the oldest bytes when the
// stream buffer overflows, then notifies.
func (s *syntheticStream) pulse() {
	s.mu.Lock()
	if !s.started || s.periodFrames == 0 {
		s.mu.Unlock()
		return
	}

	s.pending = s.generate(s.pending, s.periodFrames)
	if over := len(s.pending) - s.capacity; over > 0 {
		s.pending = dropFrames(s.pending, over, s.cfg.Format().BlockAlign())
	}
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *syntheticStream) generate(dst []byte, frames int) []byte {
	freq := s.backend.Frequency
	if freq == 0 {
		freq = defaultToneFrequency
	}

	for i := 0; i < frames; i++ {
		v := 0.0
		if s.backend.Signal == SignalTone {
			v = toneAmplitude * math.Sin(2*math.Pi*freq*float64(s.frame)/float64(s.cfg.SampleRate))
		}
		s.frame++

		for c := 0; c < s.cfg.Channels; c++ {
			if s.cfg.BitsPerSample == 8 {
				// 8-bit PCM is unsigned with silence at 128
				dst = append(dst, uint8(128+math.Round(v*127)))
			} else {
				dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(math.Round(v*math.MaxInt16))))
			}
		}
	}
	return dst
}

// dropFrames removes at least n bytes of whole frames from the front of buf
func dropFrames(buf []byte, n, blockAlign int) []byte {
	if rem := n % blockAlign; rem != 0 {
		n += blockAlign - rem
	}
	n = min(n, len(buf))
	return append(buf[:0], buf[n:]...)
}
