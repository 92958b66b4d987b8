package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/wavcapture/internal/wav"
)

// State represents the current state of the recorder
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateRecording    State = "RECORDING"
	StateStopped      State = "STOPPED"
	StateError        State = "ERROR"
)

var (
	// ErrIllegalState is returned when an operation is called in a state
	// that does not allow it.
	ErrIllegalState = errors.New("illegal recorder state")
	// ErrDeviceInit is returned when the capture stream cannot be opened
	ErrDeviceInit = errors.New("capture device initialization failed")
	// ErrNoOutputFile is returned by Prepare when no output file was set
	ErrNoOutputFile = errors.New("output file not set")
	// ErrNoUsableConfig is returned by NewFirstAvailable when every
	// candidate configuration failed to initialize.
	ErrNoUsableConfig = errors.New("no usable recorder configuration")
)

// drainEvent is queued for the capture loop. A nil halt asks for one drain;
// otherwise the loop replies on halt and exits.
type drainEvent struct {
	halt chan<- error
}

// Recorder captures PCM audio into a WAV file.
//
// Every transition either succeeds or leaves the recorder in StateError and
// returns the cause. A recorder in StateError only accepts Release; build a
// new one to record again.
type Recorder struct {
	cfg     RecorderConfig
	backend Backend
	metrics *Metrics

	// events is written by the stream's notification hook and read by the
	// capture loop of the current recording
	events chan drainEvent

	mu        sync.Mutex
	state     State
	err       error
	plan      BufferPlan
	stream    Stream
	path      string
	out       *wav.Writer
	buf       []byte
	capturing bool
	payload   int64
}

// Option configures a Recorder
type Option func(*Recorder)

// WithMetrics records drains, drops and transitions in m
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New binds a recorder to cfg and opens its capture stream. The recorder is
// always returned; check State or Err to see whether the stream opened.
func New(backend Backend, cfg RecorderConfig, opts ...Option) *Recorder {
	cfg = cfg.withDefaults()
	r := &Recorder{
		cfg:     cfg,
		backend: backend,
		events:  make(chan drainEvent, cfg.QueueDepth),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.openStream(); err != nil {
		r.fail(err)
		return r
	}
	r.setState(StateInitializing)
	return r
}

// Config returns the configuration the recorder is bound to
func (r *Recorder) Config() RecorderConfig {
	return r.cfg
}

// Plan returns the buffer sizes negotiated with the backend
func (r *Recorder) Plan() BufferPlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plan
}

// State returns the current lifecycle state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that moved the recorder to StateError
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OutputFile returns the bound output path
func (r *Recorder) OutputFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Payload returns the PCM bytes written by the current or last recording
func (r *Recorder) Payload() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out != nil {
		return r.out.DataSize()
	}
	return r.payload
}

// SetOutputFile binds the WAV file to write. It is only accepted while
// initializing; in any other state the call is rejected and the state is
// left unchanged.
func (r *Recorder) SetOutputFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitializing {
		slog.Warn("Output file can only be set while initializing", "state", r.state, "path", path)
		return fmt.Errorf("%w: cannot set output file in %s state", ErrIllegalState, r.state)
	}
	r.path = path
	return nil
}

// Prepare creates the output file with a placeholder header and allocates
// the drain buffer.
func (r *Recorder) Prepare() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitializing {
		err := fmt.Errorf("%w: prepare called in %s state", ErrIllegalState, r.state)
		if rerr := r.releaseLocked(); rerr != nil {
			slog.Warn("Failed to release recorder", "error", rerr)
		}
		return r.fail(err)
	}
	if r.stream == nil {
		return r.fail(fmt.Errorf("%w: prepare called on an uninitialized recorder", ErrDeviceInit))
	}
	if r.path == "" {
		return r.fail(ErrNoOutputFile)
	}

	out, err := wav.Create(r.path, r.cfg.Format())
	if err != nil {
		return r.fail(fmt.Errorf("failed to prepare %s: %w", r.path, err))
	}

	r.out = out
	r.payload = 0
	r.buf = make([]byte, r.plan.DrainBufferSize)
	r.setState(StateReady)
	return nil
}

// Start begins capturing. Data buffered by the stream before this call is
// discarded.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return r.fail(fmt.Errorf("%w: start called in %s state", ErrIllegalState, r.state))
	}

	r.flushEvents()
	if err := r.stream.Start(); err != nil {
		// Nothing was captured, drop the placeholder file
		if aerr := r.out.Abort(); aerr != nil {
			slog.Debug("Failed to remove output file", "path", r.path, "error", aerr)
		}
		r.out = nil
		return r.fail(fmt.Errorf("failed to start capture: %w", err))
	}
	if _, err := r.stream.Read(r.buf); err != nil {
		slog.Debug("Initial read failed", "error", err)
	}

	r.capturing = true
	go r.captureLoop(r.stream, r.out, r.buf)
	r.setState(StateRecording)
	return nil
}

// Stop ends the capture, writes everything the stream still buffers and
// patches the WAV header with the final sizes.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return r.fail(fmt.Errorf("%w: stop called in %s state", ErrIllegalState, r.state))
	}
	return r.stopLocked()
}

// Release frees the capture stream. A recording in progress is stopped and
// finalized; a prepared file that never recorded is deleted.
func (r *Recorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked()
}

// Reset releases the recorder and reopens a fresh stream with the same
// configuration, returning it to StateInitializing. The output file has to
// be set again. A recorder in StateError cannot be reset.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateError {
		slog.Warn("Reset ignored on a recorder in error", "error", r.err)
		return fmt.Errorf("%w: reset called in %s state", ErrIllegalState, r.state)
	}

	if err := r.releaseLocked(); err != nil {
		slog.Warn("Failed to release recorder during reset", "error", err)
	}
	r.path = ""
	r.err = nil
	r.payload = 0

	if err := r.openStream(); err != nil {
		return r.fail(err)
	}
	r.setState(StateInitializing)
	return nil
}

// openStream negotiates buffer sizes with the backend and opens a stopped
// stream wired to the notification queue.
func (r *Recorder) openStream() error {
	if r.backend == nil {
		return fmt.Errorf("%w: no capture backend", ErrDeviceInit)
	}
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}

	minSize, err := r.backend.MinBufferSize(r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}

	plan := PlanBuffers(r.cfg, minSize)
	if plan.Raised {
		slog.Warn("Increasing buffer size to the backend minimum",
			"size", plan.HardwareBufferSize, "period_frames", plan.PeriodFrames)
	}

	stream, err := r.backend.Open(r.cfg, plan.HardwareBufferSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}
	if err := stream.SetNotificationPeriod(plan.PeriodFrames, r.notify); err != nil {
		if rerr := stream.Release(); rerr != nil {
			slog.Debug("Failed to release stream", "error", rerr)
		}
		return fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}

	r.plan = plan
	r.stream = stream
	slog.Debug("Capture stream opened",
		"backend", r.backend.Type(),
		"sample_rate", r.cfg.SampleRate,
		"channels", r.cfg.Channels,
		"bits_per_sample", r.cfg.BitsPerSample,
		"buffer_size", plan.HardwareBufferSize,
		"period_frames", plan.PeriodFrames)
	return nil
}

func (r *Recorder) stopLocked() error {
	drainErr := r.haltCapture()

	r.payload = r.out.DataSize()
	finalizeErr := r.out.Finalize()
	r.out = nil

	if finalizeErr != nil {
		return r.fail(fmt.Errorf("failed to finalize %s: %w", r.path, finalizeErr))
	}
	r.metrics.finalized()
	if drainErr != nil {
		return r.fail(fmt.Errorf("recording of %s aborted: %w", r.path, drainErr))
	}

	r.setState(StateStopped)
	slog.Info("Recording finalized", "path", r.path, "payload_bytes", r.payload)
	return nil
}

func (r *Recorder) releaseLocked() error {
	var err error

	switch r.state {
	case StateRecording:
		err = r.stopLocked()
	case StateReady:
		if r.out != nil {
			err = r.out.Abort()
			r.out = nil
			slog.Debug("Removed unused output file", "path", r.path)
		}
		r.setState(StateStopped)
	}

	if r.stream != nil {
		err = errors.Join(err, r.stream.Release())
		r.stream = nil
	}
	return err
}

// haltCapture stops the stream and waits for the capture loop to write
// every notification queued before the halt, then whatever the stream
// still holds.
func (r *Recorder) haltCapture() error {
	r.capturing = false

	stopErr := r.stream.Stop()
	if stopErr != nil {
		stopErr = fmt.Errorf("failed to stop capture: %w", stopErr)
	}

	reply := make(chan error, 1)
	r.events <- drainEvent{halt: reply}
	return errors.Join(stopErr, <-reply)
}

// fail moves the recorder to StateError and returns err. Resources are let
// go without deleting anything: a recording in progress is finalized so the
// file stays readable.
func (r *Recorder) fail(err error) error {
	if r.capturing {
		if herr := r.haltCapture(); herr != nil {
			slog.Debug("Capture loop ended with error", "error", herr)
		}
	}
	if r.out != nil {
		r.payload = r.out.DataSize()
		var cerr error
		if r.state == StateRecording {
			cerr = r.out.Finalize()
		} else {
			cerr = r.out.Close()
		}
		if cerr != nil {
			slog.Debug("Failed to close output file", "path", r.path, "error", cerr)
		}
		r.out = nil
	}
	if r.stream != nil {
		if rerr := r.stream.Release(); rerr != nil {
			slog.Debug("Failed to release stream", "error", rerr)
		}
		r.stream = nil
	}

	slog.Error("Recorder error", "state", r.state, "path", r.path, "error", err)
	r.err = err
	r.setState(StateError)
	return err
}

func (r *Recorder) setState(s State) {
	if r.state != s {
		slog.Debug("Recorder state changed", "from", r.state, "to", s)
	}
	r.state = s
	r.metrics.transition(s)
}

// notify is the stream's notification hook. It never blocks the backend.
func (r *Recorder) notify() {
	select {
	case r.events <- drainEvent{}:
	default:
		r.metrics.dropped()
	}
}

// flushEvents discards notifications left over from a previous recording
func (r *Recorder) flushEvents() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

// captureLoop drains the stream into out once per notification until it
// receives a halt, and a last time on halt. After the first failure the
// remaining notifications are ignored and the failure is reported on halt.
func (r *Recorder) captureLoop(stream Stream, out *wav.Writer, buf []byte) {
	var failure error
	for ev := range r.events {
		if ev.halt != nil {
			if failure == nil {
				failure = r.drain(stream, out, buf)
			}
			ev.halt <- failure
			return
		}
		if failure != nil {
			continue
		}
		failure = r.drain(stream, out, buf)
	}
}

// drain writes everything the stream buffers, one buf at a time. A dropped
// notification leaves more than a period behind, so reading stops only on a
// short read.
func (r *Recorder) drain(stream Stream, out *wav.Writer, buf []byte) error {
	for {
		n, err := stream.Read(buf)
		if err != nil {
			slog.Error("Failed to read captured audio, recording is aborted", "error", err)
			return fmt.Errorf("failed to read captured audio: %w", err)
		}
		if n == 0 {
			return nil
		}

		if _, err := out.Write(buf[:n]); err != nil {
			slog.Error("Failed to write audio data, recording is aborted", "path", out.Path(), "error", err)
			return err
		}
		r.metrics.drained(n)

		if n < len(buf) {
			return nil
		}
	}
}
