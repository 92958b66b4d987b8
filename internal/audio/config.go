package audio

import (
	"fmt"
	"time"

	"github.com/audiolibrelab/wavcapture/internal/config"
	"github.com/audiolibrelab/wavcapture/internal/wav"
)

const (
	// DefaultNotifyInterval is the period between two drains of the stream
	DefaultNotifyInterval = 120 * time.Millisecond
	// DefaultQueueDepth bounds the notifications waiting for the capture loop
	DefaultQueueDepth = 32
)

// RecorderConfig is the capture configuration a recorder is bound to for its
// whole life.
type RecorderConfig struct {
	Source         string        `json:"source,omitempty"`
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	BitsPerSample  int           `json:"bits_per_sample"`
	NotifyInterval time.Duration `json:"notify_interval"`
	QueueDepth     int           `json:"queue_depth"`
}

// FromConfig builds the recorder configuration from the audio section of a
// loaded profile.
func FromConfig(a config.AudioConfig) RecorderConfig {
	return RecorderConfig{
		Source:         a.Source,
		SampleRate:     a.SampleRate,
		Channels:       a.Channels,
		BitsPerSample:  a.BitsPerSample,
		NotifyInterval: a.NotifyInterval,
		QueueDepth:     a.QueueDepth,
	}
}

// Format returns the PCM layout written to the WAV file
func (c RecorderConfig) Format() wav.Format {
	return wav.Format{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitsPerSample: c.BitsPerSample,
	}
}

// Validate checks the configuration describes a stream the recorder can write
func (c RecorderConfig) Validate() error {
	if err := c.Format().Validate(); err != nil {
		return err
	}
	if c.NotifyInterval < time.Millisecond {
		return fmt.Errorf("notify interval must be at least 1ms, got %s", c.NotifyInterval)
	}
	if c.periodFrames() == 0 {
		return fmt.Errorf("notify interval %s is shorter than one frame at %d Hz", c.NotifyInterval, c.SampleRate)
	}
	return nil
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.NotifyInterval == 0 {
		c.NotifyInterval = DefaultNotifyInterval
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}

// periodFrames is the number of frames captured during one notify interval
func (c RecorderConfig) periodFrames() int {
	return int(int64(c.SampleRate) * c.NotifyInterval.Milliseconds() / 1000)
}

// BufferPlan holds the sizes derived from a configuration and the backend's
// minimum buffer size.
type BufferPlan struct {
	// PeriodFrames is the number of frames between two notifications
	PeriodFrames int `json:"period_frames"`
	// HardwareBufferSize is the stream buffer size in bytes
	HardwareBufferSize int `json:"hardware_buffer_size"`
	// DrainBufferSize is the size of the buffer filled by each drain
	DrainBufferSize int `json:"drain_buffer_size"`
	// Raised is set when the backend minimum exceeded the computed size
	Raised bool `json:"raised"`
}

// PlanBuffers sizes the stream buffer to hold two notification periods. When
// the backend needs more than that, the buffer grows to the minimum and the
// period is recomputed to half of it.
func PlanBuffers(cfg RecorderConfig, minBufferSize int) BufferPlan {
	blockAlign := cfg.Format().BlockAlign()
	plan := BufferPlan{PeriodFrames: cfg.periodFrames()}
	plan.HardwareBufferSize = plan.PeriodFrames * 2 * blockAlign

	if plan.HardwareBufferSize < minBufferSize {
		plan.HardwareBufferSize = minBufferSize
		plan.PeriodFrames = minBufferSize / (2 * blockAlign)
		plan.Raised = true
	}

	plan.DrainBufferSize = plan.PeriodFrames * blockAlign
	return plan
}
