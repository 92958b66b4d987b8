package audio

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/audiolibrelab/wavcapture/internal/config"
)

// StandardSampleRates lists the capture rates from highest to lowest quality
var StandardSampleRates = slices.Clone(config.SampleRates)

// FallbackConfigs returns base at each of rates, in order
func FallbackConfigs(base RecorderConfig, rates []int) []RecorderConfig {
	configs := make([]RecorderConfig, 0, len(rates))
	for _, rate := range rates {
		cfg := base
		cfg.SampleRate = rate
		configs = append(configs, cfg)
	}
	return configs
}

// CandidatesFromConfig returns the configured format first, followed by the
// configured fallback rates. Rates equal to the primary one are skipped.
func CandidatesFromConfig(a config.AudioConfig) []RecorderConfig {
	base := FromConfig(a)
	rates := []int{a.SampleRate}
	for _, rate := range a.FallbackSampleRates {
		if !slices.Contains(rates, rate) {
			rates = append(rates, rate)
		}
	}
	return FallbackConfigs(base, rates)
}

// NewFirstAvailable constructs a recorder for each candidate in order and
// returns the first one that initializes. When none does, the last recorder
// built is returned in StateError together with ErrNoUsableConfig.
func NewFirstAvailable(backend Backend, candidates []RecorderConfig, opts ...Option) (*Recorder, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrNoUsableConfig)
	}

	var last *Recorder
	for i, cfg := range candidates {
		rec := New(backend, cfg, opts...)
		if rec.State() == StateInitializing {
			if i > 0 {
				slog.Info("Using fallback recorder configuration",
					"sample_rate", cfg.SampleRate, "channels", cfg.Channels, "bits_per_sample", cfg.BitsPerSample)
			}
			return rec, nil
		}
		slog.Debug("Recorder configuration unavailable", "sample_rate", cfg.SampleRate, "error", rec.Err())
		last = rec
	}

	return last, fmt.Errorf("%w: tried %d configurations, last error: %w", ErrNoUsableConfig, len(candidates), last.Err())
}
