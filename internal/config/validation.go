package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("WAVCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	if rootConfig.Audio != nil {
		if err := validatePartialAudio(*rootConfig.Audio, "audio"); err != nil {
			return nil, err
		}
	}

	for name, profile := range rootConfig.Configs {
		if profile == nil {
			return nil, fmt.Errorf("config '%s' is empty", name)
		}
		if err := validatePartialAudio(profile.Audio, fmt.Sprintf("configs.%s.audio", name)); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", name, err)
		}
	}

	if rootConfig.ActiveConfig != "" {
		if _, ok := rootConfig.Configs[rootConfig.ActiveConfig]; !ok {
			return nil, fmt.Errorf("active_config '%s' does not match any entry in configs", rootConfig.ActiveConfig)
		}
	}

	return &rootConfig, nil
}

// Validate checks a fully resolved configuration
func (c *Config) Validate() error {
	a := c.Audio
	if a.Backend == "" {
		return fmt.Errorf("audio.backend is required")
	}
	if a.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate is required")
	}
	if a.Channels == 0 {
		return fmt.Errorf("audio.channels is required")
	}
	if a.BitsPerSample == 0 {
		return fmt.Errorf("audio.bits_per_sample is required")
	}
	if a.NotifyInterval <= 0 {
		return fmt.Errorf("audio.notify_interval must be > 0, got %s", a.NotifyInterval)
	}
	if a.QueueDepth <= 0 {
		return fmt.Errorf("audio.queue_depth must be > 0, got %d", a.QueueDepth)
	}
	if err := validatePartialAudio(a, "audio"); err != nil {
		return err
	}

	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration must be >= 0, got %s", c.MaxDuration)
	}

	if c.Transcription.Enabled && c.Transcription.Command == "" {
		return fmt.Errorf("transcription.command is required when transcription is enabled")
	}
	if c.Transcription.Timeout < 0 {
		return fmt.Errorf("transcription.timeout must be >= 0, got %s", c.Transcription.Timeout)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got: %s", c.Logging.Level)
	}

	return nil
}

// validatePartialAudio checks the fields that are set; zero values are
// inherited and checked after merging.
func validatePartialAudio(a AudioConfig, prefix string) error {
	if a.Backend != "" && !slices.Contains(Backends, strings.ToLower(a.Backend)) {
		return fmt.Errorf("%s.backend must be one of %s, got: %s", prefix, strings.Join(Backends, ", "), a.Backend)
	}
	if a.SampleRate != 0 && !slices.Contains(SampleRates, a.SampleRate) {
		return fmt.Errorf("%s.sample_rate %d is not a standard rate %v", prefix, a.SampleRate, SampleRates)
	}
	if a.Channels != 0 && a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("%s.channels must be 1 or 2, got: %d", prefix, a.Channels)
	}
	if a.BitsPerSample != 0 && a.BitsPerSample != 8 && a.BitsPerSample != 16 {
		return fmt.Errorf("%s.bits_per_sample must be 8 or 16, got: %d", prefix, a.BitsPerSample)
	}
	if a.NotifyInterval < 0 {
		return fmt.Errorf("%s.notify_interval must be > 0, got: %s", prefix, a.NotifyInterval)
	}
	if a.QueueDepth < 0 {
		return fmt.Errorf("%s.queue_depth must be > 0, got: %d", prefix, a.QueueDepth)
	}
	for i, rate := range a.FallbackSampleRates {
		if !slices.Contains(SampleRates, rate) {
			return fmt.Errorf("%s.fallback_sample_rates[%d] %d is not a standard rate %v", prefix, i, rate, SampleRates)
		}
	}
	return nil
}
