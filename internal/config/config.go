package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SampleRates lists the capture rates a recorder may be configured with,
// in the order the fallback factory tries them.
var SampleRates = []int{44100, 22050, 16000, 11025, 8000}

// Backends lists the accepted values of audio.backend
var Backends = []string{"auto", "malgo", "pipewire", "synthetic"}

type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Audio        *AudioConfig       `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Logging      *LoggingConfig     `mapstructure:"logging,omitempty" yaml:"logging,omitempty"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio         AudioConfig         `mapstructure:"audio" yaml:"audio"`
	Output        OutputConfig        `mapstructure:"output" yaml:"output"`
	MaxDuration   time.Duration       `mapstructure:"max_duration" yaml:"max_duration"`
	Transcription TranscriptionConfig `mapstructure:"transcription" yaml:"transcription"`
	Logging       LoggingConfig       `mapstructure:"-" yaml:"logging"`

	// Name of the profile this config was resolved from
	Profile string `mapstructure:"-" yaml:"-"`
}

type AudioConfig struct {
	Backend             string        `mapstructure:"backend" yaml:"backend"` // "malgo", "pipewire", "synthetic", "auto"
	Source              string        `mapstructure:"source" yaml:"source"`
	SampleRate          int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels            int           `mapstructure:"channels" yaml:"channels"`
	BitsPerSample       int           `mapstructure:"bits_per_sample" yaml:"bits_per_sample"`
	NotifyInterval      time.Duration `mapstructure:"notify_interval" yaml:"notify_interval"`
	QueueDepth          int           `mapstructure:"queue_depth" yaml:"queue_depth"`
	FallbackSampleRates []int         `mapstructure:"fallback_sample_rates" yaml:"fallback_sample_rates"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type TranscriptionConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:        "auto",
		Source:         "default",
		SampleRate:     16000,
		Channels:       1,
		BitsPerSample:  16,
		NotifyInterval: 120 * time.Millisecond,
		QueueDepth:     32,
		// The primary rate is tried first, these follow in order
		FallbackSampleRates: []int{16000, 11025, 8000},
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "WavCapture"),
	},
	MaxDuration: 30 * time.Second,
	Transcription: TranscriptionConfig{
		Enabled: false,
		Command: "whisper-cli",
		Args:    []string{"-f", "{file}", "-nt"},
		Timeout: 2 * time.Minute,
	},
	Logging: LoggingConfig{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	},
	Profile: "default",
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.Audio.FallbackSampleRates = slices.Clone(defaultConfig.Audio.FallbackSampleRates)
	cfg.Transcription.Args = slices.Clone(defaultConfig.Transcription.Args)
	return &cfg
}

// DefaultPath returns the config file used when --config is not given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "wavcapture.yaml")
}

// LoadWithProfile reads configFile and resolves the requested profile, or
// the file's active_config when profile is empty. An empty configFile yields
// the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		cfg := Default()
		cfg.Output.Directory = expandPath(cfg.Output.Directory)
		return cfg, nil
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Built-in defaults, then the default profile, then the selected one
	result := mergeConfigs(Default(), rootConfig.Configs["default"])
	if configName != "default" {
		result = mergeConfigs(result, selected)
	}

	// Global audio settings only fill what no profile set
	if rootConfig.Audio != nil {
		result.Audio = mergeAudio(*rootConfig.Audio, result.Audio, selected.Audio, rootConfig.Configs["default"])
	}
	if rootConfig.Logging != nil {
		result.Logging = mergeLogging(result.Logging, *rootConfig.Logging)
	}

	result.Profile = configName
	result.Output.Directory = expandPath(result.Output.Directory)
	result.Logging.File = expandPath(result.Logging.File)

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return result, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs overlays profile on base. Zero values in the profile inherit
// the base value; transcription.enabled always comes from the profile.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}
	if base != nil {
		*result = *base
		result.Audio.FallbackSampleRates = slices.Clone(base.Audio.FallbackSampleRates)
		result.Transcription.Args = slices.Clone(base.Transcription.Args)
	}

	if profile == nil {
		return result
	}

	a := profile.Audio
	if a.Backend != "" {
		result.Audio.Backend = a.Backend
	}
	if a.Source != "" {
		result.Audio.Source = a.Source
	}
	if a.SampleRate != 0 {
		result.Audio.SampleRate = a.SampleRate
	}
	if a.Channels != 0 {
		result.Audio.Channels = a.Channels
	}
	if a.BitsPerSample != 0 {
		result.Audio.BitsPerSample = a.BitsPerSample
	}
	if a.NotifyInterval != 0 {
		result.Audio.NotifyInterval = a.NotifyInterval
	}
	if a.QueueDepth != 0 {
		result.Audio.QueueDepth = a.QueueDepth
	}
	if len(a.FallbackSampleRates) > 0 {
		result.Audio.FallbackSampleRates = slices.Clone(a.FallbackSampleRates)
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}
	if profile.MaxDuration != 0 {
		result.MaxDuration = profile.MaxDuration
	}

	result.Transcription.Enabled = profile.Transcription.Enabled
	if profile.Transcription.Command != "" {
		result.Transcription.Command = profile.Transcription.Command
	}
	if len(profile.Transcription.Args) > 0 {
		result.Transcription.Args = slices.Clone(profile.Transcription.Args)
	}
	if profile.Transcription.Timeout != 0 {
		result.Transcription.Timeout = profile.Transcription.Timeout
	}

	return result
}

// mergeAudio applies the global audio block to fields neither the default
// nor the selected profile set explicitly.
func mergeAudio(global, resolved, selected AudioConfig, defaultProfile *Config) AudioConfig {
	var fromDefault AudioConfig
	if defaultProfile != nil {
		fromDefault = defaultProfile.Audio
	}
	unset := func(selectedZero, defaultZero bool) bool {
		return selectedZero && defaultZero
	}

	if global.Backend != "" && unset(selected.Backend == "", fromDefault.Backend == "") {
		resolved.Backend = global.Backend
	}
	if global.Source != "" && unset(selected.Source == "", fromDefault.Source == "") {
		resolved.Source = global.Source
	}
	if global.SampleRate != 0 && unset(selected.SampleRate == 0, fromDefault.SampleRate == 0) {
		resolved.SampleRate = global.SampleRate
	}
	if global.Channels != 0 && unset(selected.Channels == 0, fromDefault.Channels == 0) {
		resolved.Channels = global.Channels
	}
	if global.BitsPerSample != 0 && unset(selected.BitsPerSample == 0, fromDefault.BitsPerSample == 0) {
		resolved.BitsPerSample = global.BitsPerSample
	}
	if global.NotifyInterval != 0 && unset(selected.NotifyInterval == 0, fromDefault.NotifyInterval == 0) {
		resolved.NotifyInterval = global.NotifyInterval
	}
	if global.QueueDepth != 0 && unset(selected.QueueDepth == 0, fromDefault.QueueDepth == 0) {
		resolved.QueueDepth = global.QueueDepth
	}
	if len(global.FallbackSampleRates) > 0 && unset(len(selected.FallbackSampleRates) == 0, len(fromDefault.FallbackSampleRates) == 0) {
		resolved.FallbackSampleRates = slices.Clone(global.FallbackSampleRates)
	}
	return resolved
}

func mergeLogging(base, override LoggingConfig) LoggingConfig {
	if override.Level != "" {
		base.Level = override.Level
	}
	if override.File != "" {
		base.File = override.File
	}
	if override.MaxSizeMB != 0 {
		base.MaxSizeMB = override.MaxSizeMB
	}
	if override.MaxBackups != 0 {
		base.MaxBackups = override.MaxBackups
	}
	if override.MaxAgeDays != 0 {
		base.MaxAgeDays = override.MaxAgeDays
	}
	return base
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
