package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMergeConfigs_ProfileOverridesDefault(t *testing.T) {
	base := Default()
	base.Output.Directory = "~/Audio/Default"

	profile := &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
		},
		Output: OutputConfig{
			Directory: "~/Audio/Studio",
		},
		MaxDuration: time.Minute,
		Transcription: TranscriptionConfig{
			Enabled: true,
			Args:    []string{"{file}"},
		},
	}

	result := mergeConfigs(base, profile)

	if result.Audio.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", result.Audio.SampleRate)
	}
	if result.Audio.Channels != 2 {
		t.Errorf("Expected 2 channels, got %d", result.Audio.Channels)
	}
	// Inherited from base
	if result.Audio.BitsPerSample != 16 {
		t.Errorf("Expected bits per sample to be inherited as 16, got %d", result.Audio.BitsPerSample)
	}
	if result.Audio.NotifyInterval != 120*time.Millisecond {
		t.Errorf("Expected notify interval 120ms, got %s", result.Audio.NotifyInterval)
	}
	if result.Audio.Backend != "auto" {
		t.Errorf("Expected backend 'auto', got %s", result.Audio.Backend)
	}
	if result.Output.Directory != "~/Audio/Studio" {
		t.Errorf("Expected directory '~/Audio/Studio', got %s", result.Output.Directory)
	}
	if result.MaxDuration != time.Minute {
		t.Errorf("Expected max duration 1m, got %s", result.MaxDuration)
	}
	if !result.Transcription.Enabled {
		t.Errorf("Expected transcription to be enabled by the profile")
	}
	if result.Transcription.Command != "whisper-cli" {
		t.Errorf("Expected inherited transcription command, got %s", result.Transcription.Command)
	}
	if len(result.Transcription.Args) != 1 || result.Transcription.Args[0] != "{file}" {
		t.Errorf("Expected profile transcription args, got %v", result.Transcription.Args)
	}
}

func TestMergeConfigs_DoesNotAliasBase(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, &Config{})

	result.Audio.FallbackSampleRates[0] = 8000
	if base.Audio.FallbackSampleRates[0] != 16000 {
		t.Errorf("Merged config shares fallback rates with its base")
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := Default()
	base.Transcription.Enabled = true

	result := mergeConfigs(base, nil)
	if !result.Transcription.Enabled {
		t.Errorf("Expected base values to be kept without a profile")
	}
	if result.Audio.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", result.Audio.SampleRate)
	}

	result = mergeConfigs(nil, &Config{Audio: AudioConfig{SampleRate: 8000}})
	if result.Audio.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", result.Audio.SampleRate)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Built-in defaults should validate, got: %v", err)
	}
}

func TestLoadWithProfile_NoFile(t *testing.T) {
	cfg, err := LoadWithProfile("", "")
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.BitsPerSample != 16 {
		t.Errorf("Unexpected default audio config: %+v", cfg.Audio)
	}
	if cfg.MaxDuration != 30*time.Second {
		t.Errorf("Expected 30s max duration, got %s", cfg.MaxDuration)
	}
}

func TestLoadWithProfile_ActiveAndExplicitProfile(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: podcast

audio:
  backend: synthetic
  queue_depth: 8

logging:
  level: debug
  file: ~/logs/wavcapture.log

configs:
  default:
    audio:
      sample_rate: 16000
      channels: 1
      bits_per_sample: 16
    output:
      directory: /tmp/wavcapture/default
    max_duration: 30s

  podcast:
    audio:
      sample_rate: 44100
      channels: 2
      notify_interval: 60ms
      fallback_sample_rates: [22050, 11025]
    output:
      directory: /tmp/wavcapture/podcast
    max_duration: 2m
    transcription:
      enabled: true
      command: echo
      args: ["{file}"]
      timeout: 5s
`)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Profile != "podcast" {
		t.Errorf("Expected active profile 'podcast', got %s", cfg.Profile)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.Channels != 2 || cfg.Audio.BitsPerSample != 16 {
		t.Errorf("Unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.NotifyInterval != 60*time.Millisecond {
		t.Errorf("Expected notify interval 60ms, got %s", cfg.Audio.NotifyInterval)
	}
	if len(cfg.Audio.FallbackSampleRates) != 2 || cfg.Audio.FallbackSampleRates[0] != 22050 {
		t.Errorf("Unexpected fallback rates: %v", cfg.Audio.FallbackSampleRates)
	}
	// Global audio block fills fields no profile set
	if cfg.Audio.Backend != "synthetic" {
		t.Errorf("Expected global backend 'synthetic', got %s", cfg.Audio.Backend)
	}
	if cfg.Audio.QueueDepth != 8 {
		t.Errorf("Expected global queue depth 8, got %d", cfg.Audio.QueueDepth)
	}
	if cfg.MaxDuration != 2*time.Minute {
		t.Errorf("Expected max duration 2m, got %s", cfg.MaxDuration)
	}
	if !cfg.Transcription.Enabled || cfg.Transcription.Command != "echo" || cfg.Transcription.Timeout != 5*time.Second {
		t.Errorf("Unexpected transcription config: %+v", cfg.Transcription)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level debug, got %s", cfg.Logging.Level)
	}
	homeDir, _ := os.UserHomeDir()
	if cfg.Logging.File != filepath.Join(homeDir, "logs", "wavcapture.log") {
		t.Errorf("Expected expanded log file path, got %s", cfg.Logging.File)
	}

	cfg, err = LoadWithProfile(configFile, "default")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Output.Directory != "/tmp/wavcapture/default" {
		t.Errorf("Unexpected default profile: %+v", cfg)
	}
	if cfg.Transcription.Enabled {
		t.Errorf("Expected transcription disabled in the default profile")
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  default:
    output:
      directory: /tmp/wavcapture
`)

	_, err := LoadWithProfile(configFile, "missing")
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
	if !contains(err.Error(), "'missing' not found") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: default
configs:
  default:
    output:
      directory: /tmp/a
  other:
    output:
      directory: /tmp/b
`)

	if err := UpdateActiveConfig(configFile, "other"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Profile != "other" || cfg.Output.Directory != "/tmp/b" {
		t.Errorf("Expected switched profile 'other', got %s (%s)", cfg.Profile, cfg.Output.Directory)
	}

	if err := UpdateActiveConfig("", "other"); err == nil {
		t.Errorf("Expected error without a config file")
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/WavCapture", filepath.Join(homeDir, "Audio/WavCapture")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%s) = %s, expected %s", test.input, result, test.expected)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 || containsSubstring(s, substr))
}

func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
