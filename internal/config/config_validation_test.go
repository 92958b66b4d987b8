package config

import (
	"os"
	"testing"
	"time"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: test

audio:
  backend: malgo

configs:
  default:
    audio:
      sample_rate: 16000
      channels: 1
      bits_per_sample: 16
      notify_interval: 120ms
      fallback_sample_rates: [16000, 11025, 8000]
    output:
      directory: ~/Audio/WavCapture

  test:
    audio:
      sample_rate: 22050
      bits_per_sample: 8
    max_duration: 10s
`

	configFile := createTempConfig(t, validConfig)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.ActiveConfig != "test" {
		t.Errorf("Expected active config 'test', got %s", rootConfig.ActiveConfig)
	}
	if len(rootConfig.Configs) != 2 {
		t.Errorf("Expected 2 configs, got %d", len(rootConfig.Configs))
	}
	if rootConfig.Audio == nil || rootConfig.Audio.Backend != "malgo" {
		t.Errorf("Expected global audio backend 'malgo', got %+v", rootConfig.Audio)
	}

	def := rootConfig.Configs["default"]
	if def.Audio.NotifyInterval != 120*time.Millisecond {
		t.Errorf("Expected notify interval 120ms, got %s", def.Audio.NotifyInterval)
	}
	if len(def.Audio.FallbackSampleRates) != 3 || def.Audio.FallbackSampleRates[2] != 8000 {
		t.Errorf("Unexpected fallback rates: %v", def.Audio.FallbackSampleRates)
	}
	if rootConfig.Configs["test"].MaxDuration != 10*time.Second {
		t.Errorf("Expected max duration 10s, got %s", rootConfig.Configs["test"].MaxDuration)
	}
}

func TestValidateConfigurationFormat_MissingConfigs(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: default
audio:
  backend: auto
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for missing configs section")
	}
	if !contains(err.Error(), "configs section is required") {
		t.Errorf("Expected error about configs section, got: %v", err)
	}
}

func TestValidateConfigurationFormat_UnknownActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: studio
configs:
  default:
    output:
      directory: /tmp
`)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for unknown active config")
	}
	if !contains(err.Error(), "active_config 'studio'") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidateConfigurationFormat_InvalidAudio(t *testing.T) {
	testCases := []struct {
		name        string
		audio       string
		expectedErr string
	}{
		{
			name:        "unknown backend",
			audio:       "backend: pulseaudio",
			expectedErr: "backend must be one of",
		},
		{
			name:        "non standard rate",
			audio:       "sample_rate: 48000",
			expectedErr: "not a standard rate",
		},
		{
			name:        "too many channels",
			audio:       "channels: 6",
			expectedErr: "channels must be 1 or 2",
		},
		{
			name:        "24 bit",
			audio:       "bits_per_sample: 24",
			expectedErr: "bits_per_sample must be 8 or 16",
		},
		{
			name:        "bad fallback rate",
			audio:       "fallback_sample_rates: [16000, 12345]",
			expectedErr: "fallback_sample_rates[1]",
		},
		{
			name:        "negative interval",
			audio:       "notify_interval: -5ms",
			expectedErr: "notify_interval must be > 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			configFile := createTempConfig(t, `
configs:
  default:
    audio:
      `+tc.audio+`
`)

			_, err := ValidateConfigurationFormat(configFile)
			if err == nil {
				t.Fatalf("Expected error containing '%s', got nil", tc.expectedErr)
			}
			if !contains(err.Error(), tc.expectedErr) {
				t.Errorf("Expected error containing '%s', got: %v", tc.expectedErr, err)
			}
		})
	}
}

func TestValidateConfigurationFormat_MissingFile(t *testing.T) {
	_, err := ValidateConfigurationFormat("/nonexistent/wavcapture.yaml")
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(*Config)
		expectedErr string
	}{
		{"no output directory", func(c *Config) { c.Output.Directory = "" }, "output.directory is required"},
		{"negative max duration", func(c *Config) { c.MaxDuration = -time.Second }, "max_duration must be >= 0"},
		{"zero queue depth", func(c *Config) { c.Audio.QueueDepth = 0 }, "queue_depth must be > 0"},
		{"transcription without command", func(c *Config) {
			c.Transcription.Enabled = true
			c.Transcription.Command = ""
		}, "transcription.command is required"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected error containing '%s', got nil", tc.expectedErr)
			}
			if !contains(err.Error(), tc.expectedErr) {
				t.Errorf("Expected error containing '%s', got: %v", tc.expectedErr, err)
			}
		})
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	tmpfile, err := os.CreateTemp(t.TempDir(), "wavcapture-test-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpfile.Name()
}
