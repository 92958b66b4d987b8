package cmd

import (
	"log/slog"
	"testing"
)

func TestValidatePipeline(t *testing.T) {
	defer func() { pipeline = "" }()

	for _, p := range []string{"", "r", "rtp", "TP"} {
		pipeline = p
		if err := validatePipeline(); err != nil {
			t.Errorf("Expected pipeline %q to be valid, got: %v", p, err)
		}
	}

	for _, p := range []string{"m", "rmp", "x"} {
		pipeline = p
		if err := validatePipeline(); err == nil {
			t.Errorf("Expected pipeline %q to be rejected", p)
		}
	}
}

func TestExecutePipelineRequiresStartStep(t *testing.T) {
	defer func() { pipeline = "" }()

	pipeline = "tp"
	if err := executePipeline(nil, nil, "take", 'r'); err == nil {
		t.Error("Expected error when the start step is not in the pipeline")
	}

	pipeline = ""
	if err := executePipeline(nil, nil, "take", 'r'); err != nil {
		t.Errorf("Expected no error without a pipeline, got: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for input, expected := range tests {
		if got := parseLevel(input); got != expected {
			t.Errorf("parseLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}
