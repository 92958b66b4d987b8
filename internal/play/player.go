package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Players lists the external players tried, in order of preference
var Players = []string{"aplay", "paplay", "ffplay", "mpv", "vlc"}

type Player struct {
	directory string
}

// New returns a player resolving recording names inside directory
func New(directory string) *Player {
	return &Player{directory: directory}
}

// Resolve maps a recording name or a path to an existing WAV file
func (p *Player) Resolve(name string) (string, error) {
	if _, err := os.Stat(name); err == nil && strings.HasSuffix(strings.ToLower(name), ".wav") {
		return name, nil
	}

	cleanName := CleanFileName(strings.TrimSuffix(name, filepath.Ext(name)))
	if cleanName == "" {
		return "", fmt.Errorf("invalid recording name: %q", name)
	}
	audioFile := filepath.Join(p.directory, cleanName+".wav")

	if _, err := os.Stat(audioFile); err != nil {
		return "", fmt.Errorf("audio file not found: %s", audioFile)
	}
	return audioFile, nil
}

// Play resolves name and plays it with the first available player
func (p *Player) Play(ctx context.Context, name string) error {
	audioFile, err := p.Resolve(name)
	if err != nil {
		return err
	}

	player, err := findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	var cmd *exec.Cmd
	switch player {
	case "aplay", "paplay":
		cmd = exec.CommandContext(ctx, player, audioFile)
	case "ffplay":
		cmd = exec.CommandContext(ctx, "ffplay", "-nodisp", "-autoexit", audioFile)
	case "mpv":
		cmd = exec.CommandContext(ctx, "mpv", "--no-video", audioFile)
	case "vlc":
		cmd = exec.CommandContext(ctx, "vlc", "--play-and-exit", audioFile)
	default:
		return fmt.Errorf("unsupported player: %s", player)
	}

	slog.Info("Playing recording", "file", audioFile, "player", player)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Debug("Playback completed", "file", audioFile)
	return nil
}

func findAudioPlayer() (string, error) {
	for _, player := range Players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(Players, ", "))
}

// CleanFileName turns a recording name into a file name. Letters, digits,
// hyphens and underscores are kept and spaces become underscores.
func CleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}
