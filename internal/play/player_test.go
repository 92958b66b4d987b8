package play

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Morning Notes", "Morning_Notes"},
		{"  call #42 / draft  ", "call_42__draft"},
		{"take-1_final", "take-1_final"},
		{"../../etc/passwd", "etcpasswd"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanFileName(tt.input), tt.input)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Morning_Notes.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))

	p := New(dir)

	got, err := p.Resolve("Morning Notes")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = p.Resolve("Morning_Notes.wav")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = p.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = p.Resolve("missing")
	assert.Error(t, err)

	_, err = p.Resolve("???")
	assert.Error(t, err)
}

func TestPlayUsesFirstAvailablePlayer(t *testing.T) {
	bin := t.TempDir()
	out := filepath.Join(t.TempDir(), "played")
	script := "#!/bin/sh\necho \"$@\" > " + out + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "aplay"), []byte(script), 0755))
	t.Setenv("PATH", bin)

	dir := t.TempDir()
	path := filepath.Join(dir, "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))

	require.NoError(t, New(dir).Play(context.Background(), "take"))

	played, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(string(played)))
}

func TestPlayWithoutPlayer(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.wav"), []byte("RIFF"), 0644))

	err := New(dir).Play(context.Background(), "take")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio player found")
}
