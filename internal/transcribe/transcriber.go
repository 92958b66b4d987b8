package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/audiolibrelab/wavcapture/internal/config"
)

// Transcriber turns a WAV file into text
type Transcriber interface {
	// Transcribe returns the transcript of wavPath. recorded tells whether
	// the file was produced by this tool. An empty transcript is valid.
	Transcribe(ctx context.Context, wavPath string, recorded bool) (string, error)
	Close() error
}

// ErrTimeout is returned when the transcription command runs past its timeout
var ErrTimeout = errors.New("transcription timed out")

// Command runs an external program and returns its standard output.
//
// Arguments may contain {file}, replaced by the WAV path, and {recorded},
// replaced by 1 for recordings made by this tool and 0 otherwise.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// NewCommand builds a command transcriber from the transcription config
func NewCommand(cfg config.TranscriptionConfig) (*Command, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("transcription command is empty")
	}
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("transcription command not found: %w", err)
	}
	return &Command{Path: path, Args: cfg.Args, Timeout: cfg.Timeout}, nil
}

func (c *Command) Transcribe(ctx context.Context, wavPath string, recorded bool) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := expandArgs(c.Args, wavPath, recorded)
	cmd := exec.CommandContext(ctx, c.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running transcription", "command", c.Path, "args", strings.Join(args, " "))
	start := time.Now()

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %s", ErrTimeout, c.Timeout, wavPath)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("transcription cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to transcribe %s: %w: %s", wavPath, err, strings.TrimSpace(stderr.String()))
	}

	transcript := strings.TrimSpace(stdout.String())
	slog.Info("Transcription completed", "file", wavPath, "chars", len(transcript), "elapsed", time.Since(start))
	return transcript, nil
}

func (c *Command) Close() error {
	return nil
}

func expandArgs(args []string, wavPath string, recorded bool) []string {
	flag := "0"
	if recorded {
		flag = "1"
	}
	replacer := strings.NewReplacer("{file}", wavPath, "{recorded}", flag)

	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, replacer.Replace(arg))
	}
	return out
}
