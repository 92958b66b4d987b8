package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/audiolibrelab/wavcapture/internal/play"
	"github.com/audiolibrelab/wavcapture/internal/service"
)

// newService builds the recording service for CLI commands. Sessions
// stopped by the service itself, on max duration, are sent to the channel.
func newService() (*service.RecordingService, <-chan *service.Session, error) {
	autoStopped := make(chan *service.Session, 1)
	svc, err := service.New(cfg, service.WithStopHandler(func(s *service.Session) {
		if !s.AutoStopped {
			return
		}
		select {
		case autoStopped <- s:
		default:
		}
	}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, autoStopped, nil
}

// recordUntilStopped starts a recording and waits for an interrupt, a line
// on stdin when waitForEnter is set, or the maximum duration.
func recordUntilStopped(svc *service.RecordingService, autoStopped <-chan *service.Session, name string, waitForEnter bool) (*service.Session, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := svc.Start(name)
	if err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	hint := "Press Ctrl+C to stop"
	if waitForEnter {
		hint = "Press Enter to stop"
	}
	if cfg.MaxDuration > 0 {
		hint += fmt.Sprintf(" (stops automatically after %s)", cfg.MaxDuration)
	}
	fmt.Printf("Recording to %s at %d Hz - %s\n", session.OutputFile, session.Format.SampleRate, hint)

	enter := make(chan struct{})
	if waitForEnter {
		go func() {
			bufio.NewScanner(os.Stdin).Scan()
			close(enter)
		}()
	}

	select {
	case s := <-autoStopped:
		fmt.Println("Maximum duration reached")
		return s, nil
	case <-ctx.Done():
	case <-enter:
	}

	slog.Info("Stopping recording...")
	s, err := svc.Stop(context.Background())
	if errors.Is(err, service.ErrNotRecording) {
		// Lost the race against the max duration timer
		return <-autoStopped, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to stop recording: %w", err)
	}
	return s, nil
}

func printSession(s *service.Session) {
	fmt.Printf("Saved %s (%s, %d bytes)\n", s.OutputFile, s.Duration.Round(10*time.Millisecond), s.Payload)
	if s.Transcript != "" {
		fmt.Printf("Transcript: %s\n", s.Transcript)
	}
	if s.Error != "" {
		fmt.Printf("Warning: %s\n", s.Error)
	}
}

// executePipeline runs the pipeline steps that follow startStep
func executePipeline(svc *service.RecordingService, autoStopped <-chan *service.Session, name string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}

	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	return runSteps(svc, autoStopped, name, steps[startIndex+1:], startStep)
}

// runSteps executes steps in order on the recording called name. prev is
// the step that ran before the first one, or 0.
func runSteps(svc *service.RecordingService, autoStopped <-chan *service.Session, name string, steps []rune, prev rune) error {
	ctx := context.Background()
	for i, step := range steps {
		if i > 0 {
			prev = steps[i-1]
		}
		fmt.Printf("Pipeline: executing step %d/%d: '%c'...\n", i+1, len(steps), step)

		switch step {
		case 'r':
			session, err := recordUntilStopped(svc, autoStopped, name, true)
			if err != nil {
				return fmt.Errorf("pipeline record failed: %w", err)
			}
			printSession(session)
			fmt.Println("Pipeline: recording completed")

		case 't':
			if svc.GetConfig().Transcription.Enabled && prev == 'r' {
				// Already transcribed on stop
				continue
			}
			path, err := resolveRecording(svc, name)
			if err != nil {
				return fmt.Errorf("pipeline transcribe failed: %w", err)
			}
			text, err := svc.Transcribe(ctx, path)
			if err != nil {
				return fmt.Errorf("pipeline transcribe failed: %w", err)
			}
			fmt.Printf("Transcript: %s\n", text)
			fmt.Println("Pipeline: transcription completed")

		case 'p':
			if err := svc.Play(ctx, name); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}
			fmt.Println("Pipeline: playback completed")

		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=record, t=transcribe, p=play)", step)
		}
	}

	return nil
}

// resolveRecording maps a recording name or a path to a WAV file
func resolveRecording(svc *service.RecordingService, name string) (string, error) {
	return play.New(svc.GetConfig().Output.Directory).Resolve(name)
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	validSteps := map[rune]bool{
		'r': true, // record
		't': true, // transcribe
		'p': true, // play
	}

	steps := []rune(strings.ToLower(pipeline))
	for _, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=record, t=transcribe, p=play)", step)
		}
	}

	return nil
}
