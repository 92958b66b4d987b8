package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [file]",
	Short: "Transcribe a WAV file",
	Long: `Run the configured transcription command on a WAV file and print the
transcript. The argument is either a path or the name of a recording in the
output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, autoStopped, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		path, err := resolveRecording(svc, args[0])
		if err != nil {
			return err
		}

		text, err := svc.Transcribe(context.Background(), path)
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}
		fmt.Println(text)

		return executePipeline(svc, autoStopped, path, 't')
	},
}
