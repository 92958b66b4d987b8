package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Play a recording",
	Long: `Play a WAV recording with the first available player among aplay, paplay,
ffplay, mpv and vlc.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		fmt.Printf("Playing recording: %s\n", name)

		svc, _, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Play(context.Background(), name); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		return nil
	},
}
