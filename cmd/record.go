package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record audio into a WAV file",
	Long: `Record audio from the configured capture device into a PCM WAV file in the
output directory. The recording stops on Ctrl+C or after max_duration.
Without a name, the file is named after the session id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		slog.Info("Record command started", "name", name)

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Output.Directory = output
		}

		svc, autoStopped, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		session, err := recordUntilStopped(svc, autoStopped, name, false)
		if err != nil {
			return err
		}
		printSession(session)

		return executePipeline(svc, autoStopped, session.OutputFile, 'r')
	},
}

func init() {
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}
