package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Execute pipeline steps on a recording",
	Long: `Execute the specified pipeline steps on a recording. Use -p to specify which
steps to run, for example 'wavcapture run memo -p rtp' records, transcribes
and plays back a recording named memo.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p rtp)")
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Output.Directory = output
		}

		svc, autoStopped, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		return runSteps(svc, autoStopped, name, []rune(strings.ToLower(pipeline)), 0)
	},
}

func init() {
	runCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
}
