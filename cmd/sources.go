package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/wavcapture/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long: `List the capture devices of the configured backend. The name of a device
can be used as audio.source in the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewBackend(cfg.Audio.Backend)
		if err != nil {
			return err
		}
		return listAvailableSources(backend)
	},
}

// listAvailableSources prints the sources reported by backend
func listAvailableSources(backend audio.Backend) error {
	sources, err := backend.ListSources()
	if err != nil {
		return fmt.Errorf("failed to get %s sources: %w", backend.Type(), err)
	}

	fmt.Printf("Audio Sources (%s, %s backend)\n", runtime.GOOS, backend.Type())
	fmt.Printf("=======================================\n\n")

	fmt.Printf("%d found:\n", len(sources))
	for i, source := range sources {
		fmt.Printf("  %d. %s\n", i+1, source)
	}

	fmt.Printf("\nUsage:\n")
	fmt.Printf("  Configure audio.source with a name above, or \"default\" for the system default device.\n")
	fmt.Printf("  Available backends: %v\n", audio.GetAvailableBackends())

	return nil
}
