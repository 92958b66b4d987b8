package cmd

import (
	"fmt"

	"github.com/audiolibrelab/wavcapture/internal/play"
	"github.com/audiolibrelab/wavcapture/internal/wav"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Show the header and contents of a WAV file",
	Long: `Display the format, the header size fields and the decoded contents of a WAV
file. A file whose size fields do not match its length was not finalized,
which happens when a recording is interrupted before it is stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := play.New(cfg.Output.Directory).Resolve(args[0])
		if err != nil {
			return err
		}

		info, err := wav.Inspect(path)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", path, err)
		}

		fmt.Printf("=== FILE ===\n")
		fmt.Printf("path: %s\n", info.Path)
		fmt.Printf("file_size: %d\n", info.FileSize)
		fmt.Printf("finalized: %t\n", info.Finalized)

		fmt.Printf("\n=== FORMAT ===\n")
		fmt.Printf("sample_rate: %d\n", info.Format.SampleRate)
		fmt.Printf("channels: %d\n", info.Format.Channels)
		fmt.Printf("bits_per_sample: %d\n", info.Format.BitsPerSample)
		fmt.Printf("byte_rate: %d\n", info.Format.ByteRate())
		fmt.Printf("block_align: %d\n", info.Format.BlockAlign())

		fmt.Printf("\n=== HEADER ===\n")
		fmt.Printf("riff_size: %d\n", info.RIFFSize)
		fmt.Printf("data_size: %d\n", info.DataSize)

		fmt.Printf("\n=== CONTENTS ===\n")
		fmt.Printf("duration: %s\n", info.Duration)
		if info.Finalized {
			fmt.Printf("samples: %d\n", info.Samples)
			fmt.Printf("peak: %d\n", info.Peak)
		}

		return nil
	},
}
