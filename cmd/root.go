package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/audiolibrelab/wavcapture/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "wavcapture [name]",
	Short: "Record microphone input to WAV files",
	Long: `WavCapture records audio from a capture device into PCM WAV files.

A recording can be stopped with Ctrl+C or automatically after the configured
maximum duration, then optionally transcribed and played back.

When a name is provided, it acts as 'wavcapture run [name]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel, nil)

		// The default file is optional, an explicit one must exist
		configPath := cfgFile
		if configPath == "" {
			if _, err := os.Stat(config.DefaultPath()); err == nil {
				configPath = config.DefaultPath()
			}
		}

		var err error
		cfg, err = config.LoadWithProfile(configPath, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfgFile = configPath
		slog.Debug("Configuration loaded", "file", configPath, "profile", cfg.Profile)

		setupLogging(verboseLevel, &cfg.Logging)

		return validatePipeline()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return runCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wavcapture.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: r=record, t=transcribe, p=play (e.g., 'rtp', 'tp', 'rp')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=config level, 1=debug")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog from the verbose level and, once the
// configuration is loaded, from its logging section. A configured log file
// receives a copy of the terminal output and is rotated by lumberjack.
func setupLogging(level int, logging *config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	if logging != nil {
		slogLevel = parseLevel(logging.Level)
	}
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if logging != nil && logging.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logging.File,
			MaxSize:    logging.MaxSizeMB,
			MaxBackups: logging.MaxBackups,
			MaxAge:     logging.MaxAgeDays,
		})
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(out, opts)
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
