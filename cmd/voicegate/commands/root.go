package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/cmd/voicegate/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Global configuration, loaded before any command runs.
	globalConfig *config.Config
	log          = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "voicegate",
	Short: "Voice isolation and speaker verification",
	Long: `voicegate - gate, analyse and verify speech from a microphone or WAV file.

Capture is resampled to 16 kHz mono, high-passed at 85 Hz and gated on
its level. Every tick reports voice activity, and enrolled speakers are
matched by spectral voice print.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/voicegate/config.yaml
  Linux:   ~/.config/voicegate/config.yaml

Every setting can be overridden with a VOICEGATE_ environment variable,
for example VOICEGATE_GATE_THRESHOLD_DB=-45.

Examples:
  # Watch the live meter and verify speakers
  voicegate listen --verify

  # Enroll from a recording, then list profiles
  voicegate enroll alice "Alice" --file alice.wav
  voicegate profiles list -o table

  # Per-window report with a WebRTC VAD column
  voicegate analyze meeting.wav --webrtc`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		cfg, err := config.Load(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		globalConfig = cfg
		log = cfg.NewLogger(verbose)
		slog.SetDefault(log)
		if cfg.Path != "" {
			log.Debug("config loaded", "path", cfg.Path)
		}
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir/voicegate/config.yaml)")
}

// GetConfig returns the loaded configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return globalConfig, nil
}
