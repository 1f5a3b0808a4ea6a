package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/cli"
	"github.com/haivivi/voicegate/pkg/session"
)

var enrollFlags struct {
	file    string
	timeout time.Duration
	settle  int
	output  string
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <id> <name>",
	Short: "Enroll a speaker",
	Long: `Listen until speech has been detected for --settle consecutive ticks, then
store the current voice print under <id>. An existing profile with the
same id is replaced.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	f := enrollCmd.Flags()
	f.StringVarP(&enrollFlags.file, "file", "f", "", "enroll from a WAV file instead of the microphone")
	f.DurationVar(&enrollFlags.timeout, "timeout", 10*time.Second, "give up when no speech is heard within this time")
	f.IntVar(&enrollFlags.settle, "settle", 5, "consecutive ticks with voice before enrolling")
	f.StringVarP(&enrollFlags.output, "output", "o", "yaml", "output format (yaml, json)")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(enrollFlags.output)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	p, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	pl, err := startPipeline(ctx, cfg, p, enrollFlags.file)
	if err != nil {
		return err
	}
	defer pl.Close()
	go pl.drain(nil)

	if enrollFlags.file == "" {
		cli.PrintSuccess(cmd.ErrOrStderr(), "listening, please speak")
	}
	id, name := args[0], args[1]
	return pl.untilSpeech(ctx, cfg.Verify.Tick, enrollFlags.settle, enrollFlags.timeout, func(session.Event) error {
		prof, err := pl.proc.CreateVoiceProfile(ctx, id, name)
		if err != nil {
			return err
		}
		log.Info("speaker enrolled", "id", prof.ID, "name", prof.Name, "profiles", p.Len())
		return cli.Output(prof, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	})
}
