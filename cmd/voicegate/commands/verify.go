package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/cli"
	"github.com/haivivi/voicegate/pkg/session"
)

var verifyFlags struct {
	file    string
	timeout time.Duration
	settle  int
	output  string
	strict  bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the current speaker against enrolled profiles",
	Long: `Listen until speech has been detected for --settle consecutive ticks, then
match the current voice print against every enrolled profile and print
the result. With --strict an unverified speaker is an error.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVarP(&verifyFlags.file, "file", "f", "", "verify a WAV file instead of the microphone")
	f.DurationVar(&verifyFlags.timeout, "timeout", 10*time.Second, "give up when no speech is heard within this time")
	f.IntVar(&verifyFlags.settle, "settle", 5, "consecutive ticks with voice before verifying")
	f.StringVarP(&verifyFlags.output, "output", "o", "yaml", "output format (yaml, json)")
	f.BoolVar(&verifyFlags.strict, "strict", false, "exit non-zero when the speaker is not verified")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(verifyFlags.output)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	p, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	if p.Len() == 0 {
		log.Warn("no profiles enrolled; verification will fail")
	}

	pl, err := startPipeline(ctx, cfg, p, verifyFlags.file)
	if err != nil {
		return err
	}
	defer pl.Close()
	go pl.drain(nil)

	return pl.untilSpeech(ctx, cfg.Verify.Tick, verifyFlags.settle, verifyFlags.timeout, func(session.Event) error {
		v := pl.proc.VerifySpeaker(ctx)
		if err := cli.Output(v, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()}); err != nil {
			return err
		}
		if verifyFlags.strict && !v.Verified {
			return errors.New("speaker not verified")
		}
		return nil
	})
}
