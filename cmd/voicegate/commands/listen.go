package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/audio/wavfile"
	"github.com/haivivi/voicegate/pkg/cli"
	"github.com/haivivi/voicegate/pkg/isolation"
	"github.com/haivivi/voicegate/pkg/session"
)

var listenFlags struct {
	verify   bool
	out      string
	file     string
	duration time.Duration
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the live pipeline and show an activity meter",
	Long: `Capture from the microphone (or a WAV file played in real time), run the
isolation pipeline and print one meter line per tick.

With --out the processed 16 kHz mono audio is saved; a .wav suffix writes
a WAV file, anything else raw little-endian int16.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	f := listenCmd.Flags()
	f.BoolVar(&listenFlags.verify, "verify", false, "verify speakers against enrolled profiles")
	f.StringVar(&listenFlags.out, "out", "", "save processed audio to this file")
	f.StringVarP(&listenFlags.file, "file", "f", "", "read a WAV file instead of the microphone")
	f.DurationVarP(&listenFlags.duration, "duration", "d", 0, "stop after this long (default: until interrupted)")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if listenFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listenFlags.duration)
		defer cancel()
	}

	p, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	pl, err := startPipeline(ctx, cfg, p, listenFlags.file, session.WithVerify(listenFlags.verify))
	if err != nil {
		return err
	}
	defer pl.Close()

	sink, closeSink, err := openSink(listenFlags.out)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var drainErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		drainErr = pl.drain(sink)
	}()

	meter := cli.NewMeter(cmd.OutOrStdout())
	runErr := pl.sess.Run(ctx, cfg.Verify.Tick, meter.Update)
	meter.Done()

	pl.Close()
	wg.Wait()
	if err := closeSink(); err != nil && drainErr == nil {
		drainErr = err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	if drainErr != nil {
		return fmt.Errorf("save audio: %w", drainErr)
	}
	if listenFlags.out != "" {
		cli.PrintSuccess(cmd.ErrOrStderr(), "saved processed audio to %s", listenFlags.out)
	}
	return nil
}

// openSink opens the --out destination.
func openSink(path string) (io.Writer, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return f, f.Close, nil
	}
	w := &wavSink{w: wavfile.NewWriter(f, isolation.Format)}
	return w, func() error {
		if err := w.w.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// wavSink turns the L16 bytes from pcm.Copy back into samples for the
// WAV writer.
type wavSink struct {
	w   *wavfile.Writer
	buf []float32
}

func (s *wavSink) Write(p []byte) (int, error) {
	s.buf = pcm.DecodeL16(s.buf[:0], p)
	if err := s.w.Write(s.buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
