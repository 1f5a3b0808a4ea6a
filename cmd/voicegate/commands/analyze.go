package commands

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/audio/resampler"
	"github.com/haivivi/voicegate/pkg/audio/wavfile"
	"github.com/haivivi/voicegate/pkg/audio/webrtcvad"
	"github.com/haivivi/voicegate/pkg/cli"
	"github.com/haivivi/voicegate/pkg/isolation"
)

var analyzeFlags struct {
	window time.Duration
	webrtc bool
	mode   int
	verify bool
	output string
	query  string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.wav>",
	Short: "Per-window activity report for a WAV file",
	Long: `Run a WAV file through the pipeline as fast as possible and report voice
activity for each window. The gate is stepped once per window.

With --webrtc a second opinion from the WebRTC VAD is added as the
fraction of 20 ms frames it classifies as speech.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.DurationVarP(&analyzeFlags.window, "window", "w", 100*time.Millisecond, "analysis window (multiple of 20ms)")
	f.BoolVar(&analyzeFlags.webrtc, "webrtc", false, "add a WebRTC VAD column")
	f.IntVar(&analyzeFlags.mode, "webrtc-mode", 2, "WebRTC VAD aggressiveness (0-3)")
	f.BoolVar(&analyzeFlags.verify, "verify", false, "match each voiced window against enrolled profiles")
	f.StringVarP(&analyzeFlags.output, "output", "o", "table", "output format (table, yaml, json)")
	f.StringVarP(&analyzeFlags.query, "query", "q", "", "jq expression applied to the report")
	rootCmd.AddCommand(analyzeCmd)
}

// WindowReport is one row of an analysis.
type WindowReport struct {
	Start      time.Duration           `json:"start"`
	LevelDB    float64                 `json:"levelDB"`
	Activity   isolation.VoiceActivity `json:"activity"`
	GateGain   float32                 `json:"gateGain"`
	WebRTC     *float64                `json:"webrtc,omitempty"`
	Speaker    string                  `json:"speaker,omitempty"`
	Similarity float64                 `json:"similarity,omitempty"`
}

// Report is a full analysis.
type Report []WindowReport

func (r Report) Header() []string {
	h := []string{"START", "LEVEL", "VOICE", "CONF", "SPEECH", "ZCR", "CENTROID", "GATE"}
	if len(r) > 0 && r[0].WebRTC != nil {
		h = append(h, "WEBRTC")
	}
	return append(h, "SPEAKER")
}

func (r Report) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, w := range r {
		voice := "-"
		if w.Activity.Detected {
			voice = "yes"
		}
		row := []string{
			cli.FormatDuration(w.Start),
			cli.FormatDB(w.LevelDB),
			voice,
			fmt.Sprintf("%.2f", w.Activity.Confidence),
			cli.FormatPercent(w.Activity.SpeechRatio),
			fmt.Sprintf("%.3f", w.Activity.ZeroCrossingRate),
			fmt.Sprintf("%.0f", w.Activity.SpectralCentroid),
			fmt.Sprintf("%.2f", w.GateGain),
		}
		if w.WebRTC != nil {
			row = append(row, cli.FormatPercent(*w.WebRTC))
		}
		who := ""
		if w.Speaker != "" {
			who = fmt.Sprintf("%s (%.2f)", w.Speaker, w.Similarity)
		}
		rows = append(rows, append(row, who))
	}
	return rows
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(analyzeFlags.output)
	if err != nil {
		return err
	}
	frame := isolation.Format.SamplesInDuration(20 * time.Millisecond)
	window := isolation.Format.SamplesInDuration(analyzeFlags.window)
	if window < frame || window%frame != 0 {
		return fmt.Errorf("window %s is not a positive multiple of 20ms", analyzeFlags.window)
	}
	ctx := cmd.Context()

	samples, err := loadMono16k(args[0])
	if err != nil {
		return err
	}

	p, err := openProfiles(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var vad *webrtcvad.Detector
	if analyzeFlags.webrtc {
		if vad, err = webrtcvad.New(analyzeFlags.mode); err != nil {
			return err
		}
	}

	report, err := analyze(ctx, processorOptions(cfg, p), samples, window, vad, analyzeFlags.verify)
	if err != nil {
		return err
	}
	return cli.Output(report, cli.OutputOptions{
		Format: format,
		Query:  analyzeFlags.query,
		Writer: cmd.OutOrStdout(),
	})
}

// loadMono16k decodes a WAV file and converts it to the pipeline format.
func loadMono16k(path string) ([]float32, error) {
	st, err := wavfile.Open(path)
	if err != nil {
		return nil, err
	}
	rs, err := resampler.NewStream(st, isolation.SampleRate)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var all []float32
	buf := make([]float32, 4096)
	for {
		n, err := rs.Read(buf)
		all = append(all, buf[:n]...)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// analyze steps a processor window by window. The gate runs on a manual
// scheduler so each window sees exactly one gate update.
func analyze(ctx context.Context, opts []isolation.Option, samples []float32, window int, vad *webrtcvad.Detector, verify bool) (Report, error) {
	sched := &isolation.Manual{}
	proc, err := isolation.New(append(opts, isolation.WithScheduler(sched))...)
	if err != nil {
		return nil, err
	}
	in := pcm.NewQueue(isolation.Format, 2*window)
	out := proc.Initialize(ctx, in)
	if out == in {
		return nil, fmt.Errorf("pipeline failed to start")
	}
	defer proc.Cleanup()

	var report Report
	buf := make([]float32, window)
	level := make([]float64, window)
	for start := 0; start+window <= len(samples); start += window {
		chunk := samples[start : start+window]
		if err := in.Push(chunk); err != nil {
			return nil, err
		}
		if err := readFull(out, buf); err != nil {
			return nil, err
		}
		sched.Tick()

		for i, s := range chunk {
			level[i] = float64(s)
		}
		gate, _ := proc.Gains()
		w := WindowReport{
			Start:    isolation.Format.Duration(start),
			LevelDB:  isolation.RMSDecibels(level),
			Activity: proc.DetectVoiceActivity(),
			GateGain: gate,
		}
		if vad != nil {
			r, err := vad.Ratio(chunk)
			if err != nil {
				return nil, err
			}
			w.WebRTC = &r
		}
		if verify && w.Activity.Detected {
			if features, err := proc.ExtractVoiceFeatures(); err == nil {
				if best, sim, err := proc.Store().Match(features); err == nil && best != nil {
					w.Speaker, w.Similarity = best.ID, math.Round(sim*1000)/1000
				}
			}
		}
		report = append(report, w)
	}
	return report, nil
}

func readFull(s pcm.Stream, buf []float32) error {
	for got := 0; got < len(buf); {
		n, err := s.Read(buf[got:])
		got += n
		if err != nil {
			return err
		}
	}
	return nil
}
