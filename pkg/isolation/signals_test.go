package isolation

import (
	"math"
	"testing"
	"time"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// Test signals are built from bin-centred partials (multiples of
// 16000/2048 = 7.8125 Hz) so that every 2048-sample block holds a whole
// number of cycles and repeated blocks join without a seam.
const (
	window  = 2048
	binStep = float64(SampleRate) / window
)

// partial is one sinusoid: bin index k and amplitude.
type partial struct {
	k   int
	amp float64
}

// block renders one window of the given partials.
func block(parts ...partial) []float32 {
	out := make([]float32, window)
	for i := range out {
		var v float64
		for j, p := range parts {
			phase := float64(j) * 0.7
			v += p.amp * math.Sin(2*math.Pi*float64(p.k)*float64(i)/window+phase)
		}
		out[i] = float32(v)
	}
	return out
}

// tone renders a pure sinusoid at bin k.
func tone(k int, amp float64) []float32 {
	return block(partial{k, amp})
}

// harmonic renders a voiced-like signal: fundamental at bin k0 and five
// overtones with 1/h amplitude.
func harmonic(k0 int, amp float64) []float32 {
	parts := make([]partial, 6)
	for h := range parts {
		parts[h] = partial{k0 * (h + 1), amp / float64(h+1)}
	}
	return block(parts...)
}

func silence(n int) []float32 {
	return make([]float32, n)
}

// rig is a processor fed through a queue and stepped by hand.
type rig struct {
	p     *Processor
	sched *Manual
	in    *pcm.Queue
	out   pcm.Stream
}

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	sched := &Manual{}
	p, err := New(append([]Option{WithScheduler(sched)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := pcm.NewQueue(pcm.L16Mono16K, 8*window)
	out := p.Initialize(t.Context(), in)
	if out == pcm.Stream(in) {
		t.Fatal("Initialize fell back to the input stream")
	}
	t.Cleanup(p.Cleanup)
	return &rig{p: p, sched: sched, in: in, out: out}
}

// feed pushes samples through the graph and waits until they come out.
func (r *rig) feed(t *testing.T, samples []float32) []float32 {
	t.Helper()
	if err := r.in.Push(samples); err != nil {
		t.Fatalf("Push: %v", err)
	}
	return readN(t, r.out, len(samples))
}

// settle feeds b n times, reading the spectrum after each pass so the
// analyser's time smoothing converges on b.
func (r *rig) settle(t *testing.T, b []float32, n int) VoiceActivity {
	t.Helper()
	var a VoiceActivity
	for range n {
		r.feed(t, b)
		a = r.p.DetectVoiceActivity()
	}
	return a
}

func readN(t *testing.T, s pcm.Stream, n int) []float32 {
	t.Helper()
	out := make([]float32, 0, n)
	done := make(chan error, 1)
	go func() {
		buf := make([]float32, n)
		for len(out) < n {
			k, err := s.Read(buf[:n-len(out)])
			out = append(out, buf[:k]...)
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("read %d samples: %v", n, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out reading %d samples", n)
	}
	return out
}
