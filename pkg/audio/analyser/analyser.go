// Package analyser keeps a sliding window over a live signal and exposes
// its time-domain samples and a smoothed log-magnitude spectrum.
//
// The semantics follow the Web Audio AnalyserNode: a Blackman window is
// applied to the most recent FFTSize samples, magnitudes are normalized by
// FFTSize, smoothed over time with
//
//	X̂[k] = τ·X̂prev[k] + (1−τ)·|X[k]|
//
// and reported in decibels as 20·log10(X̂[k]). The spectrum is recomputed
// at most once per written block: reading it again before new audio arrives
// returns the same values.
package analyser

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls the analysis window.
type Config struct {
	SampleRate  int     // sample rate of the analysed signal in Hz (default 16000)
	FFTSize     int     // window length, power of two in [32, 32768] (default 2048)
	Smoothing   float64 // time smoothing constant in [0, 1) (default 0.3)
	MinDecibels float64 // level treated as silence by consumers (default -100)
}

// DefaultConfig returns the 16 kHz, 2048-sample, 0.3 smoothing window.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FFTSize:     2048,
		Smoothing:   0.3,
		MinDecibels: -100,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("analyser: invalid sample rate %d", c.SampleRate)
	}
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("analyser: fft size %d is not a power of two in [32, 32768]", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("analyser: smoothing %.3f outside [0, 1)", c.Smoothing)
	}
	return nil
}

// Analyser is safe for concurrent use: one goroutine writes audio while
// others read the window.
type Analyser struct {
	cfg    Config
	fft    *fourier.FFT
	window []float64

	mu       sync.Mutex
	ring     []float32
	pos      int
	written  uint64
	computed uint64
	smoothed []float64
	db       []float32
	frame    []float64
	coeffs   []complex128
}

// New creates an Analyser.
func New(cfg Config) (*Analyser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := cfg.FFTSize
	a := &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(n),
		window:   blackman(n),
		ring:     make([]float32, n),
		smoothed: make([]float64, n/2),
		db:       make([]float32, n/2),
		frame:    make([]float64, n),
	}
	for i := range a.db {
		a.db[i] = float32(math.Inf(-1))
	}
	return a, nil
}

// blackman returns the Blackman window used by Web Audio analysers.
func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// Config returns the analyser configuration.
func (a *Analyser) Config() Config {
	return a.cfg
}

// BinCount returns the number of frequency bins (FFTSize/2).
func (a *Analyser) BinCount() int {
	return a.cfg.FFTSize / 2
}

// BinFrequency returns the centre frequency of bin i in Hz.
func (a *Analyser) BinFrequency(i int) float64 {
	return float64(i) * float64(a.cfg.SampleRate) / float64(a.cfg.FFTSize)
}

// Write appends samples to the window.
func (a *Analyser) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.ring)
	if len(samples) >= n {
		copy(a.ring, samples[len(samples)-n:])
		a.pos = 0
	} else {
		c := copy(a.ring[a.pos:], samples)
		copy(a.ring, samples[c:])
		a.pos = (a.pos + len(samples)) % n
	}
	a.written++
}

// TimeDomain copies the current window, oldest sample first, into dst and
// returns it. dst is grown when shorter than FFTSize.
func (a *Analyser) TimeDomain(dst []float32) []float32 {
	if cap(dst) < len(a.ring) {
		dst = make([]float32, len(a.ring))
	}
	dst = dst[:len(a.ring)]
	a.mu.Lock()
	defer a.mu.Unlock()
	c := copy(dst, a.ring[a.pos:])
	copy(dst[c:], a.ring[:a.pos])
	return dst
}

// FrequencyDB copies the smoothed spectrum in decibels into dst and returns
// it. Bins with zero magnitude are -Inf.
func (a *Analyser) FrequencyDB(dst []float32) []float32 {
	if cap(dst) < len(a.db) {
		dst = make([]float32, len(a.db))
	}
	dst = dst[:len(a.db)]
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.computed != a.written {
		a.computeLocked()
		a.computed = a.written
	}
	copy(dst, a.db)
	return dst
}

func (a *Analyser) computeLocked() {
	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.frame[i] = float64(a.ring[(a.pos+i)%n]) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	tau := a.cfg.Smoothing
	scale := 1 / float64(n)
	for k := range a.smoothed {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) * scale
		prev := a.smoothed[k]
		if math.IsNaN(prev) || math.IsInf(prev, 0) {
			prev = 0
		}
		s := tau*prev + (1-tau)*mag
		a.smoothed[k] = s
		if s == 0 {
			a.db[k] = float32(math.Inf(-1))
		} else {
			a.db[k] = float32(20 * math.Log10(s))
		}
	}
}

// Reset clears the window and the smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	for i := range a.db {
		a.db[i] = float32(math.Inf(-1))
	}
	a.pos = 0
	a.written = 0
	a.computed = 0
}
