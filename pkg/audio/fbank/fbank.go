// Package fbank projects a log-magnitude spectrum onto a mel-spaced filter
// bank and computes cepstral coefficients from it.
//
// The input is one analyser frame: FFTSize/2 bins of magnitude in dB. Each
// filter takes a weighted mean of the bins it covers (the spectrum is
// already logarithmic), and a DCT-II of the filter energies yields the
// MFCC-like cepstrum used for voice prints.
//
// Default parameters:
//
//	SampleRate:  16000
//	FFTSize:      2048
//	NumFilters:     26
//	NumCoeffs:      13
//	LowFreq:         0
//	HighFreq:     8000
//	FloorDB:      -100
//	Shape:    Gaussian
package fbank

import (
	"fmt"
	"math"
)

// Shape selects the filter response.
type Shape int

const (
	// Gaussian filters centred on mel-spaced frequencies.
	Gaussian Shape = iota
	// Triangular filters spanning neighbouring mel points (HTK style).
	Triangular
)

func (s Shape) String() string {
	switch s {
	case Gaussian:
		return "gaussian"
	case Triangular:
		return "triangular"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Config controls the filter bank layout.
type Config struct {
	SampleRate int     // sample rate of the analysed signal in Hz (default 16000)
	FFTSize    int     // analyser window; the spectrum has FFTSize/2 bins (default 2048)
	NumFilters int     // number of mel filters (default 26)
	NumCoeffs  int     // number of cepstral coefficients kept (default 13)
	LowFreq    float64 // lowest filter edge in Hz (default 0)
	HighFreq   float64 // highest filter edge in Hz (default SampleRate/2)
	FloorDB    float64 // bins below this level are clamped to it (default -100)
	Shape      Shape
}

// DefaultConfig returns the 26-filter, 13-coefficient Gaussian layout.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FFTSize:    2048,
		NumFilters: 26,
		NumCoeffs:  13,
		LowFreq:    0,
		HighFreq:   8000,
		FloorDB:    -100,
		Shape:      Gaussian,
	}
}

// Bank holds precomputed, normalized filter weights.
type Bank struct {
	cfg     Config
	filters []filter
}

// filter is a normalized weight vector over bins [start, start+len(w)).
type filter struct {
	start int
	w     []float64
}

// New creates a Bank for the given config.
func New(cfg Config) (*Bank, error) {
	if cfg.SampleRate <= 0 || cfg.FFTSize < 2 {
		return nil, fmt.Errorf("fbank: invalid rate %d or fft size %d", cfg.SampleRate, cfg.FFTSize)
	}
	if cfg.NumFilters <= 0 || cfg.NumCoeffs <= 0 || cfg.NumCoeffs > cfg.NumFilters {
		return nil, fmt.Errorf("fbank: need 0 < coeffs (%d) <= filters (%d)", cfg.NumCoeffs, cfg.NumFilters)
	}
	if cfg.HighFreq <= 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	if cfg.LowFreq < 0 || cfg.LowFreq >= cfg.HighFreq {
		return nil, fmt.Errorf("fbank: invalid band %.1f-%.1f Hz", cfg.LowFreq, cfg.HighFreq)
	}

	var weights [][]float64
	switch cfg.Shape {
	case Gaussian:
		weights = gaussianFilterBank(cfg.NumFilters, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq)
	case Triangular:
		weights = melFilterBank(cfg.NumFilters, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq)
	default:
		return nil, fmt.Errorf("fbank: unknown shape %v", cfg.Shape)
	}

	b := &Bank{cfg: cfg, filters: make([]filter, len(weights))}
	for i, w := range weights {
		b.filters[i] = compact(w)
	}
	return b, nil
}

// compact trims near-zero tails and normalizes the weights to sum to one.
func compact(w []float64) filter {
	const eps = 1e-6
	start, end := 0, len(w)
	for start < end && w[start] < eps {
		start++
	}
	for end > start && w[end-1] < eps {
		end--
	}
	out := make([]float64, end-start)
	sum := 0.0
	for i := range out {
		out[i] = w[start+i]
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return filter{start: start, w: out}
}

// Config returns the effective configuration.
func (b *Bank) Config() Config {
	return b.cfg
}

// Energies returns the per-filter weighted mean of the spectrum in dB.
// Bins below FloorDB (including -Inf) count as FloorDB.
func (b *Bank) Energies(spectrumDB []float32) []float64 {
	out := make([]float64, len(b.filters))
	for m, f := range b.filters {
		sum := 0.0
		for i, w := range f.w {
			k := f.start + i
			v := b.cfg.FloorDB
			if k < len(spectrumDB) {
				if d := float64(spectrumDB[k]); d > v {
					v = d
				}
			}
			sum += w * v
		}
		out[m] = sum
	}
	return out
}

// Cepstrum returns the first NumCoeffs DCT-II coefficients of the filter
// energies.
func (b *Bank) Cepstrum(spectrumDB []float32) []float64 {
	return DCT(b.Energies(spectrumDB), b.cfg.NumCoeffs)
}

// DCT computes the first n coefficients of the unnormalized DCT-II of x.
func DCT(x []float64, n int) []float64 {
	if n > len(x) {
		n = len(x)
	}
	out := make([]float64, n)
	size := float64(len(x))
	for k := 0; k < n; k++ {
		sum := 0.0
		for j, v := range x {
			sum += v * math.Cos(math.Pi*float64(k)*(float64(j)+0.5)/size)
		}
		out[k] = sum
	}
	return out
}
