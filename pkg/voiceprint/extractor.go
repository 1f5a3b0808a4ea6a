package voiceprint

import (
	"fmt"
	"math"

	"github.com/haivivi/voicegate/pkg/audio/fbank"
)

// Spectrum is one analyser frame: FFTSize/2 bins of smoothed magnitude in
// dB. Bin k is centred on k·SampleRate/FFTSize Hz.
type Spectrum struct {
	DB         []float32
	SampleRate int
	FFTSize    int
}

// BinFrequency returns the centre frequency of bin k in Hz.
func (s Spectrum) BinFrequency(k int) float64 {
	return float64(k) * float64(s.SampleRate) / float64(s.FFTSize)
}

// Extractor turns a spectrum into a voice print.
//
// Implementations must be deterministic for a given spectrum and safe for
// concurrent use. Every vector has length Dimension(); stored profiles of a
// different length are treated as incompatible.
type Extractor interface {
	Extract(s Spectrum) ([]float64, error)
	Dimension() int
}

// ExtractorConfig configures the spectral extractor.
type ExtractorConfig struct {
	Bank   fbank.Config
	F0Low  float64 // lower edge of the pitch search band in Hz (default 85)
	F0High float64 // upper edge of the pitch search band in Hz (default 400)
}

// DefaultExtractorConfig returns 13 Gaussian-bank cepstral coefficients and
// a pitch search in 85-400 Hz.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Bank:   fbank.DefaultConfig(),
		F0Low:  85,
		F0High: 400,
	}
}

// pitchFeatures is the number of values appended after the cepstrum:
// f0, its magnitude, 2·f0 and 3·f0.
const pitchFeatures = 4

// SpectralExtractor is a lightweight voice print: the cepstrum of a
// mel-spaced filter bank plus the strongest peak in the pitch band and its
// first harmonics. It is coarse, adequate for telling a handful of enrolled
// speakers apart.
type SpectralExtractor struct {
	cfg  ExtractorConfig
	bank *fbank.Bank
}

// NewSpectralExtractor creates a SpectralExtractor.
func NewSpectralExtractor(cfg ExtractorConfig) (*SpectralExtractor, error) {
	if cfg.F0Low <= 0 || cfg.F0High <= cfg.F0Low {
		return nil, fmt.Errorf("voiceprint: invalid pitch band %.1f-%.1f Hz", cfg.F0Low, cfg.F0High)
	}
	bank, err := fbank.New(cfg.Bank)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	return &SpectralExtractor{cfg: cfg, bank: bank}, nil
}

// Dimension returns NumCoeffs + 4.
func (e *SpectralExtractor) Dimension() int {
	return e.cfg.Bank.NumCoeffs + pitchFeatures
}

// Extract computes [c0..c12, f0, |f0|, 2·f0, 3·f0] for the default layout.
func (e *SpectralExtractor) Extract(s Spectrum) ([]float64, error) {
	bc := e.bank.Config()
	if s.SampleRate != bc.SampleRate || s.FFTSize != bc.FFTSize {
		return nil, fmt.Errorf("voiceprint: spectrum %d Hz/%d does not match extractor %d Hz/%d",
			s.SampleRate, s.FFTSize, bc.SampleRate, bc.FFTSize)
	}
	if len(s.DB) != s.FFTSize/2 {
		return nil, fmt.Errorf("voiceprint: spectrum has %d bins, want %d", len(s.DB), s.FFTSize/2)
	}

	out := make([]float64, 0, e.Dimension())
	out = append(out, e.bank.Cepstrum(s.DB)...)

	f0, mag := e.pitch(s)
	out = append(out, f0, mag, 2*f0, 3*f0)
	return out, nil
}

// pitch returns the frequency and linear magnitude of the strongest bin in
// the pitch band. Ties keep the lowest bin; a silent band reports its first
// bin with magnitude 0.
func (e *SpectralExtractor) pitch(s Spectrum) (float64, float64) {
	peak := -1
	best := math.Inf(-1)
	for k := range s.DB {
		f := s.BinFrequency(k)
		if f < e.cfg.F0Low || f > e.cfg.F0High || math.IsNaN(float64(s.DB[k])) {
			continue
		}
		if peak < 0 {
			peak = k
			best = float64(s.DB[k])
			continue
		}
		if v := float64(s.DB[k]); v > best {
			peak, best = k, v
		}
	}
	if peak < 0 {
		return 0, 0
	}
	return s.BinFrequency(peak), math.Pow(10, best/20)
}
