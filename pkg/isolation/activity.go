package isolation

import (
	"math"

	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Voice band edges in Hz.
const (
	voiceLow  = 85
	voiceHigh = 3400
)

// DetectThreshold is the confidence at which voice counts as detected.
const DetectThreshold = 0.3

// VoiceActivity is a snapshot judgment of the current analyser window.
type VoiceActivity struct {
	Detected         bool    `json:"detected"`
	Confidence       float64 `json:"confidence"`
	NoiseLevel       float64 `json:"noiseLevel"`
	SpeechRatio      float64 `json:"speechRatio"`
	ZeroCrossingRate float64 `json:"zeroCrossingRate"`
	SpectralCentroid float64 `json:"spectralCentroid"` // Hz
}

// DetectVoiceActivity scores the current window. It returns the zero value
// when no graph is live.
//
// Three cues contribute to the confidence: more than 30% of the power in
// the voice band (0.4), a zero-crossing rate in (0.05, 0.15) (0.3) and a
// spectral centroid in (1000, 4000) Hz (0.3).
func (p *Processor) DetectVoiceActivity() VoiceActivity {
	g := p.live()
	if g == nil {
		return VoiceActivity{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.db = g.an.FrequencyDB(g.db)
	g.td = g.an.TimeDomain(g.td)

	floor := g.an.Config().MinDecibels
	var voice, total, weighted float64
	for k, db := range g.db {
		pw := binPower(float64(db), floor)
		if pw == 0 {
			continue
		}
		f := g.an.BinFrequency(k)
		total += pw
		weighted += pw * f
		if f >= voiceLow && f <= voiceHigh {
			voice += pw
		}
	}

	a := VoiceActivity{
		SpeechRatio:      voice / math.Max(total, 1e-10),
		ZeroCrossingRate: zeroCrossingRate(g.td),
		NoiseLevel:       total - voice,
	}
	if total > 0 {
		a.SpectralCentroid = weighted / total
	}
	if a.SpeechRatio > 0.3 {
		a.Confidence += 0.4
	}
	if a.ZeroCrossingRate > 0.05 && a.ZeroCrossingRate < 0.15 {
		a.Confidence += 0.3
	}
	if a.SpectralCentroid > 1000 && a.SpectralCentroid < 4000 {
		a.Confidence += 0.3
	}
	a.Detected = a.Confidence >= DetectThreshold
	return a
}

// binPower converts a bin level to linear power. Levels at or below the
// floor are silence.
func binPower(db, floor float64) float64 {
	if db <= floor || math.IsNaN(db) {
		return 0
	}
	return math.Pow(10, db/10)
}

// zeroCrossingRate is the fraction of adjacent sample pairs whose signs
// differ, with zero counted as positive.
func zeroCrossingRate(x []float32) float64 {
	if len(x) < 2 {
		return 0
	}
	n := 0
	for i := 1; i < len(x); i++ {
		if (x[i] >= 0) != (x[i-1] >= 0) {
			n++
		}
	}
	return float64(n) / float64(len(x)-1)
}

// ExtractVoiceFeatures computes the voice print of the current window.
func (p *Processor) ExtractVoiceFeatures() ([]float64, error) {
	g := p.live()
	if g == nil {
		return nil, ErrNotReady
	}
	g.mu.Lock()
	g.db = g.an.FrequencyDB(g.db)
	spec := voiceprint.Spectrum{
		DB:         append([]float32(nil), g.db...),
		SampleRate: g.an.Config().SampleRate,
		FFTSize:    g.an.Config().FFTSize,
	}
	g.mu.Unlock()
	return p.extractor.Extract(spec)
}
