package isolation

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// GateConfig sets the noise gate threshold.
type GateConfig struct {
	ThresholdDB float64 // windows quieter than this close the gate (default -50)
	ClosedGain  float32 // gain applied while closed (default 0.1)
}

// DefaultGateConfig returns a -50 dB threshold with 0.1 closed gain.
func DefaultGateConfig() GateConfig {
	return GateConfig{ThresholdDB: -50, ClosedGain: 0.1}
}

// Gain returns the gate gain for a window measured at db.
func (c GateConfig) Gain(db float64) float32 {
	if db < c.ThresholdDB {
		return c.ClosedGain
	}
	return 1
}

// RMSDecibels returns 20·log10 of the root mean square of samples.
// Silence and empty windows return -Inf.
func RMSDecibels(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	rms := floats.Norm(samples, 2) / math.Sqrt(float64(len(samples)))
	return 20 * math.Log10(rms)
}

// gateTick is one gate iteration: measure the analyser window and set the
// gate gain.
func (p *Processor) gateTick(g *graph) {
	g.mu.Lock()
	g.td = g.an.TimeDomain(g.td)
	if cap(g.td64) < len(g.td) {
		g.td64 = make([]float64, len(g.td))
	}
	g.td64 = g.td64[:len(g.td)]
	for i, v := range g.td {
		g.td64[i] = float64(v)
	}
	db := RMSDecibels(g.td64)
	g.mu.Unlock()

	gain := p.gate.Gain(db)
	if prev := g.gateGain.Swap(gain); prev != gain {
		p.log.Debug("noise gate", "open", gain == 1, "level_db", db)
	}
}
