package analyser

import (
	"math"
	"testing"
)

func tone(n int, freq, amp float64, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestNewValidation(t *testing.T) {
	bad := []Config{
		{SampleRate: 0, FFTSize: 2048},
		{SampleRate: 16000, FFTSize: 1000},
		{SampleRate: 16000, FFTSize: 16},
		{SampleRate: 16000, FFTSize: 2048, Smoothing: 1},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) should fail", cfg)
		}
	}
	if _, err := New(DefaultConfig()); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestTimeDomainOrder(t *testing.T) {
	a, _ := New(Config{SampleRate: 16000, FFTSize: 32})
	in := make([]float32, 40)
	for i := range in {
		in[i] = float32(i)
	}
	a.Write(in[:10])
	a.Write(in[10:40])

	td := a.TimeDomain(nil)
	if len(td) != 32 {
		t.Fatalf("len = %d, want 32", len(td))
	}
	for i, v := range td {
		if v != float32(8+i) {
			t.Fatalf("td[%d] = %f, want %d", i, v, 8+i)
		}
	}
}

func TestSilenceIsNegativeInfinity(t *testing.T) {
	a, _ := New(DefaultConfig())
	a.Write(make([]float32, 2048))
	for i, v := range a.FrequencyDB(nil) {
		if !math.IsInf(float64(v), -1) {
			t.Fatalf("bin %d = %f, want -Inf", i, v)
		}
	}
}

func TestPeakAtToneBin(t *testing.T) {
	a, _ := New(DefaultConfig())
	// 1093.75 Hz is exactly bin 140 at 16 kHz / 2048.
	a.Write(tone(2048, 1093.75, 1, 16000))
	db := a.FrequencyDB(nil)

	peak := 0
	for i := range db {
		if db[i] > db[peak] {
			peak = i
		}
	}
	if peak != 140 {
		t.Errorf("peak bin = %d, want 140", peak)
	}
	if f := a.BinFrequency(peak); math.Abs(f-1093.75) > 1e-9 {
		t.Errorf("BinFrequency = %f", f)
	}
	// First frame: 0.7 * (0.42 * 0.5) after smoothing from zero.
	want := 20 * math.Log10(0.7*0.21)
	if math.Abs(float64(db[140])-want) > 0.2 {
		t.Errorf("peak level = %.2f dB, want %.2f dB", db[140], want)
	}
}

func TestSpectrumCachedUntilWrite(t *testing.T) {
	a, _ := New(DefaultConfig())
	block := tone(2048, 1093.75, 0.5, 16000)
	a.Write(block)
	first := a.FrequencyDB(nil)
	again := a.FrequencyDB(nil)
	for i := range first {
		if first[i] != again[i] {
			t.Fatalf("bin %d changed without new audio: %f -> %f", i, first[i], again[i])
		}
	}

	a.Write(block)
	next := a.FrequencyDB(nil)
	if next[140] <= first[140] {
		t.Errorf("smoothing should approach the steady level: %f -> %f", first[140], next[140])
	}
}

func TestReset(t *testing.T) {
	a, _ := New(DefaultConfig())
	a.Write(tone(2048, 500, 1, 16000))
	a.FrequencyDB(nil)
	a.Reset()
	for _, v := range a.TimeDomain(nil) {
		if v != 0 {
			t.Fatal("time domain not cleared")
		}
	}
	if v := a.FrequencyDB(nil)[32]; !math.IsInf(float64(v), -1) {
		t.Errorf("spectrum after reset = %f, want -Inf", v)
	}
}
