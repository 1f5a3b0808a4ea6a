package webrtcvad

import (
	"errors"
	"testing"
)

func TestNewClampsMode(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{-1, 0}, {2, 2}, {9, 3}} {
		d, err := New(tc.in)
		if err != nil {
			t.Fatalf("New(%d): %v", tc.in, err)
		}
		if d.Mode() != tc.want {
			t.Errorf("New(%d).Mode() = %d, want %d", tc.in, d.Mode(), tc.want)
		}
	}
}

func TestCheckFrameLength(t *testing.T) {
	d, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Check(make([]float32, 100)); !errors.Is(err, ErrFrameLength) {
		t.Errorf("Check(100 samples) err = %v, want ErrFrameLength", err)
	}
	for _, n := range []int{160, 320, 480} {
		if _, err := d.Check(make([]float32, n)); err != nil {
			t.Errorf("Check(%d samples): %v", n, err)
		}
	}
}

func TestSilenceIsNotSpeech(t *testing.T) {
	d, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	r, err := d.Ratio(make([]float32, 16000))
	if err != nil {
		t.Fatal(err)
	}
	if r != 0 {
		t.Errorf("Ratio(silence) = %v, want 0", r)
	}
	if r, _ := d.Ratio(make([]float32, FrameSize-1)); r != 0 {
		t.Errorf("Ratio(short) = %v, want 0", r)
	}
}
