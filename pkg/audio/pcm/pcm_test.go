package pcm

import (
	"bytes"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"
)

func TestFormatDurations(t *testing.T) {
	if got := L16Mono16K.SamplesInDuration(20 * time.Millisecond); got != 320 {
		t.Errorf("SamplesInDuration(20ms) = %d, want 320", got)
	}
	if got := L16Stereo48K.BytesInDuration(10 * time.Millisecond); got != 1920 {
		t.Errorf("BytesInDuration(10ms) = %d, want 1920", got)
	}
	if got := L16Mono16K.Duration(16000); got != time.Second {
		t.Errorf("Duration(16000) = %v, want 1s", got)
	}
	if err := (Format{}).Validate(); err == nil {
		t.Error("zero format should not validate")
	}
	if L16Mono48K.String() != "audio/L16; rate=48000; channels=1" {
		t.Errorf("String() = %q", L16Mono48K.String())
	}
}

func TestL16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1}
	b := EncodeL16(nil, in)
	if len(b) != 2*len(in) {
		t.Fatalf("encoded %d bytes, want %d", len(b), 2*len(in))
	}
	out := DecodeL16(nil, b)
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32768 {
			t.Errorf("sample %d: got %f, want %f", i, out[i], in[i])
		}
	}
}

func TestEncodeL16Clips(t *testing.T) {
	out := DecodeL16(nil, EncodeL16(nil, []float32{2, -2}))
	if out[0] <= 0.99 || out[1] != -1 {
		t.Errorf("clipped = %v", out)
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix(nil, []float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %f, want %f", i, got[i], want[i])
		}
	}
	mono := Downmix(nil, []float32{0.1, 0.2}, 1)
	if len(mono) != 2 || mono[1] != 0.2 {
		t.Errorf("mono downmix = %v", mono)
	}
}

func TestQueueReadAfterPush(t *testing.T) {
	q := NewQueue(L16Mono16K, 0)
	if err := q.Push([]float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := q.Push([]float32{4, 5}); err != nil {
		t.Fatal(err)
	}

	buf := make([]float32, 4)
	n, err := q.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if buf[3] != 4 {
		t.Errorf("buf = %v", buf)
	}
	if q.Buffered() != 1 {
		t.Errorf("Buffered = %d, want 1", q.Buffered())
	}

	q.Close()
	n, err = q.Read(buf)
	if n != 1 || err != nil {
		t.Fatalf("drain after close = %d, %v", n, err)
	}
	if _, err := q.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Read after drain = %v, want EOF", err)
	}
	if err := q.Push([]float32{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after close = %v, want ErrClosed", err)
	}
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(L16Mono16K, 4)
	q.Push([]float32{1, 1})
	q.Push([]float32{2, 2})
	q.Push([]float32{3, 3})

	if q.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", q.Dropped())
	}
	buf := make([]float32, 8)
	n, _ := q.Read(buf)
	if n != 4 || buf[0] != 2 {
		t.Errorf("Read = %v", buf[:n])
	}
}

func TestQueueBlocksUntilPush(t *testing.T) {
	q := NewQueue(L16Mono16K, 0)
	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	go func() {
		defer wg.Done()
		buf := make([]float32, 8)
		got, _ = q.Read(buf)
	}()
	time.Sleep(10 * time.Millisecond)
	q.Push([]float32{1, 2, 3})
	wg.Wait()
	if got != 3 {
		t.Errorf("Read = %d, want 3", got)
	}
}

func TestQueueCloseWithError(t *testing.T) {
	q := NewQueue(L16Mono16K, 0)
	boom := errors.New("boom")
	q.CloseWithError(boom)
	if _, err := q.Read(make([]float32, 1)); !errors.Is(err, boom) {
		t.Errorf("Read = %v, want boom", err)
	}
}

func TestCopy(t *testing.T) {
	s := NewSliceStream(L16Mono16K, make([]float32, 1000))
	var buf bytes.Buffer
	n, err := Copy(&buf, s)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2000 || buf.Len() != 2000 {
		t.Errorf("Copy wrote %d bytes (buffer %d), want 2000", n, buf.Len())
	}
}

func TestAtomicFloat32(t *testing.T) {
	g := NewAtomicFloat32(1)
	if g.Load() != 1 {
		t.Fatalf("Load = %f", g.Load())
	}
	if old := g.Swap(0.1); old != 1 {
		t.Errorf("Swap returned %f, want 1", old)
	}
	g.Store(0.6)
	if g.Load() != 0.6 {
		t.Errorf("Load = %f, want 0.6", g.Load())
	}
}
