package wavfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(math.Sin(2*math.Pi*float64(i)/64)) * 0.5
	}
	return s
}

func TestWriteOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	format := pcm.Format{SampleRate: 22050, Channels: 2}
	in := ramp(2 * 441)
	if err := Write(path, format, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st.Format() != format {
		t.Errorf("format = %v, want %v", st.Format(), format)
	}
	out := make([]float32, len(in)+10)
	n, _ := st.Read(out)
	if n != len(in) {
		t.Fatalf("read %d samples, want %d", n, len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/16384 {
			t.Fatalf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := st.Read(out); !errors.Is(err, io.EOF) {
		t.Errorf("read after end = %v, want EOF", err)
	}
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(f, pcm.L16Mono16K)
	for range 3 {
		if err := w.Write(ramp(160)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, _ = os.Open(path)
	defer f.Close()
	format, samples, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != pcm.L16Mono16K || len(samples) != 480 {
		t.Errorf("decoded %v with %d samples", format, len(samples))
	}
}

// unsigned8 builds a mono 8 kHz 8-bit PCM WAV holding data.
func unsigned8(data []byte) []byte {
	var b bytes.Buffer
	le := func(v any) { binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + len(data)))
	b.WriteString("WAVEfmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(1))
	le(uint32(8000))
	le(uint32(8000))
	le(uint16(1))
	le(uint16(8))
	b.WriteString("data")
	le(uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestDecodeUnsigned8Bit(t *testing.T) {
	format, samples, err := Decode(bytes.NewReader(unsigned8([]byte{128, 192, 64, 0, 255, 128})))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != (pcm.Format{SampleRate: 8000, Channels: 1}) {
		t.Errorf("format = %v", format)
	}
	want := []float32{0, 0.5, -0.5, -1, 127.0 / 128, 0}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("definitely not a riff header"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestPaced(t *testing.T) {
	format := pcm.L16Mono16K
	st := Paced(context.Background(), pcm.NewSliceStream(format, make([]float32, 1600*3)))
	buf := make([]float32, 1600)
	start := time.Now()
	for range 3 {
		if _, err := st.Read(buf); err != nil {
			t.Fatal(err)
		}
	}
	// The third 100 ms read may start no earlier than 200 ms in.
	if el := time.Since(start); el < 190*time.Millisecond {
		t.Errorf("three paced reads took %v", el)
	}
}

func TestPacedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := Paced(ctx, pcm.NewSliceStream(pcm.L16Mono16K, make([]float32, 16000*10)))
	buf := make([]float32, 16000)
	st.Read(buf)
	cancel()
	if _, err := st.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("read after cancel = %v, want EOF", err)
	}
}
