package isolation

import (
	"context"
	"sync"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/audio/resampler"
)

// source is the single reader of one input stream. It outlives the graphs
// built over that input, so re-initializing on the same stream neither
// loses a block nor puts two readers on the stream.
type source struct {
	in     pcm.Stream
	blocks chan []float32
	quit   chan struct{}
	once   sync.Once

	// err is the read error that ended the stream; valid once blocks is
	// closed.
	err error

	mu      sync.Mutex
	pending []float32
}

func newSource(in pcm.Stream) (*source, error) {
	rs, err := resampler.NewStream(in, SampleRate)
	if err != nil {
		return nil, err
	}
	s := &source{
		in:     in,
		blocks: make(chan []float32),
		quit:   make(chan struct{}),
	}
	go s.run(rs)
	return s, nil
}

func (s *source) run(rs pcm.Stream) {
	defer close(s.blocks)
	for {
		buf := make([]float32, blockSize)
		n, err := rs.Read(buf)
		if n > 0 {
			select {
			case s.blocks <- buf[:n]:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			s.err = err
			return
		}
	}
}

// next returns the next block. ok is false when ctx is done or the input
// has ended; in the latter case end is true. A block received after ctx is
// done is kept for the next graph.
func (s *source) next(ctx context.Context) (block []float32, ok, end bool) {
	s.mu.Lock()
	if b := s.pending; b != nil {
		s.pending = nil
		s.mu.Unlock()
		return b, true, false
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, false, false
	case b, open := <-s.blocks:
		if !open {
			return nil, false, true
		}
		if ctx.Err() != nil {
			s.mu.Lock()
			s.pending = b
			s.mu.Unlock()
			return nil, false, false
		}
		return b, true, false
	}
}

// stop detaches the reader. A read already in flight completes and its
// block is discarded.
func (s *source) stop() {
	s.once.Do(func() { close(s.quit) })
}
