package pcm

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when pushing into a closed Queue.
var ErrClosed = errors.New("pcm: queue closed")

// Stream is a live source of interleaved float32 samples in [-1, 1].
//
// Read behaves like io.Reader: it blocks until at least one sample is
// available, and returns io.EOF once the source is exhausted or closed.
type Stream interface {
	Format() Format
	Read(p []float32) (int, error)
	Close() error
}

// Queue is a Stream fed by Push. It buffers up to a fixed number of
// samples; when a producer outruns the reader the oldest samples are
// dropped so a live source never blocks.
type Queue struct {
	format Format
	limit  int

	mu       sync.Mutex
	cond     *sync.Cond
	frames   [][]float32
	buffered int
	dropped  int64
	closed   bool
	err      error
}

// NewQueue creates a Queue holding at most limit samples. A limit of zero
// or less buffers one second of audio.
func NewQueue(f Format, limit int) *Queue {
	if limit <= 0 {
		limit = f.SampleRate * f.Channels
	}
	q := &Queue{format: f, limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Format returns the format of the queued samples.
func (q *Queue) Format() Format {
	return q.format
}

// Push appends a copy of samples to the queue.
func (q *Queue) Push(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.frames = append(q.frames, cp)
	q.buffered += len(cp)
	for q.buffered > q.limit && len(q.frames) > 1 {
		q.buffered -= len(q.frames[0])
		q.dropped += int64(len(q.frames[0]))
		q.frames[0] = nil
		q.frames = q.frames[1:]
	}
	q.cond.Signal()
	return nil
}

// Read copies queued samples into p, blocking until data is available or
// the queue is closed.
func (q *Queue) Read(p []float32) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.frames) == 0 {
		if q.err != nil {
			return 0, q.err
		}
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && len(q.frames) > 0 {
		head := q.frames[0]
		c := copy(p[n:], head)
		n += c
		if c < len(head) {
			q.frames[0] = head[c:]
		} else {
			q.frames[0] = nil
			q.frames = q.frames[1:]
		}
	}
	q.buffered -= n
	return n, nil
}

// Buffered returns the number of samples waiting to be read.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buffered
}

// Dropped returns the number of samples discarded because the reader fell
// behind.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close closes the queue. Buffered samples remain readable, after which Read
// returns io.EOF.
func (q *Queue) Close() error {
	return q.CloseWithError(nil)
}

// CloseWithError closes the queue so that Read returns err (or io.EOF when
// err is nil) after the buffered samples are drained.
func (q *Queue) CloseWithError(err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.err = err
	q.cond.Broadcast()
	return nil
}

// SliceStream serves a fixed buffer of samples, then io.EOF.
type SliceStream struct {
	format  Format
	samples []float32
}

// NewSliceStream returns a Stream over samples.
func NewSliceStream(f Format, samples []float32) *SliceStream {
	return &SliceStream{format: f, samples: samples}
}

// Format returns the stream format.
func (s *SliceStream) Format() Format {
	return s.format
}

func (s *SliceStream) Read(p []float32) (int, error) {
	if len(s.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.samples)
	s.samples = s.samples[n:]
	return n, nil
}

// Close releases the remaining samples.
func (s *SliceStream) Close() error {
	s.samples = nil
	return nil
}
