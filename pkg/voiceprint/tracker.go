package voiceprint

// Attribution is the tracker's view of who is speaking.
type Attribution struct {
	Status     SpeakerStatus `json:"status"`
	Speaker    string        `json:"speaker,omitempty"`    // dominant profile id
	Candidates []string      `json:"candidates,omitempty"` // ids in the window, dominant first
	Confidence float64       `json:"confidence"`
}

// Tracker smooths per-tick verification results over a sliding window of
// matched profile ids and classifies the window as Single, Overlap or
// Unknown.
//
// # Algorithm
//
// The tracker keeps a circular buffer of the last N ids, where "" stands
// for "no verified speaker". On each Observe it counts the ids:
//
//   - one id covering at least minRatio of the window → StatusSingle
//   - the top two ids together covering minRatio → StatusOverlap
//   - anything else, or a window dominated by "" → StatusUnknown
//
// Confidence is the covered fraction of the window.
type Tracker struct {
	window []string
	pos    int
	filled int

	minRatio float64
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithWindow sets the sliding window size (default 5).
func WithWindow(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.window = make([]string, n)
		}
	}
}

// WithMinRatio sets the dominance ratio for Single detection (default 0.6).
// Must be in (0, 1].
func WithMinRatio(r float64) TrackerOption {
	return func(t *Tracker) {
		if r > 0 && r <= 1 {
			t.minRatio = r
		}
	}
}

// NewTracker creates a Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		window:   make([]string, 5),
		minRatio: 0.6,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records the id verified on this tick ("" for none) and returns
// the current attribution. It returns nil until the window holds two
// observations.
func (t *Tracker) Observe(id string) *Attribution {
	t.window[t.pos] = id
	t.pos = (t.pos + 1) % len(t.window)
	if t.filled < len(t.window) {
		t.filled++
	}
	if t.filled < 2 {
		return nil
	}

	counts := make(map[string]int, 4)
	order := make([]string, 0, 4)
	for i := range t.filled {
		idx := (t.pos - t.filled + i + len(t.window)) % len(t.window)
		id := t.window[idx]
		if id == "" {
			continue
		}
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	// Ties go to the id seen first in the window.
	var top1, top2 string
	var c1, c2 int
	for _, id := range order {
		c := counts[id]
		switch {
		case c > c1:
			top2, c2 = top1, c1
			top1, c1 = id, c
		case c > c2:
			top2, c2 = id, c
		}
	}

	total := float64(t.filled)
	if c1 > 0 && float64(c1)/total >= t.minRatio {
		return &Attribution{
			Status:     StatusSingle,
			Speaker:    top1,
			Candidates: []string{top1},
			Confidence: float64(c1) / total,
		}
	}
	if c2 > 0 {
		if r := float64(c1+c2) / total; r >= t.minRatio {
			return &Attribution{
				Status:     StatusOverlap,
				Speaker:    top1,
				Candidates: []string{top1, top2},
				Confidence: r,
			}
		}
	}
	return &Attribution{
		Status:     StatusUnknown,
		Confidence: float64(c1) / total,
	}
}

// Reset clears the window.
func (t *Tracker) Reset() {
	t.pos = 0
	t.filled = 0
	clear(t.window)
}
