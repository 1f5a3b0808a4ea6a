// Package voiceprint enrolls, persists and matches speaker voice prints.
//
// # Pipeline
//
//  1. Extractor.Extract: analyser spectrum → fixed-length feature vector
//     (13 cepstral coefficients + 4 pitch features by default)
//  2. Store.Put / Store.Match: enrolled profiles, cosine-similarity search
//  3. Tracker.Observe: sliding window of matched ids → SpeakerStatus
//
// # Persistence
//
// The whole profile set lives in one kv slot (default "voice-profiles"),
// encoded as an array of
//
//	{id, name, voicePrint, confidence, createdAt, version}
//
// with JSON by default or msgpack. Loading never fails: an absent or
// unreadable slot starts an empty set and the failure is logged. Profiles
// whose vector length does not match the active extractor are kept aside as
// stale and never matched.
package voiceprint

import (
	"fmt"
	"slices"
	"time"
)

// SchemaVersion is the profile record layout written by this package.
const SchemaVersion = 1

// Profile is one enrolled speaker.
type Profile struct {
	ID         string    `json:"id" msgpack:"id" yaml:"id"`
	Name       string    `json:"name" msgpack:"name" yaml:"name"`
	VoicePrint []float64 `json:"voicePrint" msgpack:"voicePrint" yaml:"voicePrint"`
	Confidence float64   `json:"confidence" msgpack:"confidence" yaml:"confidence"`
	CreatedAt  time.Time `json:"createdAt" msgpack:"createdAt" yaml:"createdAt"`
	Version    int       `json:"version,omitempty" msgpack:"version,omitempty" yaml:"version,omitempty"`
}

// NewProfile creates a profile enrolled now with confidence 1.0.
func NewProfile(id, name string, voicePrint []float64) Profile {
	return Profile{
		ID:         id,
		Name:       name,
		VoicePrint: slices.Clone(voicePrint),
		Confidence: 1.0,
		CreatedAt:  time.Now().UTC(),
		Version:    SchemaVersion,
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	p.VoicePrint = slices.Clone(p.VoicePrint)
	return p
}

// SpeakerStatus indicates the speaker tracking result.
type SpeakerStatus int

const (
	// StatusUnknown means no enrolled speaker dominates the recent window.
	StatusUnknown SpeakerStatus = iota

	// StatusSingle means one enrolled speaker is stably verified.
	StatusSingle

	// StatusOverlap means two enrolled speakers alternate in the window.
	StatusOverlap
)

func (s SpeakerStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSingle:
		return "single"
	case StatusOverlap:
		return "overlap"
	default:
		return fmt.Sprintf("SpeakerStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SpeakerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
