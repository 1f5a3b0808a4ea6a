package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/haivivi/voicegate/pkg/kv"
)

// DefaultKey is the kv slot holding the profile set.
const DefaultKey = "voice-profiles"

// Sentinel errors.
var (
	// ErrNoProfiles is returned by Match when no comparable profile is enrolled.
	ErrNoProfiles = errors.New("voiceprint: no profiles enrolled")

	// ErrInvalidProfile is returned by Put for a profile the store cannot
	// hold: empty id, a vector of the wrong length or a non-finite feature.
	ErrInvalidProfile = errors.New("voiceprint: invalid profile")
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey sets the kv slot name (default DefaultKey).
func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithCodec sets the payload codec (default JSON).
func WithCodec(c Codec) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithDimension sets the vector length of the active extractor. Profiles of
// any other length are parked as stale. Zero accepts every length.
func WithDimension(n int) StoreOption {
	return func(s *Store) {
		if n >= 0 {
			s.dim = n
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store holds the enrolled profiles and mirrors every change into a kv
// slot. It is safe for concurrent use and meant to be shared by all
// processors of a host.
type Store struct {
	kv    kv.Store
	key   string
	codec Codec
	dim   int
	log   *slog.Logger

	mu       sync.Mutex
	profiles []Profile // comparable, in enrollment order
	stale    []Profile // loaded but not comparable, written back untouched
}

// Open loads the profile set from the slot. It never fails: an absent slot
// starts empty, and a slot that cannot be read or decoded starts empty with
// the failure logged.
func Open(ctx context.Context, store kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:    store,
		key:   DefaultKey,
		codec: JSON,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "voiceprint", "key", s.key)
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.kv == nil {
		return
	}
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		s.log.Info("no stored profiles")
		return
	}
	if err != nil {
		s.log.Error("failed to read profiles", "error", err)
		return
	}
	loaded, err := s.codec.Unmarshal(data)
	if err != nil {
		s.log.Error("failed to decode profiles", "codec", s.codec.Name(), "error", err)
		return
	}

	index := make(map[string]int, len(loaded))
	for _, p := range loaded {
		if !s.comparable(p) {
			s.log.Warn("parking stale profile",
				"id", p.ID, "dimension", len(p.VoicePrint), "want", s.dim, "version", p.Version)
			s.stale = append(s.stale, p)
			continue
		}
		if i, ok := index[p.ID]; ok {
			s.log.Warn("duplicate profile id, keeping last", "id", p.ID)
			s.profiles[i] = p
			continue
		}
		index[p.ID] = len(s.profiles)
		s.profiles = append(s.profiles, p)
	}
	s.log.Info("loaded profiles", "count", len(s.profiles), "stale", len(s.stale))
}

func (s *Store) comparable(p Profile) bool {
	if p.Version > SchemaVersion {
		return false
	}
	if s.dim > 0 && len(p.VoicePrint) != s.dim {
		return false
	}
	return len(p.VoicePrint) > 0
}

// Put enrolls p, replacing any profile (comparable or stale) with the same
// id, and persists the set. A persist failure is logged and returned; the
// in-memory set keeps p either way. Profiles the store cannot hold are
// rejected with ErrInvalidProfile.
func (s *Store) Put(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	}
	if !s.comparable(p) {
		return fmt.Errorf("%w: %q has %d features, want %d", ErrInvalidProfile, p.ID, len(p.VoicePrint), s.dim)
	}
	for i, v := range p.VoicePrint {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %q feature %d is %v", ErrInvalidProfile, p.ID, i, v)
		}
	}
	p = p.Clone()

	s.mu.Lock()
	s.profiles = removeID(s.profiles, p.ID)
	s.stale = removeID(s.stale, p.ID)
	s.profiles = append(s.profiles, p)
	err := s.saveLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		s.log.Error("failed to persist profiles", "id", p.ID, "error", err)
		return err
	}
	s.log.Debug("profile enrolled", "id", p.ID, "name", p.Name)
	return nil
}

// Delete removes the profile with the given id and persists the set.
// It reports whether a profile was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.profiles) + len(s.stale)
	s.profiles = removeID(s.profiles, id)
	s.stale = removeID(s.stale, id)
	if len(s.profiles)+len(s.stale) == n {
		return false, nil
	}
	if err := s.saveLocked(ctx); err != nil {
		s.log.Error("failed to persist profiles", "id", id, "error", err)
		return true, err
	}
	return true, nil
}

// Save writes the full set to the slot.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	all := make([]Profile, 0, len(s.profiles)+len(s.stale))
	all = append(all, s.profiles...)
	all = append(all, s.stale...)
	data, err := s.codec.Marshal(all)
	if err != nil {
		return fmt.Errorf("voiceprint: encode: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("voiceprint: write %s: %w", s.key, err)
	}
	return nil
}

// Get returns a copy of the comparable profile with the given id.
func (s *Store) Get(id string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return Profile{}, false
}

// Profiles returns copies of the comparable profiles in enrollment order.
func (s *Store) Profiles() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.profiles)
}

// Stale returns copies of the profiles parked at load time.
func (s *Store) Stale() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.stale)
}

// Len returns the number of comparable profiles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

// Match returns the profile most similar to vec and its cosine similarity.
// The best candidate is the first profile with the strictly greatest
// similarity above zero; best is nil when no profile scores above zero.
// ErrNoProfiles is returned when nothing is enrolled.
func (s *Store) Match(vec []float64) (best *Profile, sim float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.profiles) == 0 {
		return nil, 0, ErrNoProfiles
	}
	for i := range s.profiles {
		v := CosineSimilarity(vec, s.profiles[i].VoicePrint)
		if v > sim {
			p := s.profiles[i].Clone()
			best, sim = &p, v
		}
	}
	return best, sim, nil
}

func removeID(ps []Profile, id string) []Profile {
	out := ps[:0]
	for _, p := range ps {
		if p.ID != id {
			out = append(out, p)
		}
	}
	clear(ps[len(out):])
	return out
}

func cloneAll(ps []Profile) []Profile {
	out := make([]Profile, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
