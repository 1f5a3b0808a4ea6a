package voiceprint

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/haivivi/voicegate/pkg/kv"
)

// failingKV accepts reads but rejects every write.
type failingKV struct {
	kv.Store
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func vec(vals ...float64) []float64 { return vals }

func TestStorePutReplacesSameID(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, kv.NewMemory())

	if err := s.Put(ctx, NewProfile("alice", "Alice", vec(1, 0, 0))); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, NewProfile("bob", "Bob", vec(0, 1, 0))); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, NewProfile("alice", "Alice 2", vec(0, 0, 1))); err != nil {
		t.Fatal(err)
	}

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	p, ok := s.Get("alice")
	if !ok {
		t.Fatal("alice missing")
	}
	if p.Name != "Alice 2" || p.VoicePrint[2] != 1 {
		t.Errorf("alice = %+v, want the second enrollment", p)
	}
	// Replacement moves the profile to the end of the enrollment order.
	ps := s.Profiles()
	if ps[0].ID != "bob" || ps[1].ID != "alice" {
		t.Errorf("order = [%s %s], want [bob alice]", ps[0].ID, ps[1].ID)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSON, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx := context.Background()
			backing := kv.NewMemory()
			s := Open(ctx, backing, WithCodec(codec), WithDimension(3))
			want := []Profile{
				NewProfile("alice", "Alice", vec(0.1, -2.5, 3)),
				NewProfile("bob", "Bob", vec(4, 5.25, -6)),
			}
			for _, p := range want {
				if err := s.Put(ctx, p); err != nil {
					t.Fatal(err)
				}
			}

			reopened := Open(ctx, backing, WithCodec(codec), WithDimension(3))
			got := reopened.Profiles()
			if len(got) != len(want) {
				t.Fatalf("got %d profiles, want %d", len(got), len(want))
			}
			for i := range want {
				g, w := got[i], want[i]
				if g.ID != w.ID || g.Name != w.Name || g.Confidence != w.Confidence || g.Version != w.Version {
					t.Errorf("profile %d = %+v, want %+v", i, g, w)
				}
				if !g.CreatedAt.Equal(w.CreatedAt) {
					t.Errorf("profile %d createdAt = %v, want %v", i, g.CreatedAt, w.CreatedAt)
				}
				for j := range w.VoicePrint {
					if g.VoicePrint[j] != w.VoicePrint[j] {
						t.Errorf("profile %d voicePrint[%d] = %v, want %v", i, j, g.VoicePrint[j], w.VoicePrint[j])
					}
				}
			}
		})
	}
}

func TestStoreJSONPayload(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	payload := `[{"id":"carol","name":"Carol","voicePrint":[1,2],"confidence":1,"createdAt":"2024-05-01T10:00:00Z"}]`
	backing.Set(ctx, DefaultKey, []byte(payload))

	s := Open(ctx, backing)
	p, ok := s.Get("carol")
	if !ok {
		t.Fatal("carol not loaded")
	}
	if p.Name != "Carol" || len(p.VoicePrint) != 2 || p.CreatedAt.Year() != 2024 {
		t.Errorf("carol = %+v", p)
	}
}

func TestStoreCorruptSlotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	backing.Set(ctx, DefaultKey, []byte("{not json"))

	s := Open(ctx, backing)
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if err := s.Put(ctx, NewProfile("alice", "Alice", vec(1, 2))); err != nil {
		t.Fatal(err)
	}
	if Open(ctx, backing).Len() != 1 {
		t.Error("store did not recover after corrupt slot")
	}
}

func TestStoreParksStaleProfiles(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	old := Open(ctx, backing)
	old.Put(ctx, NewProfile("alice", "Alice", vec(1, 2, 3)))
	old.Put(ctx, NewProfile("bob", "Bob", vec(1, 2, 3)))
	future := NewProfile("dave", "Dave", vec(1, 2, 3, 4))
	future.Version = SchemaVersion + 1
	old.Put(ctx, NewProfile("carol", "Carol", vec(1, 2, 3, 4)))
	// Write a future-version record through the codec directly.
	data, _ := JSON.Marshal(append(old.Profiles(), future))
	backing.Set(ctx, DefaultKey, data)

	s := Open(ctx, backing, WithDimension(4))
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (carol)", s.Len())
	}
	if n := len(s.Stale()); n != 3 {
		t.Fatalf("Stale = %d, want 3", n)
	}
	if _, _, err := s.Match(vec(1, 2, 3)); err != nil {
		t.Fatalf("Match: %v", err)
	}
	best, _, _ := s.Match(vec(1, 2, 3))
	if best != nil {
		t.Errorf("stale profile matched: %+v", best)
	}

	// Re-enrolling alice replaces her stale record; the others survive.
	if err := s.Put(ctx, NewProfile("alice", "Alice", vec(4, 3, 2, 1))); err != nil {
		t.Fatal(err)
	}
	reopened := Open(ctx, backing, WithDimension(4))
	if reopened.Len() != 2 {
		t.Errorf("Len after re-enroll = %d, want 2", reopened.Len())
	}
	if n := len(reopened.Stale()); n != 2 {
		t.Errorf("Stale after re-enroll = %d, want 2 (bob, dave)", n)
	}
}

func TestStoreDuplicateIDsKeepLast(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	payload := `[{"id":"a","name":"first","voicePrint":[1]},{"id":"a","name":"second","voicePrint":[2]}]`
	backing.Set(ctx, DefaultKey, []byte(payload))

	s := Open(ctx, backing)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if p, _ := s.Get("a"); p.Name != "second" {
		t.Errorf("kept %q, want second", p.Name)
	}
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, kv.NewMemory(), WithDimension(17))
	if err := s.Put(ctx, NewProfile("a", "A", vec(1, 2))); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("wrong dimension: err = %v, want ErrInvalidProfile", err)
	}
	if err := s.Put(ctx, Profile{VoicePrint: make([]float64, 17)}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("empty id: err = %v, want ErrInvalidProfile", err)
	}
}

func TestStoreRejectsNonFinite(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	s := Open(ctx, backing)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := s.Put(ctx, NewProfile("a", "A", vec(1, bad))); !errors.Is(err, ErrInvalidProfile) {
			t.Fatalf("feature %v: err = %v, want ErrInvalidProfile", bad, err)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after rejected puts, want 0", s.Len())
	}
	if err := s.Put(ctx, NewProfile("b", "B", vec(1, 2))); err != nil {
		t.Fatalf("Put after rejected profile: %v", err)
	}
	if got := Open(ctx, backing).Len(); got != 1 {
		t.Errorf("reloaded Len = %d, want 1", got)
	}
}

func TestStorePersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, failingKV{kv.NewMemory()})
	err := s.Put(ctx, NewProfile("a", "A", vec(1, 2)))
	if err == nil || errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("err = %v, want persist error", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1 after failed persist", s.Len())
	}
}

func TestStoreMatch(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, nil)

	if _, _, err := s.Match(vec(1, 0)); !errors.Is(err, ErrNoProfiles) {
		t.Fatalf("Match on empty store: err = %v, want ErrNoProfiles", err)
	}

	s.Put(ctx, NewProfile("x", "X", vec(1, 0)))
	s.Put(ctx, NewProfile("y", "Y", vec(0, 1)))
	s.Put(ctx, NewProfile("x2", "X2", vec(2, 0)))

	best, sim, err := s.Match(vec(3, 1))
	if err != nil {
		t.Fatal(err)
	}
	// x and x2 tie; the first enrolled wins.
	if best == nil || best.ID != "x" {
		t.Fatalf("best = %+v, want x", best)
	}
	if sim <= 0.9 || sim > 1 {
		t.Errorf("sim = %v", sim)
	}

	best, sim, _ = s.Match(vec(-1, -1))
	if best != nil || sim != 0 {
		t.Errorf("negative match = %+v, %v; want nil, 0", best, sim)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	s := Open(ctx, backing)
	s.Put(ctx, NewProfile("a", "A", vec(1)))

	ok, err := s.Delete(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "a"); ok {
		t.Error("second Delete reported a removal")
	}
	if Open(ctx, backing).Len() != 0 {
		t.Error("delete not persisted")
	}
}

func TestStoreWithKey(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	s := Open(ctx, backing, WithKey("team-a"))
	s.Put(ctx, NewProfile("a", "A", vec(1)))

	if _, err := backing.Get(ctx, "team-a"); err != nil {
		t.Fatalf("slot team-a: %v", err)
	}
	if _, err := backing.Get(ctx, DefaultKey); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("default slot written: %v", err)
	}
}
