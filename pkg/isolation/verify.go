package isolation

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Verification is the outcome of VerifySpeaker.
type Verification struct {
	Verified   bool                `json:"verified"`
	Confidence float64             `json:"confidence"`
	Profile    *voiceprint.Profile `json:"profile,omitempty"`
}

// CreateVoiceProfile enrolls the current window as id, replacing any
// profile with the same id, and makes it the current profile. A failure to
// persist the set is logged by the store and does not fail the call.
func (p *Processor) CreateVoiceProfile(ctx context.Context, id, name string) (*voiceprint.Profile, error) {
	vec, err := p.ExtractVoiceFeatures()
	if err != nil {
		p.log.Warn("voice profile not created", "id", id, "error", err)
		return nil, fmt.Errorf("isolation: extract features: %w", err)
	}
	prof := voiceprint.NewProfile(id, name, vec)
	if err := p.store.Put(ctx, prof); errors.Is(err, voiceprint.ErrInvalidProfile) {
		return nil, err
	}

	p.setCurrent(&prof)
	p.log.Info("voice profile created", "id", id, "name", name, "profiles", p.store.Len())
	return &prof, nil
}

// VerifySpeaker matches the current window against the enrolled profiles.
//
// The profile with the strictly greatest cosine similarity is reported
// together with that similarity; it verifies at the configured threshold.
// When features cannot be extracted or nothing is enrolled the result is
// the zero Verification. Any unverified outcome clears the current profile.
func (p *Processor) VerifySpeaker(ctx context.Context) Verification {
	vec, err := p.ExtractVoiceFeatures()
	if err != nil {
		p.log.Debug("speaker verification skipped", "error", err)
		p.setCurrent(nil)
		return Verification{}
	}
	best, sim, err := p.store.Match(vec)
	if err != nil {
		p.setCurrent(nil)
		return Verification{}
	}

	v := Verification{
		Verified:   best != nil && sim >= p.verifyThreshold,
		Confidence: sim,
		Profile:    best,
	}
	if v.Verified {
		p.setCurrent(best)
	} else {
		p.setCurrent(nil)
	}
	return v
}

func (p *Processor) setCurrent(prof *voiceprint.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prof == nil {
		p.current = nil
		return
	}
	cur := prof.Clone()
	p.current = &cur
}

// CurrentProfile returns the profile last enrolled or verified, or nil.
func (p *Processor) CurrentProfile() *voiceprint.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cur := p.current.Clone()
	return &cur
}
