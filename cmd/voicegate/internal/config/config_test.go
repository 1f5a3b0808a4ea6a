package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haivivi/voicegate/pkg/kv"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func noEnv() envconfig.Lookuper {
	return envconfig.MapLookuper(nil)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), writeFile(t, ""), noEnv())
	require.NoError(t, err)

	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, -50.0, cfg.Gate.ThresholdDB)
	assert.Equal(t, float32(0.1), cfg.Gate.ClosedGain)
	assert.Equal(t, 2048, cfg.Analysis.FFTSize)
	assert.Equal(t, 0.75, cfg.Verify.Threshold)
	assert.Equal(t, "voice-profiles", cfg.Profiles.Key)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
gate:
  threshold_db: -40
  interval: 10ms
verify:
  threshold: 0.9
  tick: 250ms
profiles:
  backend: dir
  dir: /tmp/profiles
  codec: msgpack
server:
  addr: 0.0.0.0:9000
`)
	cfg, err := LoadWith(context.Background(), path, noEnv())
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, -40.0, cfg.Gate.ThresholdDB)
	assert.Equal(t, float32(0.1), cfg.Gate.ClosedGain, "unset fields keep defaults")
	assert.Equal(t, 10*time.Millisecond, cfg.Gate.Interval)
	assert.Equal(t, 0.9, cfg.Verify.Threshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Verify.Tick)
	assert.Equal(t, "dir", cfg.Profiles.Backend)
	assert.Equal(t, "msgpack", cfg.Profiles.Codec)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "gate:\n  threshold_db: -40\nlog:\n  level: warn\n")
	env := envconfig.MapLookuper(map[string]string{
		"VOICEGATE_GATE_THRESHOLD_DB":    "-45",
		"VOICEGATE_PROFILES_BACKEND":     "s3",
		"VOICEGATE_PROFILES_S3_BUCKET":   "voices",
		"VOICEGATE_PROFILES_S3_ENDPOINT": "http://localhost:9000",
		"VOICEGATE_VERIFY_HANGOVER":      "3",
		"GATE_THRESHOLD_DB":              "-10",
	})
	cfg, err := LoadWith(context.Background(), path, env)
	require.NoError(t, err)

	assert.Equal(t, -45.0, cfg.Gate.ThresholdDB)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "s3", cfg.Profiles.Backend)
	assert.Equal(t, "voices", cfg.Profiles.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Profiles.S3.Endpoint)
	assert.Equal(t, 3, cfg.Verify.Hangover)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWith(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), noEnv())
	require.Error(t, err, "an explicit path must exist")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := LoadWith(context.Background(), writeFile(t, "gate: [1, 2"), noEnv())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"positive threshold", func(c *Config) { c.Gate.ThresholdDB = 3 }},
		{"closed gain above one", func(c *Config) { c.Gate.ClosedGain = 1.5 }},
		{"fft size", func(c *Config) { c.Analysis.FFTSize = 1000 }},
		{"smoothing one", func(c *Config) { c.Analysis.Smoothing = 1 }},
		{"backend", func(c *Config) { c.Profiles.Backend = "redis" }},
		{"dir backend without dir", func(c *Config) { c.Profiles.Backend = "dir"; c.Profiles.Dir = "" }},
		{"codec", func(c *Config) { c.Profiles.Codec = "xml" }},
		{"addr", func(c *Config) { c.Server.Addr = "nope" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"endpoint", func(c *Config) { c.Profiles.S3.Endpoint = "::" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Profiles.Dir = t.TempDir()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Profiles.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())

	cfg.Profiles.Backend = "s3"
	assert.ErrorIs(t, cfg.Validate(), ErrS3Bucket)
	cfg.Profiles.S3.Bucket = "voices"
	assert.NoError(t, cfg.Validate())
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	st, err := ProfilesConfig{Backend: "memory"}.OpenKV(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &kv.Memory{}, st)

	dir := t.TempDir()
	st, err = ProfilesConfig{Backend: "dir", Dir: dir}.OpenKV(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "k", []byte("v")))
	got, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = ProfilesConfig{Backend: "tape"}.OpenKV(ctx, nil)
	assert.Error(t, err)
}

func TestStoreOptions(t *testing.T) {
	_, err := ProfilesConfig{Codec: "msgpack", Key: "k"}.StoreOptions(nil)
	require.NoError(t, err)
	_, err = ProfilesConfig{Codec: "bson", Key: "k"}.StoreOptions(nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.NewLogger(false).Enabled(context.Background(), -4))
	assert.True(t, cfg.NewLogger(true).Enabled(context.Background(), -4))

	cfg.Log.Level = "error"
	assert.False(t, cfg.NewLogger(false).Enabled(context.Background(), 4))
}
