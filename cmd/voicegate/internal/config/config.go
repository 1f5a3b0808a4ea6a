// Package config loads the voicegate CLI configuration.
//
// Values are resolved in three layers:
//
//  1. built-in defaults (Default)
//  2. a YAML file, by default os.UserConfigDir()/voicegate/config.yaml
//  3. environment variables prefixed with VOICEGATE_, for example
//     VOICEGATE_GATE_THRESHOLD_DB=-45 or VOICEGATE_PROFILES_BACKEND=s3
//
// The merged result is validated before use.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/sethvargo/go-envconfig"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "voicegate"

	// fileName is the config file inside appDir.
	fileName = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "VOICEGATE_"
)

// Config is the full CLI configuration.
type Config struct {
	Audio    AudioConfig    `yaml:"audio" json:"audio" env:", prefix=AUDIO_"`
	Gate     GateConfig     `yaml:"gate" json:"gate" env:", prefix=GATE_"`
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis" env:", prefix=ANALYSIS_"`
	Verify   VerifyConfig   `yaml:"verify" json:"verify" env:", prefix=VERIFY_"`
	Profiles ProfilesConfig `yaml:"profiles" json:"profiles" env:", prefix=PROFILES_"`
	Server   ServerConfig   `yaml:"server" json:"server" env:", prefix=SERVER_"`
	Log      LogConfig      `yaml:"log" json:"log" env:", prefix=LOG_"`

	// Path is the file the config was read from; empty when none existed.
	Path string `yaml:"-" json:"-"`
}

// AudioConfig selects the capture device.
type AudioConfig struct {
	Device          string `yaml:"device" json:"device" env:"DEVICE"`
	SampleRate      int    `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE" validate:"gte=8000,lte=192000"`
	Channels        int    `yaml:"channels" json:"channels" env:"CHANNELS" validate:"gte=1,lte=8"`
	FramesPerBuffer int    `yaml:"frames_per_buffer" json:"frames_per_buffer" env:"FRAMES_PER_BUFFER" validate:"gte=32,lte=16384"`
}

// GateConfig tunes the noise gate and the high-pass filter before it.
type GateConfig struct {
	ThresholdDB    float64       `yaml:"threshold_db" json:"threshold_db" env:"THRESHOLD_DB" validate:"lte=0"`
	ClosedGain     float32       `yaml:"closed_gain" json:"closed_gain" env:"CLOSED_GAIN" validate:"gte=0,lte=1"`
	Interval       time.Duration `yaml:"interval" json:"interval" env:"INTERVAL" validate:"gt=0"`
	HighPassCutoff float64       `yaml:"high_pass_cutoff" json:"high_pass_cutoff" env:"HIGH_PASS_CUTOFF" validate:"gt=0,lt=8000"`
	HighPassQ      float64       `yaml:"high_pass_q" json:"high_pass_q" env:"HIGH_PASS_Q" validate:"gt=0"`
}

// AnalysisConfig tunes the spectrum analyser.
type AnalysisConfig struct {
	FFTSize     int     `yaml:"fft_size" json:"fft_size" env:"FFT_SIZE" validate:"oneof=256 512 1024 2048 4096 8192"`
	Smoothing   float64 `yaml:"smoothing" json:"smoothing" env:"SMOOTHING" validate:"gte=0,lt=1"`
	MinDecibels float64 `yaml:"min_decibels" json:"min_decibels" env:"MIN_DECIBELS" validate:"lt=0"`
}

// VerifyConfig tunes speaker verification and session tracking.
type VerifyConfig struct {
	Threshold float64       `yaml:"threshold" json:"threshold" env:"THRESHOLD" validate:"gte=0,lte=1"`
	Window    int           `yaml:"window" json:"window" env:"WINDOW" validate:"gte=2"`
	MinRatio  float64       `yaml:"min_ratio" json:"min_ratio" env:"MIN_RATIO" validate:"gt=0,lte=1"`
	Hangover  int           `yaml:"hangover" json:"hangover" env:"HANGOVER" validate:"gte=0"`
	Tick      time.Duration `yaml:"tick" json:"tick" env:"TICK" validate:"gt=0"`
}

// ProfilesConfig selects where voice profiles are persisted.
type ProfilesConfig struct {
	Backend string   `yaml:"backend" json:"backend" env:"BACKEND" validate:"oneof=memory dir badger s3"`
	Dir     string   `yaml:"dir" json:"dir" env:"DIR" validate:"required_if=Backend dir,required_if=Backend badger"`
	Key     string   `yaml:"key" json:"key" env:"KEY" validate:"required"`
	Codec   string   `yaml:"codec" json:"codec" env:"CODEC" validate:"oneof=json msgpack"`
	S3      S3Config `yaml:"s3" json:"s3" env:", prefix=S3_"`
}

// S3Config addresses an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket" json:"bucket" env:"BUCKET"`
	Region          string `yaml:"region" json:"region" env:"REGION"`
	Endpoint        string `yaml:"endpoint" json:"endpoint,omitempty" env:"ENDPOINT" validate:"omitempty,url"`
	Prefix          string `yaml:"prefix" json:"prefix,omitempty" env:"PREFIX"`
	AccessKeyID     string `yaml:"access_key_id" json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-" env:"SECRET_ACCESS_KEY"`
}

// ServerConfig configures `voicegate serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" env:"ADDR" validate:"required,hostname_port"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" env:"FORMAT" validate:"oneof=text json"`
}

// ErrS3Bucket is returned when the s3 backend has no bucket.
var ErrS3Bucket = errors.New("config: profiles.s3.bucket is required for the s3 backend")

// Default returns the built-in configuration.
func Default() *Config {
	dir := filepath.Join("."+appDir, "profiles")
	if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, appDir, "profiles")
	}
	return &Config{
		Audio: AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			FramesPerBuffer: 320,
		},
		Gate: GateConfig{
			ThresholdDB:    -50,
			ClosedGain:     0.1,
			Interval:       time.Second / 60,
			HighPassCutoff: 85,
			HighPassQ:      1,
		},
		Analysis: AnalysisConfig{
			FFTSize:     2048,
			Smoothing:   0.3,
			MinDecibels: -100,
		},
		Verify: VerifyConfig{
			Threshold: 0.75,
			Window:    5,
			MinRatio:  0.6,
			Hangover:  10,
			Tick:      100 * time.Millisecond,
		},
		Profiles: ProfilesConfig{
			Backend: "badger",
			Dir:     dir,
			Key:     "voice-profiles",
			Codec:   "json",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8787"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load resolves the configuration from path (or the default location when
// path is empty) and the process environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, env),
		DefaultOverwrite: true,
	}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.Profiles.Backend == "s3" && c.Profiles.S3.Bucket == "" {
		return ErrS3Bucket
	}
	return nil
}

// NewLogger creates a structured logger writing to stderr. verbose forces
// the debug level.
func (c *Config) NewLogger(verbose bool) *slog.Logger {
	level := parseLogLevel(c.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(c.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
