package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/traceprof"
)

// settingsValidate checks loaded Settings.
var settingsValidate = validator.New()

// Settings controls how samples are recorded.
type Settings struct {
	// EndpointCollectionEnabled attaches the local root's resource to samples.
	// Overridden by DD_PROFILING_ENDPOINT_COLLECTION_ENABLED.
	EndpointCollectionEnabled bool

	// CodeHotspotsEnabled correlates samples with the active span at all.
	// Overridden by DD_PROFILING_CODE_HOTSPOTS_COLLECTION_ENABLED.
	CodeHotspotsEnabled bool

	// MaxFrames caps the frames kept per sample; deeper stacks are truncated.
	MaxFrames int `validate:"gt=0"`

	// SamplingPeriod is stamped on samples that do not carry their own.
	SamplingPeriod time.Duration `validate:"gt=0"`

	// FlushInterval is how often buffered samples are handed to the store.
	FlushInterval time.Duration `validate:"gt=0"`

	// BufferSize is the number of samples buffered before a forced flush.
	BufferSize int `validate:"gt=0"`

	// StorePath is the SQLite database path, or ":memory:".
	StorePath string `validate:"required"`

	// ValidateSamples checks event invariants before buffering.
	ValidateSamples bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		EndpointCollectionEnabled: true,
		CodeHotspotsEnabled:       true,
		MaxFrames:                 64,
		SamplingPeriod:            10 * time.Millisecond,
		FlushInterval:             60 * time.Second,
		BufferSize:                1024,
		StorePath:                 ":memory:",
	}
}

// SettingsFrom reads Settings from the "profiling" section of c, falling back
// to defaults for missing keys.
//
//	profiling:
//	  endpoint_collection_enabled: false
//	  max_frames: 128
//	  sampling_period: 10ms
func SettingsFrom(c Config) Settings {
	def := DefaultSettings()
	p := c.Section("profiling")
	return Settings{
		EndpointCollectionEnabled: p.Bool("endpoint_collection_enabled", def.EndpointCollectionEnabled),
		CodeHotspotsEnabled:       p.Bool("code_hotspots_enabled", def.CodeHotspotsEnabled),
		MaxFrames:                 p.Int("max_frames", def.MaxFrames),
		SamplingPeriod:            p.Duration("sampling_period", def.SamplingPeriod),
		FlushInterval:             p.Duration("flush_interval", def.FlushInterval),
		BufferSize:                p.Int("buffer_size", def.BufferSize),
		StorePath:                 p.String("store_path", def.StorePath),
		ValidateSamples:           p.Bool("validate_samples", def.ValidateSamples),
	}
}

// ApplyEnv overrides the feature toggles from environment variables.
// lookup is usually os.LookupEnv. Unparseable values are ignored.
func (s Settings) ApplyEnv(lookup func(string) (string, bool)) Settings {
	if b, ok := envBool(lookup, traceprof.EndpointEnvVar); ok {
		s.EndpointCollectionEnabled = b
	}
	if b, ok := envBool(lookup, traceprof.CodeHotspotsEnvVar); ok {
		s.CodeHotspotsEnabled = b
	}
	return s
}

func envBool(lookup func(string) (string, bool), key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate reports settings that cannot be used.
func (s Settings) Validate() error {
	err := settingsValidate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("invalid settings: %s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid settings: %w", err)
}

// LoadSettings reads Settings from a config file, applies environment
// overrides and validates the result.
func LoadSettings(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s := SettingsFrom(cfg).ApplyEnv(os.LookupEnv)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
