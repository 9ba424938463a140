// This file contains environment variable utilities for configuration override.

package config

import (
	"flag"
	"time"

	"github.com/caarlos0/env/v11"

	apperrors "github.com/agbru/deepzoom/internal/errors"
)

// envSettings mirrors the overridable settings. Pointer fields stay nil when
// the variable is unset, which separates "unset" from "set to the zero value".
type envSettings struct {
	CenterRe *string  `env:"RE"`
	CenterIm *string  `env:"IM"`
	Zoom     *float64 `env:"ZOOM"`
	Rotation *float64 `env:"ROTATION"`
	Width    *int     `env:"WIDTH"`
	Height   *int     `env:"HEIGHT"`
	MaxIter  *uint    `env:"MAX_ITER"`
	Tier     *string  `env:"TIER"`
	ProbeRe  *string  `env:"PROBE_RE"`
	ProbeIm  *string  `env:"PROBE_IM"`

	Frequency          *float64 `env:"FREQUENCY"`
	Offset             *float64 `env:"OFFSET"`
	Saturation         *float64 `env:"SATURATION"`
	GlowSpread         *float64 `env:"GLOW_SPREAD"`
	GlowIntensity      *float64 `env:"GLOW_INTENSITY"`
	Brightness         *float64 `env:"BRIGHTNESS"`
	InteriorBrightness *float64 `env:"INTERIOR_BRIGHTNESS"`
	Misc               *float64 `env:"MISC"`

	Batch   *int    `env:"BATCH"`
	Backend *string `env:"BACKEND"`
	Workers *int    `env:"WORKERS"`
	Engine  *string `env:"ENGINE"`

	Timeout *time.Duration `env:"TIMEOUT"`

	Output       *string `env:"OUTPUT"`
	Settings     *string `env:"SETTINGS"`
	MetricsAddr  *string `env:"METRICS_ADDR"`
	LogLevel     *string `env:"LOG_LEVEL"`
	SaveSettings *bool   `env:"SAVE_SETTINGS"`
	TUI          *bool   `env:"TUI"`
	Quiet        *bool   `env:"QUIET"`
	Verbose      *bool   `env:"VERBOSE"`
}

// parseEnv reads the DEEPZOOM_* variables into an envSettings.
func parseEnv() (envSettings, error) {
	var s envSettings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return s, apperrors.NewConfigError("parse env: %v", err)
	}
	return s, nil
}

// isFlagSet checks if a flag was explicitly set on the command line.
// This is used to determine whether to apply environment variable overrides.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isFlagSetAny checks if any of the specified flags were explicitly set.
// This is useful for aliased flags where either the short or long form may be used.
func isFlagSetAny(fs *flag.FlagSet, names ...string) bool {
	for _, name := range names {
		if isFlagSet(fs, name) {
			return true
		}
	}
	return false
}

// assign copies *src into *dst when the variable was set.
func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// envOverride declares a single environment variable override.
// Each entry maps an env key (without the DEEPZOOM_ prefix) to the CLI flag
// name(s) it corresponds to and a function that applies the parsed value.
type envOverride struct {
	envKey string
	flags  []string
	apply  func(*AppConfig, *envSettings)
}

// envOverrides is the declarative table of all environment variable overrides.
var envOverrides = []envOverride{
	// View
	{"RE", []string{"re"}, func(c *AppConfig, s *envSettings) { assign(&c.CenterRe, s.CenterRe) }},
	{"IM", []string{"im"}, func(c *AppConfig, s *envSettings) { assign(&c.CenterIm, s.CenterIm) }},
	{"ZOOM", []string{"zoom", "z"}, func(c *AppConfig, s *envSettings) { assign(&c.Zoom, s.Zoom) }},
	{"ROTATION", []string{"rotation"}, func(c *AppConfig, s *envSettings) { assign(&c.Rotation, s.Rotation) }},
	{"WIDTH", []string{"width"}, func(c *AppConfig, s *envSettings) { assign(&c.Width, s.Width) }},
	{"HEIGHT", []string{"height"}, func(c *AppConfig, s *envSettings) { assign(&c.Height, s.Height) }},
	{"MAX_ITER", []string{"max-iter", "i"}, func(c *AppConfig, s *envSettings) { assign(&c.MaxIter, s.MaxIter) }},
	{"TIER", []string{"tier"}, func(c *AppConfig, s *envSettings) { assign(&c.Tier, s.Tier) }},
	{"PROBE_RE", []string{"probe-re"}, func(c *AppConfig, s *envSettings) { assign(&c.ProbeRe, s.ProbeRe) }},
	{"PROBE_IM", []string{"probe-im"}, func(c *AppConfig, s *envSettings) { assign(&c.ProbeIm, s.ProbeIm) }},

	// Palette
	{"FREQUENCY", []string{"frequency"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.Frequency, s.Frequency) }},
	{"OFFSET", []string{"offset"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.Offset, s.Offset) }},
	{"SATURATION", []string{"saturation"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.Saturation, s.Saturation) }},
	{"GLOW_SPREAD", []string{"glow-spread"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.GlowSpread, s.GlowSpread) }},
	{"GLOW_INTENSITY", []string{"glow-intensity"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.GlowIntensity, s.GlowIntensity) }},
	{"BRIGHTNESS", []string{"brightness"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.Brightness, s.Brightness) }},
	{"INTERIOR_BRIGHTNESS", []string{"interior-brightness"}, func(c *AppConfig, s *envSettings) {
		assign(&c.Color.InteriorBrightness, s.InteriorBrightness)
	}},
	{"MISC", []string{"misc"}, func(c *AppConfig, s *envSettings) { assign(&c.Color.Misc, s.Misc) }},

	// Compute
	{"BATCH", []string{"batch"}, func(c *AppConfig, s *envSettings) { assign(&c.BatchIterations, s.Batch) }},
	{"BACKEND", []string{"backend"}, func(c *AppConfig, s *envSettings) { assign(&c.Backend, s.Backend) }},
	{"WORKERS", []string{"workers"}, func(c *AppConfig, s *envSettings) { assign(&c.Workers, s.Workers) }},
	{"ENGINE", []string{"engine"}, func(c *AppConfig, s *envSettings) { assign(&c.Engine, s.Engine) }},
	{"TIMEOUT", []string{"timeout"}, func(c *AppConfig, s *envSettings) { assign(&c.Timeout, s.Timeout) }},

	// Output and modes
	{"OUTPUT", []string{"output", "o"}, func(c *AppConfig, s *envSettings) { assign(&c.OutputFile, s.Output) }},
	{"SETTINGS", []string{"settings"}, func(c *AppConfig, s *envSettings) { assign(&c.SettingsFile, s.Settings) }},
	{"METRICS_ADDR", []string{"metrics-addr"}, func(c *AppConfig, s *envSettings) { assign(&c.MetricsAddr, s.MetricsAddr) }},
	{"LOG_LEVEL", []string{"log-level"}, func(c *AppConfig, s *envSettings) { assign(&c.LogLevel, s.LogLevel) }},
	{"SAVE_SETTINGS", []string{"save-settings"}, func(c *AppConfig, s *envSettings) { assign(&c.SaveSettings, s.SaveSettings) }},
	{"TUI", []string{"tui"}, func(c *AppConfig, s *envSettings) { assign(&c.TUI, s.TUI) }},
	{"QUIET", []string{"quiet", "q"}, func(c *AppConfig, s *envSettings) { assign(&c.Quiet, s.Quiet) }},
	{"VERBOSE", []string{"verbose", "v"}, func(c *AppConfig, s *envSettings) { assign(&c.Verbose, s.Verbose) }},
}

// EnvKeys lists the recognized variables without their prefix.
func EnvKeys() []string {
	keys := make([]string, len(envOverrides))
	for i, o := range envOverrides {
		keys[i] = o.envKey
	}
	return keys
}

// applyEnvOverrides applies environment variable values to the configuration
// for any flags that were not explicitly set on the command line.
// This implements the priority: CLI flags > Environment variables > Defaults.
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) error {
	s, err := parseEnv()
	if err != nil {
		return err
	}
	for _, o := range envOverrides {
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		o.apply(config, &s)
	}
	return nil
}
