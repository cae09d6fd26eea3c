// Package config loads and validates the daemon's on-disk configuration,
// following this module's own defaults-in-a-package-var convention.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xcp-ng/xcp-metrics-go/internal/legacymap"
)

// RingSizes overrides the four round-robin ring entry counts; zero fields
// fall back to the spec defaults (120/120/168/365).
type RingSizes struct {
	FiveSecond int `json:"five-second,omitempty"`
	OneMinute  int `json:"one-minute,omitempty"`
	OneHour    int `json:"one-hour,omitempty"`
	OneDay     int `json:"one-day,omitempty"`
}

// LegacyPattern is one on-disk predefined pattern-strategy rule, decoded
// into an internal/legacymap.PatternRule by Init.
type LegacyPattern struct {
	SourceName string  `json:"source-name"`
	Pattern    string  `json:"pattern"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Default    float64 `json:"default"`
}

// Config is the decoded shape of the daemon config file.
type Config struct {
	SocketPath     string          `json:"socket-path,omitempty"`
	Target         string          `json:"target,omitempty"`
	User           string          `json:"user,omitempty"`
	Group          string          `json:"group,omitempty"`
	LogLevel       string          `json:"loglevel,omitempty"`
	LogDateTime    bool            `json:"log-datetime,omitempty"`
	RingSizes      RingSizes       `json:"ring-sizes,omitempty"`
	LegacyPatterns []LegacyPattern `json:"legacy-patterns,omitempty"`
}

// Keys holds the process-wide active configuration. Init populates it from
// disk; callers that never call Init get these defaults.
var Keys Config = Config{
	Target:   "xcp-metrics",
	LogLevel: "info",
	RingSizes: RingSizes{
		FiveSecond: 120,
		OneMinute:  120,
		OneHour:    168,
		OneDay:     365,
	},
}

// SocketPathFor resolves the effective control-socket path: an explicit
// socket-path wins, otherwise it is derived from target (spec §6).
func (c Config) SocketPathFor() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return "/var/lib/xcp/" + c.Target
}

// PatternRules converts the decoded on-disk rules into legacymap's type.
func (c Config) PatternRules() []legacymap.PatternRule {
	out := make([]legacymap.PatternRule, 0, len(c.LegacyPatterns))
	for _, p := range c.LegacyPatterns {
		out = append(out, legacymap.PatternRule{
			SourceName: p.SourceName,
			Pattern:    p.Pattern,
			Min:        p.Min,
			Max:        p.Max,
			Default:    p.Default,
		})
	}
	return out
}

// Init reads flagConfigFile, validates it against daemonSchema, and merges
// it over the package defaults in Keys. A missing file is not an error
// (the defaults stand); a malformed or schema-invalid file is.
func Init(flagConfigFile string) error {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := Validate(daemonSchema, raw); err != nil {
		return fmt.Errorf("validate config %s: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("decode config %s: %w", flagConfigFile, err)
	}

	if Keys.RingSizes.FiveSecond == 0 {
		Keys.RingSizes.FiveSecond = 120
	}
	if Keys.RingSizes.OneMinute == 0 {
		Keys.RingSizes.OneMinute = 120
	}
	if Keys.RingSizes.OneHour == 0 {
		Keys.RingSizes.OneHour = 168
	}
	if Keys.RingSizes.OneDay == 0 {
		Keys.RingSizes.OneDay = 365
	}
	if Keys.Target == "" {
		Keys.Target = "xcp-metrics"
	}
	if Keys.LogLevel == "" {
		Keys.LogLevel = "info"
	}

	return nil
}
