// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// EnvPrefix is the prefix of environment variables read as settings.
const EnvPrefix = "S4CTL_"

// Settings are the resolved connection and session options.
type Settings struct {
	Port      string        `koanf:"port"`
	Baud      int           `koanf:"baud"`
	Timeout   time.Duration `koanf:"timeout"`
	URL       string        `koanf:"url"`
	Username  string        `koanf:"username"`
	RangeMode string        `koanf:"range_mode"`
	Trace     string        `koanf:"trace"`
	ChunkSize int           `koanf:"chunk_size"`
}

// DefaultSettings returns the settings used when no source overrides them.
func DefaultSettings() Settings {
	return Settings{
		Baud:      dataman.DefaultBaudRate,
		Timeout:   dataman.DefaultReadTimeout,
		RangeMode: dataman.RangeAuto.String(),
		ChunkSize: dataman.DefaultChunkSize,
	}
}

// flagKeys maps persistent flag names to setting keys.
var flagKeys = map[string]string{
	"port":       "port",
	"baud":       "baud",
	"timeout":    "timeout",
	"url":        "url",
	"username":   "username",
	"range-mode": "range_mode",
	"trace":      "trace",
	"chunk-size": "chunk_size",
}

// flagProvider is a koanf provider over explicitly set flags.
type flagProvider map[string]any

func (f flagProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("flag provider does not support ReadBytes")
}

func (f flagProvider) Read() (map[string]any, error) {
	return f, nil
}

// defaultConfigPath returns the per-user config file if one exists.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "s4ctl", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// envKey maps S4CTL_RANGE_MODE to range_mode.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// LoadSettings resolves settings from defaults, the YAML file at path (or
// the per-user default), S4CTL_* environment variables and finally any
// flags in flags that were set on the command line.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	s := DefaultSettings()
	k := koanf.New(".")

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return s, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return s, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		set := flagProvider{}
		flags.Visit(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				set[key] = f.Value.String()
			}
		})
		if err := k.Load(set, nil); err != nil {
			return s, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// A bare number is a timeout in seconds.
	if v := k.String("timeout"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			if err := k.Set("timeout", time.Duration(secs*float64(time.Second)).String()); err != nil {
				return s, fmt.Errorf("invalid timeout %q: %w", v, err)
			}
		}
	}

	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, s.Validate()
}

// Validate checks settings that would otherwise fail late.
func (s Settings) Validate() error {
	if !dataman.ValidBaudRate(s.Baud) {
		return fmt.Errorf("unsupported baud rate %d (S4 supports %v)", s.Baud, dataman.BaudRates)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if _, err := dataman.ParseRangeMode(s.RangeMode); err != nil {
		return err
	}
	return nil
}

// SessionOptions converts settings into dataman options.
func (s Settings) SessionOptions() []dataman.Option {
	mode, _ := dataman.ParseRangeMode(s.RangeMode)
	return []dataman.Option{
		dataman.WithReadTimeout(s.Timeout),
		dataman.WithBaudRate(s.Baud),
		dataman.WithRangeMode(mode),
		dataman.WithChunkSize(s.ChunkSize),
	}
}
