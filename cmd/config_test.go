// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// ============================================================
// Settings Tests
// ============================================================

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("port", "", "")
	fs.Int("baud", 115200, "")
	fs.String("timeout", "300ms", "")
	fs.String("range-mode", "auto", "")
	fs.Int("chunk-size", 1024, "")
	fs.Bool("dry-run", false, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings("", testFlags(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("settings = %+v, want defaults %+v", s, DefaultSettings())
	}
}

func TestLoadSettings_Precedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
port: /dev/ttyS0
baud: 57600
timeout: 500ms
range_mode: bulk
chunk_size: 256
`)

	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		check func(t *testing.T, s Settings)
	}{
		{
			name: "file only",
			check: func(t *testing.T, s Settings) {
				if s.Port != "/dev/ttyS0" || s.Baud != 57600 || s.Timeout != 500*time.Millisecond {
					t.Errorf("settings = %+v", s)
				}
				if s.RangeMode != "bulk" || s.ChunkSize != 256 {
					t.Errorf("settings = %+v", s)
				}
			},
		},
		{
			name: "env overrides file",
			env:  map[string]string{"S4CTL_BAUD": "9600", "S4CTL_RANGE_MODE": "per-char"},
			check: func(t *testing.T, s Settings) {
				if s.Baud != 9600 || s.RangeMode != "per-char" {
					t.Errorf("settings = %+v", s)
				}
				if s.Port != "/dev/ttyS0" {
					t.Errorf("Port = %q, want file value", s.Port)
				}
			},
		},
		{
			name: "changed flag overrides env",
			env:  map[string]string{"S4CTL_BAUD": "9600"},
			args: []string{"--baud", "38400", "--port", "/dev/ttyUSB1"},
			check: func(t *testing.T, s Settings) {
				if s.Baud != 38400 || s.Port != "/dev/ttyUSB1" {
					t.Errorf("settings = %+v", s)
				}
			},
		},
		{
			name: "unchanged flag default does not override",
			env:  map[string]string{"S4CTL_CHUNK_SIZE": "64"},
			check: func(t *testing.T, s Settings) {
				if s.ChunkSize != 64 {
					t.Errorf("ChunkSize = %d, want 64", s.ChunkSize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			s, err := LoadSettings(path, testFlags(t, tt.args...))
			if err != nil {
				t.Fatalf("LoadSettings: %v", err)
			}
			tt.check(t, s)
		})
	}
}

// A bare number is read as seconds from any source.
func TestLoadSettings_TimeoutSeconds(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		file string
		env  string
		args []string
		want time.Duration
	}{
		{name: "flag", args: []string{"--timeout", "0.3"}, want: 300 * time.Millisecond},
		{name: "flag integer", args: []string{"--timeout", "2"}, want: 2 * time.Second},
		{name: "flag duration", args: []string{"--timeout", "150ms"}, want: 150 * time.Millisecond},
		{name: "env", env: "1.5", want: 1500 * time.Millisecond},
		{name: "file", file: "timeout: 0.5\n", want: 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("S4CTL_TIMEOUT", tt.env)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			s, err := LoadSettings(path, testFlags(t, tt.args...))
			if err != nil {
				t.Fatalf("LoadSettings: %v", err)
			}
			if s.Timeout != tt.want {
				t.Errorf("Timeout = %v, want %v", s.Timeout, tt.want)
			}
		})
	}
}

func TestLoadSettings_DefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "s4ctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("url: ws://bridge.local/s4\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings("", nil)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.URL != "ws://bridge.local/s4" {
		t.Errorf("URL = %q", s.URL)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"baud", []string{"--baud", "1234"}},
		{"range mode", []string{"--range-mode", "sideways"}},
		{"chunk size", []string{"--chunk-size=0"}},
		{"timeout", []string{"--timeout=-1s"}},
		{"timeout seconds", []string{"--timeout=-0.5"}},
		{"timeout garbage", []string{"--timeout", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSettings("", testFlags(t, tt.args...)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("missing explicit config file should fail")
	}
}

func TestSettings_SessionOptions(t *testing.T) {
	s := DefaultSettings()
	s.RangeMode = "bulk"
	if got := len(s.SessionOptions()); got != 4 {
		t.Errorf("len(SessionOptions()) = %d, want 4", got)
	}
	if _, err := dataman.ParseRangeMode(s.RangeMode); err != nil {
		t.Error(err)
	}
}

// ============================================================
// Logging Tests
// ============================================================

func TestLogLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      string
	}{
		{0, "warn"},
		{1, "info"},
		{2, "debug"},
		{3, "trace"},
		{7, "trace"},
	}
	for _, tt := range tests {
		if got := logLevel(tt.verbosity).String(); got != tt.want {
			t.Errorf("logLevel(%d) = %s, want %s", tt.verbosity, got, tt.want)
		}
	}
}
