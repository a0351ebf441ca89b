// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
	"github.com/Thermoquad/s4ctl/pkg/s4sim"
	"github.com/Thermoquad/s4ctl/pkg/trace"
)

// ============================================================
// Argument Parsing Tests
// ============================================================

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0", 0, false},
		{"7FFFF", 0x7FFFF, false},
		{"0x1000", 0x1000, false},
		{"0Xff", 0xFF, false},
		{"FFFFF", 0xFFFFF, false},
		{"100000", 0, true},
		{"xyz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseAddress(%q) = 0x%X, want 0x%X", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	def := dataman.AddressRange{Start: 0, End: 0x7FFFF}

	r, err := parseRange("", "", def)
	if err != nil || r != def {
		t.Errorf("parseRange defaults = %v, %v", r, err)
	}
	r, err = parseRange("100", "1FF", def)
	if err != nil || r != (dataman.AddressRange{Start: 0x100, End: 0x1FF}) {
		t.Errorf("parseRange = %v, %v", r, err)
	}
	if _, err := parseRange("200", "100", def); err == nil {
		t.Error("start after end should fail")
	}
}

func TestParseSetupChanges(t *testing.T) {
	changes, err := parseSetupChanges([]string{"high-tone=00", "SHUTDOWN_TIME=1e", "Busy Tone=0x50"})
	if err != nil {
		t.Fatalf("parseSetupChanges: %v", err)
	}
	want := map[string]byte{
		dataman.ParamHighTone:     0x00,
		dataman.ParamShutdownTime: 0x1E,
		dataman.ParamBusyTone:     0x50,
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v", changes)
	}
	for k, v := range want {
		if changes[k] != v {
			t.Errorf("changes[%q] = %02X, want %02X", k, changes[k], v)
		}
	}

	for _, bad := range []string{"high-tone", "volume=10", "low-tone=100"} {
		if _, err := parseSetupChanges([]string{bad}); err == nil {
			t.Errorf("parseSetupChanges(%q) should fail", bad)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"failure", errors.New("boom"), ExitFailure},
		{"protocol", &dataman.TimeoutError{What: "SUM"}, ExitFailure},
		{"connection", connectionError(errors.New("no port")), ExitConnection},
		{"wrapped connection", fmt.Errorf("load: %w", connectionError(dataman.ErrSyncFailed)), ExitConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ============================================================
// Command Tests
// ============================================================

func simSession(t *testing.T, dev *s4sim.Device) *dataman.Session {
	t.Helper()
	s, err := dataman.Connect(context.Background(), dev, dataman.WithReadTimeout(30*time.Millisecond))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func TestLoadImage(t *testing.T) {
	defer func(start string, verify, emulate bool) {
		loadStart, loadVerify, loadEmulate = start, verify, emulate
	}(loadStart, loadVerify, loadEmulate)

	dev := s4sim.New()
	s := simSession(t, dev)

	loadStart, loadVerify, loadEmulate = "1000", true, true
	data := bytes.Repeat([]byte{0x12, 0x34, 0x56, 0x78}, 64)

	lines, err := loadImage(context.Background(), s, data, false)
	if err != nil {
		t.Fatalf("loadImage: %v", err)
	}
	out := strings.Join(lines, "\n")
	for _, want := range []string{"27C040", "Loaded 256 bytes to 0x01000-0x010FF", "(verified)", "Emulating"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if got := dev.Memory(dataman.AddressRange{Start: 0x1000, End: 0x10FF}); !bytes.Equal(got, data) {
		t.Error("device memory does not hold the image")
	}
	if !dev.Emulating() {
		t.Error("device is not emulating")
	}
}

// A wrong sized image is rejected before the tones are touched.
func TestLoadImage_WrongLength(t *testing.T) {
	defer func(start string, mute bool) {
		loadStart, loadMute = start, mute
	}(loadStart, loadMute)
	loadStart, loadMute = "", true

	dev := s4sim.New()
	s := simSession(t, dev)
	_, err := loadImage(context.Background(), s, make([]byte, 100), true)
	var lenErr *dataman.ImageLengthError
	if !errors.As(err, &lenErr) {
		t.Fatalf("error = %v, want ImageLengthError", err)
	}
	if ExitCode(err) != ExitFailure {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitFailure)
	}
	for _, c := range dev.Commands() {
		if c == dataman.CmdAdvancedSetup || c == dataman.CmdReceive {
			t.Errorf("command %q sent before the length check", c)
		}
	}
	if v, ok := dev.Setup(dataman.ParamHighTone); ok && v == 0 {
		t.Error("high tone was muted for a rejected image")
	}
}

// An image that runs past the address space from --start is rejected the
// same way.
func TestLoadImage_StartOverflow(t *testing.T) {
	defer func(start string, mute bool) {
		loadStart, loadMute = start, mute
	}(loadStart, loadMute)
	loadStart, loadMute = "FFF00", true

	dev := s4sim.New()
	s := simSession(t, dev)
	if _, err := loadImage(context.Background(), s, make([]byte, 0x200), true); err == nil {
		t.Fatal("expected an error for an image past the address space")
	}
	for _, c := range dev.Commands() {
		if c == dataman.CmdAdvancedSetup {
			t.Error("AS sent before the range check")
		}
	}
}

func TestLoadImage_Mute(t *testing.T) {
	defer func(start string, mute, verify, emulate bool) {
		loadStart, loadMute, loadVerify, loadEmulate = start, mute, verify, emulate
	}(loadStart, loadMute, loadVerify, loadEmulate)

	dev := s4sim.New()
	s := simSession(t, dev)
	loadStart, loadMute, loadVerify, loadEmulate = "0", true, false, false

	if _, err := loadImage(context.Background(), s, []byte{1, 2, 3, 4}, true); err != nil {
		t.Fatalf("loadImage: %v", err)
	}
	for _, p := range []string{dataman.ParamHighTone, dataman.ParamLowTone, dataman.ParamBusyTone} {
		if v, ok := dev.Setup(p); !ok || v != 0 {
			t.Errorf("%s = %02X, %v; want 00", p, v, ok)
		}
	}
}

func TestPrintTrace(t *testing.T) {
	var buf bytes.Buffer
	rec, err := trace.NewRecorder(s4sim.New(), &buf, "sim", 115200)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if _, err := dataman.Connect(context.Background(), rec, dataman.WithReadTimeout(30*time.Millisecond)); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var out bytes.Buffer
	if err := printTrace(bytes.NewReader(buf.Bytes()), &out, false); err != nil {
		t.Fatalf("printTrace: %v", err)
	}
	for _, want := range []string{"on sim at 115200 baud", ">>>>", "; PRETEST", "Commands:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := printTrace(bytes.NewReader(buf.Bytes()), &out, true); err != nil {
		t.Fatalf("printTrace: %v", err)
	}
	if strings.Contains(out.String(), ">>>>") {
		t.Error("stats only output should not list records")
	}
}

// ============================================================
// WebSocket Connection Tests
// ============================================================

func TestWebSocketConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Text frames are not serial data and must be skipped
			conn.WriteMessage(websocket.TextMessage, []byte("status"))
			conn.WriteMessage(mt, append([]byte("echo:"), data...))
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := OpenWebSocketConnection(url, "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	if err := conn.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	// Nothing sent yet: Read times out with no data and no error
	buf := make([]byte, 4)
	n, err := conn.Read(buf)
	if n != 0 || err != nil {
		t.Fatalf("idle Read = %d, %v; want 0, nil", n, err)
	}

	if _, err := conn.Write([]byte("PR")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := conn.SetReadTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for len(got) < len("echo:PR") {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			t.Fatal("Read timed out")
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "echo:PR" {
		t.Errorf("read %q, want %q", got, "echo:PR")
	}
}

func TestOpenWebSocketConnection_BadScheme(t *testing.T) {
	if _, err := OpenWebSocketConnection("http://example.com", "", "", false); err == nil {
		t.Error("http scheme should be rejected")
	}
}
