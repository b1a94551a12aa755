package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davrell/pktwire/internal/protocol/packet"
	"github.com/davrell/pktwire/internal/store"
)

func TestMergeSettingsAppliesOnlySetFlags(t *testing.T) {
	base := settings{
		Host:    "records.internal",
		Service: "53467",
		Unix:    "/run/pktwired.sock",
		Timeout: 5 * time.Second,
	}
	over := flagOverrides{
		host:    "",
		service: "6100",
		timeout: 0,
		set:     map[string]bool{"host": true, "service": true},
	}

	got := mergeSettings(base, over)
	if got.Host != "" {
		t.Fatalf("set -host should override even when empty, got %q", got.Host)
	}
	if got.Service != "6100" {
		t.Fatalf("unexpected service: %q", got.Service)
	}
	if got.Unix != base.Unix {
		t.Fatalf("unix should keep config value, got %q", got.Unix)
	}
	if got.Timeout != base.Timeout {
		t.Fatalf("timeout should keep config value, got %v", got.Timeout)
	}
}

func TestMergeSettingsNoFlagsKeepsBase(t *testing.T) {
	base := settings{Host: "127.0.0.1", Service: "53467", Timeout: time.Second}
	got := mergeSettings(base, flagOverrides{set: map[string]bool{}})
	if got != base {
		t.Fatalf("expected base settings back, got %+v", got)
	}
}

func TestPayloadBytesPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	want := []byte{0x00, 0x01, 0xff}
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatalf("write payload fixture: %v", err)
	}

	got, err := payloadBytes([]string{"ignored"}, path)
	if err != nil {
		t.Fatalf("payload from file: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("unexpected payload: % x", got)
	}
}

func TestPayloadBytesJoinsArgs(t *testing.T) {
	got, err := payloadBytes([]string{"hello", "wire"}, "")
	if err != nil {
		t.Fatalf("payload from args: %v", err)
	}
	if string(got) != "hello wire" {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestPayloadBytesEmpty(t *testing.T) {
	got, err := payloadBytes(nil, "")
	if err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %q", got)
	}
}

func TestPayloadBytesMissingFile(t *testing.T) {
	if _, err := payloadBytes(nil, filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatalf("expected error for missing payload file")
	}
}

func TestDescribeReplyNamesRecordTags(t *testing.T) {
	cases := map[uint32]string{
		store.TypeSuccess:  "success (type=99), 3 bytes",
		store.TypeFailure:  "failure (type=100), 3 bytes",
		store.TypeInvalid:  "invalid (type=101), 3 bytes",
		store.TypeNotFound: "not_found (type=102), 3 bytes",
		7:                  "type=7, 3 bytes",
	}
	for tag, want := range cases {
		got := describeReply(packet.New(tag, []byte("abc")))
		if got != want {
			t.Fatalf("tag %d: got %q want %q", tag, got, want)
		}
	}
}

func TestPrintable(t *testing.T) {
	if !printable([]byte("plain text\twith\nlines")) {
		t.Fatalf("expected plain text to be printable")
	}
	if printable([]byte{0x00, 0x41}) {
		t.Fatalf("expected NUL byte to be unprintable")
	}
	if printable([]byte{0xff, 0xfe}) {
		t.Fatalf("expected invalid utf-8 to be unprintable")
	}
}

func TestLoadSettingsFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	body := `
host = "records.internal"
service = "6100"
unix_socket = "/run/pktwired.sock"
timeout = "250ms"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	got, err := loadSettings(path)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	want := settings{
		Host:    "records.internal",
		Service: "6100",
		Unix:    "/run/pktwired.sock",
		Timeout: 250 * time.Millisecond,
	}
	if got != want {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestLoadSettingsDefaultsWithoutFile(t *testing.T) {
	got, err := loadSettings("")
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if got.Host != "127.0.0.1" || got.Service != "53467" {
		t.Fatalf("unexpected default target: %+v", got)
	}
	if got.Timeout != 5*time.Second {
		t.Fatalf("unexpected default timeout: %v", got.Timeout)
	}
}
