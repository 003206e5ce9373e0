package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"symtrace/internal/telemetry"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[validate]
jobs = 4
format = "json"

[telemetry]
level = "detail"
heartbeat = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Validate.Jobs = 4
	want.Validate.Format = "json"
	want.Telemetry.Level = "detail"
	want.Telemetry.Heartbeat = "2s"
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("cfg = %+v\nwant %+v", cfg, want)
	}

	tc, err := cfg.Telemetry.Tracer()
	if err != nil {
		t.Fatalf("Tracer: %v", err)
	}
	if tc.Level != telemetry.LevelDetail || tc.Heartbeat != 2*time.Second || tc.RingSize != 4096 {
		t.Fatalf("telemetry config = %+v", tc)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[validate\n", "failed to parse TOML"},
		{"unknown key", "[validate]\nthreads = 3\n", "unknown keys: validate.threads"},
		{"negative jobs", "[validate]\njobs = -1\n", "jobs must not be negative"},
		{"format", "[validate]\nformat = \"xml\"\n", "[validate].format"},
		{"ui", "[validate]\nui = \"maybe\"\n", "[validate].ui"},
		{"allocator", "[synth]\nallocator = \"random\"\n", "[synth].allocator"},
		{"steps", "[synth]\nsteps = 0\n", "steps must be positive"},
		{"level", "[telemetry]\nlevel = \"loud\"\n", "invalid telemetry level"},
		{"heartbeat", "[telemetry]\nheartbeat = \"soon\"\n", "invalid heartbeat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[synth]\nseed = 42\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if path != filepath.Join(root, FileName) || cfg.Synth.Seed != 42 {
		t.Fatalf("path=%s cfg=%+v", path, cfg.Synth)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDefault(dir, false)
	if err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := WriteDefault(dir, false); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, err := WriteDefault(dir, true); err != nil {
		t.Fatalf("forced WriteDefault: %v", err)
	}
}
