package datapath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	dataDir := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(dataDir, "escape")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		path      string
		want      string
		wantError bool
	}{
		{name: "relative file", path: "flight.csv", want: filepath.Join(dataDir, "flight.csv")},
		{name: "nested file", path: "logs/flight.csv", want: filepath.Join(dataDir, "logs", "flight.csv")},
		{name: "dot segments inside", path: "logs/../flight.csv", want: filepath.Join(dataDir, "flight.csv")},
		{name: "absolute passes through", path: filepath.Join(outside, "x.csv"), want: filepath.Join(outside, "x.csv")},
		{name: "parent traversal", path: "../flight.csv", wantError: true},
		{name: "symlink escape", path: "escape/flight.csv", wantError: true},
		{name: "empty", path: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.path, dataDir)
			if tt.wantError {
				if err == nil {
					t.Errorf("Resolve(%q) = %q, want error", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve_IndependentOfWorkingDirectory(t *testing.T) {
	dataDir := t.TempDir()
	first, err := Resolve("flight.csv", dataDir)
	if err != nil {
		t.Fatal(err)
	}

	t.Chdir(t.TempDir())

	second, err := Resolve("flight.csv", dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("resolution changed with working directory: %q vs %q", first, second)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := DefaultDataDir()
	if dir == "" {
		t.Fatal("expected non-empty data dir")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("DefaultDataDir() = %q is not a directory (err=%v)", dir, err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"flight_position", "flight_position"},
		{"sine wave/1", "sine_wave_1"},
		{"..hidden..", "hidden"},
		{"", "unknown"},
		{"***", "unknown"},
		{"a  b", "a_b"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
