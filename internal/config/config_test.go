package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Renderer defaults
	if cfg.Renderer.Backend != "blender" {
		t.Errorf("expected backend blender, got %s", cfg.Renderer.Backend)
	}
	if cfg.Renderer.BatchTimeout != 600*time.Second {
		t.Errorf("expected batch timeout 600s, got %v", cfg.Renderer.BatchTimeout)
	}
	if cfg.Renderer.FrameTimeout != 300*time.Second {
		t.Errorf("expected frame timeout 300s, got %v", cfg.Renderer.FrameTimeout)
	}

	// Encoder defaults
	if cfg.Encoder.FrameDelay != 50*time.Millisecond {
		t.Errorf("expected frame delay 50ms, got %v", cfg.Encoder.FrameDelay)
	}
	if cfg.Encoder.AlphaThreshold != 128 {
		t.Errorf("expected alpha threshold 128, got %d", cfg.Encoder.AlphaThreshold)
	}
	if cfg.Encoder.MaxColors != 255 {
		t.Errorf("expected 255 colors, got %d", cfg.Encoder.MaxColors)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "turntable.yaml")

	yamlContent := `
renderer:
  backend: software
  blender_path: /opt/blender/blender
  batch_timeout: 120s
  supersample: 3

encoder:
  frame_delay: 80ms
  max_colors: 128
  backdrop: "#101010"

output:
  dir: ./assets
  keep_frames: true

batch:
  parallelism: 4

logging:
  level: "debug"
  log_file: "turntable.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Renderer.Backend != "software" {
		t.Errorf("expected backend software, got %s", cfg.Renderer.Backend)
	}
	if cfg.Renderer.BlenderPath != "/opt/blender/blender" {
		t.Errorf("expected blender path, got %s", cfg.Renderer.BlenderPath)
	}
	if cfg.Renderer.BatchTimeout != 120*time.Second {
		t.Errorf("expected batch timeout 120s, got %v", cfg.Renderer.BatchTimeout)
	}
	// Unset keys keep their defaults
	if cfg.Renderer.FrameTimeout != 300*time.Second {
		t.Errorf("expected default frame timeout, got %v", cfg.Renderer.FrameTimeout)
	}
	if cfg.Encoder.FrameDelay != 80*time.Millisecond {
		t.Errorf("expected frame delay 80ms, got %v", cfg.Encoder.FrameDelay)
	}
	if cfg.Encoder.MaxColors != 128 {
		t.Errorf("expected 128 colors, got %d", cfg.Encoder.MaxColors)
	}
	if !cfg.Output.KeepFrames {
		t.Error("expected keep_frames to be true")
	}
	if cfg.Batch.Parallelism != 4 {
		t.Errorf("expected parallelism 4, got %d", cfg.Batch.Parallelism)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
renderer:
  batch_timeout: not a duration
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/turntable.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(FileName, []byte("batch:\n  parallelism: 3\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find turntable.yaml in current directory")
	}
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name   string
		o      Overrides
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			o:    Overrides{Debug: true},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "backend flag",
			o:    Overrides{Backend: "software"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Renderer.Backend != "software" {
					t.Errorf("expected backend software, got %s", cfg.Renderer.Backend)
				}
			},
		},
		{
			name: "output and parallelism flags",
			o:    Overrides{OutputDir: "/tmp/out", Parallelism: 8},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Output.Dir != "/tmp/out" {
					t.Errorf("expected output dir /tmp/out, got %s", cfg.Output.Dir)
				}
				if cfg.Batch.Parallelism != 8 {
					t.Errorf("expected parallelism 8, got %d", cfg.Batch.Parallelism)
				}
			},
		},
		{
			name: "zero overrides keep defaults",
			o:    Overrides{},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Renderer.Backend != "blender" || cfg.Batch.Parallelism != 2 {
					t.Errorf("zero overrides changed config: %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			applyOverrides(cfg, tt.o)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "turntable.yaml")

	yamlContent := `
renderer:
  backend: software
batch:
  parallelism: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, Overrides{Parallelism: 6})
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Parallelism comes from the override, backend from the file
	if cfg.Batch.Parallelism != 6 {
		t.Errorf("expected parallelism 6 from override, got %d", cfg.Batch.Parallelism)
	}
	if cfg.Renderer.Backend != "software" {
		t.Errorf("expected backend software from file, got %s", cfg.Renderer.Backend)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "turntable.yaml")
	if err := os.WriteFile(configPath, []byte("encoder:\n  max_colors: 300\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath, Overrides{}); err == nil {
		t.Error("expected validation error for max_colors 300")
	}
	if _, err := Load(configPath, Overrides{Backend: "povray"}); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "turntable.yaml")

	cfg := Default()
	cfg.Encoder.FrameDelay = 70 * time.Millisecond
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if loaded.Encoder.FrameDelay != 70*time.Millisecond {
		t.Errorf("expected frame delay 70ms after round trip, got %v", loaded.Encoder.FrameDelay)
	}
}

func TestSaveToLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := Default().SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Errorf("expected only %s, got %v", FileName, entries)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# turntable configuration\n") {
		t.Errorf("missing header: %q", data[:40])
	}
	if !strings.Contains(string(data), "backend: blender") {
		t.Errorf("expected renderer backend in saved config:\n%s", data)
	}
}
