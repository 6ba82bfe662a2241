// Package config handles turntable configuration loading and management.
package config

import (
	"fmt"
	"time"
)

// Config holds all pipeline settings.
type Config struct {
	Renderer  RendererConfig  `yaml:"renderer"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Output    OutputConfig    `yaml:"output"`
	Batch     BatchConfig     `yaml:"batch"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RendererConfig selects and bounds the external renderer.
type RendererConfig struct {
	Backend      string        `yaml:"backend"`       // "blender" or "software"
	BlenderPath  string        `yaml:"blender_path"`  // empty = search PATH and the macOS app bundle
	BatchTimeout time.Duration `yaml:"batch_timeout"` // whole orbit capture
	FrameTimeout time.Duration `yaml:"frame_timeout"` // single-frame renders (isometric stills)
	Samples      int           `yaml:"samples"`       // 0 = renderer default
	Supersample  int           `yaml:"supersample"`   // software backend only
}

// EncoderConfig holds loop encoder settings.
type EncoderConfig struct {
	FrameDelay     time.Duration `yaml:"frame_delay"`
	AlphaThreshold uint8         `yaml:"alpha_threshold"`
	MaxColors      int           `yaml:"max_colors"`
	Backdrop       string        `yaml:"backdrop"` // hex RGB the frames are flattened onto
}

// OutputConfig holds output locations.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	KeepFrames bool   `yaml:"keep_frames"`
}

// BatchConfig holds cross-asset parallelism settings.
type BatchConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// ProvidersConfig holds external generator settings. Credentials come from
// the environment (GEMINI_API_KEY, FAL_KEY), never from this file.
type ProvidersConfig struct {
	GeminiModel     string        `yaml:"gemini_model"`
	BackgroundModel string        `yaml:"background_model"`
	MeshModel       string        `yaml:"mesh_model"`
	FalBaseURL      string        `yaml:"fal_base_url"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			Backend:      "blender",
			BatchTimeout: 600 * time.Second,
			FrameTimeout: 300 * time.Second,
			Supersample:  2,
		},
		Encoder: EncoderConfig{
			FrameDelay:     50 * time.Millisecond,
			AlphaThreshold: 128,
			MaxColors:      255,
			Backdrop:       "#000000",
		},
		Output: OutputConfig{
			Dir:        "./output",
			KeepFrames: false,
		},
		Batch: BatchConfig{
			Parallelism: 2,
		},
		Providers: ProvidersConfig{
			GeminiModel:     "gemini-3-pro-image-preview",
			BackgroundModel: "fal-ai/birefnet",
			MeshModel:       "tripo3d/tripo/v2.5/image-to-3d",
			FalBaseURL:      "https://queue.fal.run",
			PollInterval:    2 * time.Second,
			RequestTimeout:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that would otherwise fail deep inside a render.
func (c *Config) Validate() error {
	switch c.Renderer.Backend {
	case "blender", "software":
	default:
		return fmt.Errorf("renderer.backend: unknown backend %q", c.Renderer.Backend)
	}
	if c.Renderer.BatchTimeout <= 0 {
		return fmt.Errorf("renderer.batch_timeout must be positive, got %v", c.Renderer.BatchTimeout)
	}
	if c.Renderer.FrameTimeout <= 0 {
		return fmt.Errorf("renderer.frame_timeout must be positive, got %v", c.Renderer.FrameTimeout)
	}
	if c.Encoder.MaxColors < 1 || c.Encoder.MaxColors > 255 {
		return fmt.Errorf("encoder.max_colors must be in [1,255], got %d", c.Encoder.MaxColors)
	}
	if c.Encoder.FrameDelay < 10*time.Millisecond {
		return fmt.Errorf("encoder.frame_delay must be at least 10ms, got %v", c.Encoder.FrameDelay)
	}
	if c.Batch.Parallelism < 1 {
		return fmt.Errorf("batch.parallelism must be at least 1, got %d", c.Batch.Parallelism)
	}
	return nil
}
