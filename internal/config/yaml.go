// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"auviz/pkg/bitint"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Device:          "",
			Loopback:        false,
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      false,
		},
		Analysis: AnalysisConfig{
			WindowSize: DefaultWindowSize,
			WindowFunc: "hann",
			Bass:       Band{Low: 20, High: 250},
			Mid:        Band{Low: 250, High: 4000},
			Treble:     Band{Low: 4000, High: 20000},
			Squelch:    DefaultSquelch,
			Beat: BeatConfig{
				Enabled:    true,
				Threshold:  0.05,
				MinRatio:   1.5,
				CooldownMs: 150,
			},
		},
		Smoothing: SmoothingConfig{
			Mode:     "ema",
			Alpha:    0.65,
			Window:   8,
			CutoffHz: 12,
		},
		Render: RenderConfig{
			FPS:          DefaultFPS,
			RingCapacity: DefaultRingCapacity,
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketPort:    "8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
		},
	}
}

// Load reads configuration from a YAML file at path. An empty path searches
// default locations ("auviz.yaml", "config.yaml"); if no file exists the
// built-in defaults are used. Env overrides apply after the file, and the
// final result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"auviz.yaml", "config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration against the pipeline's hard limits.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("audio.channels must be >= 1, got %d", c.Audio.Channels)
	}
	if c.Audio.FramesPerBuffer < 1 {
		return fmt.Errorf("audio.frames_per_buffer must be >= 1, got %d", c.Audio.FramesPerBuffer)
	}

	ws := c.Analysis.WindowSize
	if !bitint.IsPowerOfTwo(ws) {
		return fmt.Errorf("analysis.window_size must be a power of 2, got %d", ws)
	}
	if ws < MinWindowSize || ws > MaxWindowSize {
		return fmt.Errorf("analysis.window_size %d outside [%d, %d]", ws, MinWindowSize, MaxWindowSize)
	}

	nyquist := c.Audio.SampleRate / 2
	for _, b := range []struct {
		name string
		band Band
	}{
		{"bass", c.Analysis.Bass},
		{"mid", c.Analysis.Mid},
		{"treble", c.Analysis.Treble},
	} {
		if b.band.Low < 0 || b.band.Low >= b.band.High {
			return fmt.Errorf("analysis.%s range [%.0f, %.0f) is invalid", b.name, b.band.Low, b.band.High)
		}
		if b.band.Low > nyquist {
			return fmt.Errorf("analysis.%s starts above the Nyquist frequency %.0f Hz", b.name, nyquist)
		}
		if b.band.High > nyquist {
			return fmt.Errorf("analysis.%s ends above the Nyquist frequency %.0f Hz", b.name, nyquist)
		}
	}
	if c.Analysis.Squelch < 0 {
		return fmt.Errorf("analysis.squelch must be >= 0, got %f", c.Analysis.Squelch)
	}

	switch c.Smoothing.Mode {
	case "ema":
		if c.Smoothing.Alpha < 0 || c.Smoothing.Alpha > 1 {
			return fmt.Errorf("smoothing.alpha must be in [0, 1], got %f", c.Smoothing.Alpha)
		}
	case "window":
		if c.Smoothing.Window < 1 {
			return fmt.Errorf("smoothing.window must be >= 1, got %d", c.Smoothing.Window)
		}
	case "lowpass":
		if c.Smoothing.CutoffHz <= 0 {
			return fmt.Errorf("smoothing.cutoff_hz must be positive, got %f", c.Smoothing.CutoffHz)
		}
	default:
		return fmt.Errorf("smoothing.mode must be one of ema, window, lowpass; got %q", c.Smoothing.Mode)
	}

	if c.Render.FPS < 1 {
		return fmt.Errorf("render.fps must be >= 1, got %d", c.Render.FPS)
	}
	if c.Render.RingCapacity < 1 {
		return fmt.Errorf("render.ring_capacity must be >= 1, got %d", c.Render.RingCapacity)
	}
	return nil
}

// applyEnvOverrides applies AUVIZ_* environment variables on top of whatever
// the file provided.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("AUVIZ_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("AUVIZ_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("AUVIZ_DEVICE"); ok {
		c.Audio.Device = val
	}
	if val, ok := os.LookupEnv("AUVIZ_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = fVal
		}
	}
	if val, ok := os.LookupEnv("AUVIZ_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("AUVIZ_UDP_TARGET"); ok {
		c.Transport.UDPTargetAddress = val
	}
}
