package config

// Boundaries and defaults for the capture-to-parameter pipeline.
const (
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinWindowSize = 256    // Minimum FFT window length
	MaxWindowSize = 16384  // Maximum FFT window length

	DefaultSampleRate      = 44100 // CD-quality audio
	DefaultChannels        = 2     // Stereo capture, downmixed to mono
	DefaultFramesPerBuffer = 1024  // Hardware chunk size
	DefaultWindowSize      = 2048  // FFT window length (power of 2)
	DefaultFPS             = 60    // Target render cadence
	DefaultRingCapacity    = 8     // Chunk slots between callback and frame loop
	DefaultSquelch         = 0.015 // Mic noise floor (RMS, full scale 1.0)
)

// Band is an inclusive-exclusive frequency range in Hz.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Config is the main application configuration, loaded from YAML with
// optional env and flag overrides.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Verbose diagnostics.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Smoothing SmoothingConfig `yaml:"smoothing"` // Per-parameter filter settings.
	Render    RenderConfig    `yaml:"render"`    // Frame loop settings.
	Recording RecordingConfig `yaml:"recording"` // WAV capture tap.
	Transport TransportConfig `yaml:"transport"` // Snapshot sinks.
}

// AudioConfig holds settings for the capture device.
type AudioConfig struct {
	Device          string  `yaml:"device"`            // Substring of the device name; empty for the default input.
	Loopback        bool    `yaml:"loopback"`          // Prefer a loopback/monitor source and skip the mic squelch.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	Channels        int     `yaml:"channels"`          // Channels requested from the device; downmixed to mono.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per hardware callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low-latency setting.
}

// AnalysisConfig holds spectral analysis settings.
type AnalysisConfig struct {
	WindowSize int        `yaml:"window_size"` // FFT length, power of 2.
	WindowFunc string     `yaml:"window_func"` // "hann", "hamming", "blackman", "rect".
	Bass       Band       `yaml:"bass"`
	Mid        Band       `yaml:"mid"`
	Treble     Band       `yaml:"treble"`
	Squelch    float64    `yaml:"squelch"` // Mic amplitude floor; 0 disables.
	Beat       BeatConfig `yaml:"beat"`
}

// BeatConfig holds onset-detector settings.
type BeatConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float64 `yaml:"threshold"`   // Minimum RMS for a candidate onset.
	MinRatio   float64 `yaml:"min_ratio"`   // Required energy jump over the previous frame.
	CooldownMs int     `yaml:"cooldown_ms"` // Refractory period between onsets.
}

// SmoothingConfig selects the per-parameter filter.
type SmoothingConfig struct {
	Mode     string  `yaml:"mode"`      // "ema", "window", or "lowpass".
	Alpha    float64 `yaml:"alpha"`     // EMA coefficient; higher is slower.
	Window   int     `yaml:"window"`    // Moving-average length.
	CutoffHz float64 `yaml:"cutoff_hz"` // One-pole low-pass cutoff.
}

// RenderConfig holds frame loop settings.
type RenderConfig struct {
	FPS          int `yaml:"fps"`           // Target cadence.
	RingCapacity int `yaml:"ring_capacity"` // Chunk slots in the ring buffer.
}

// RecordingConfig holds settings for the optional WAV capture tap.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Empty for a timestamped name.
}

// TransportConfig holds settings for the optional snapshot sinks.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketPort    string `yaml:"websocket_port"`
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
}
