// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"auviz/internal/build"
	"auviz/internal/config"
)

// Options is the parsed command line: the effective configuration plus the
// chosen subcommand ("" runs the engine).
type Options struct {
	Config  *config.Config
	Command string
}

// Subcommand names understood by main.
const (
	CommandRun     = ""
	CommandList    = "list"
	CommandDevices = "devices"
)

// ParseArgs builds the cobra command tree, executes it against os.Args, and
// returns the effective configuration. Precedence is flags over environment
// over file over defaults; only flags the user actually set override the
// file.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{Command: CommandRun}

	var configPath string

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio-reactive parameter engine",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Pick the capture device interactively",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandDevices
		},
	}
	rootCmd.AddCommand(devicesCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")

	// Audio Device Configuration
	flags.StringP("device", "d", "", "Input device name substring. Use 'list' to see available devices.")
	flags.Bool("loopback", false, "Capture from a loopback/monitor source instead of the microphone")
	flags.IntP("channels", "c", config.DefaultChannels, "Number of channels to capture (1=mono, 2=stereo)")
	flags.Float64P("sample-rate", "s", config.DefaultSampleRate, "Sample rate, measured in Hertz (Hz)")
	flags.IntP("frames-per-buffer", "b", config.DefaultFramesPerBuffer, "The number of frames per buffer (affects latency)")
	flags.BoolP("low-latency", "l", false, "Use low latency mode for real-time processing")

	// Frame loop
	flags.Int("fps", config.DefaultFPS, "Target frame rate for parameter emission")

	// Recording Configuration
	flags.BoolP("record", "r", false, "Record captured audio to a WAV file")
	flags.StringP("output", "o", "", "Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Transports
	flags.String("ws-port", "", "Serve parameter snapshots over WebSocket on this port")
	flags.String("udp-target", "", "Send parameter snapshots to this UDP address")

	// Debug Configuration
	flags.BoolP("verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	// Device enumeration needs no engine configuration; a broken config
	// file must not block it.
	if opts.Command == CommandList {
		return opts, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("device") {
		cfg.Audio.Device, _ = flags.GetString("device")
	}
	if flags.Changed("loopback") {
		cfg.Audio.Loopback, _ = flags.GetBool("loopback")
	}
	if flags.Changed("channels") {
		cfg.Audio.Channels, _ = flags.GetInt("channels")
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate, _ = flags.GetFloat64("sample-rate")
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer, _ = flags.GetInt("frames-per-buffer")
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency, _ = flags.GetBool("low-latency")
	}
	if flags.Changed("fps") {
		cfg.Render.FPS, _ = flags.GetInt("fps")
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled, _ = flags.GetBool("record")
	}
	if flags.Changed("output") {
		cfg.Recording.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("ws-port") {
		cfg.Transport.WebSocketPort, _ = flags.GetString("ws-port")
		cfg.Transport.WebSocketEnabled = cfg.Transport.WebSocketPort != ""
	}
	if flags.Changed("udp-target") {
		cfg.Transport.UDPTargetAddress, _ = flags.GetString("udp-target")
		cfg.Transport.UDPEnabled = cfg.Transport.UDPTargetAddress != ""
	}
	if flags.Changed("verbose") {
		cfg.Debug, _ = flags.GetBool("verbose")
	}

	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts.Config = cfg
	return opts, nil
}
