// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"auviz/cmd"
	"auviz/internal/audio"
	"auviz/internal/build"
	"auviz/internal/config"
	"auviz/internal/dsp"
	"auviz/internal/engine"
	applog "auviz/internal/log"
	"auviz/internal/transport"
	"auviz/internal/tui"
)

// main is the entry point for the parameter engine. The program flow is
// divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Initialize PortAudio
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the capture stream
//   - Run the frame loop, publishing snapshots to the attached sinks
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals and capture loss
//   - Stop the frame loop, capture, recording, and sinks in order
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the hardware callback (time-critical)
	// - One thread for the frame loop and I/O
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	// list carries no engine configuration; dispatch it before touching cfg.
	if opts.Command == cmd.CommandList {
		if err := audio.ListDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	cfg := opts.Config

	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	} else if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	switch opts.Command {
	case cmd.CommandDevices:
		name, ok, err := tui.PickDevice()
		if err != nil {
			applog.Fatalf("%v", err)
		}
		if !ok {
			return
		}
		cfg.Audio.Device = name
		cfg.Audio.Loopback = audio.IsLoopbackName(name)
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

// run wires the pipeline from the configuration and blocks until a signal
// arrives or the capture is lost.
func run(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	ring := audio.NewRing(cfg.Render.RingCapacity)

	var capture audio.Capture
	var deviceName string
	if cfg.Audio.Loopback {
		stream, err := audio.NewLoopbackStream(cfg, ring)
		if err != nil {
			return err
		}
		capture = stream
		deviceName = stream.DeviceName()
	} else {
		stream, err := audio.NewStream(cfg, ring)
		if err != nil {
			return err
		}
		capture = stream
		deviceName = stream.DeviceName()
	}

	spectral, err := dsp.NewSpectral(cfg.Audio.SampleRate, cfg.Analysis.WindowSize)
	if err != nil {
		return err
	}
	spectral.SetWindowFunc(cfg.Analysis.WindowFunc)
	spectral.SetBands(cfg.Analysis.Bass, cfg.Analysis.Mid, cfg.Analysis.Treble)

	sched := engine.New(cfg, capture, spectral)

	sinks := []transport.Sink{transport.NewLoggingSink()}
	if cfg.Transport.WebSocketEnabled {
		sinks = append(sinks, transport.NewWebSocketSink(cfg.Transport.WebSocketPort))
	}
	if cfg.Transport.UDPEnabled {
		udp, err := transport.NewUDPSink(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		sinks = append(sinks, udp)
	}
	for _, sink := range sinks {
		sched.AddSink(sink)
	}

	recorder := audio.NewRecorder()
	if cfg.Recording.Enabled {
		if err := recorder.Start(cfg.Recording.OutputFile, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer); err != nil {
			return err
		}
		sched.SetRecorder(recorder)
	}

	if err := sched.StartCapture(); err != nil {
		return err
	}
	applog.Infof("Capturing from %q at %.0f Hz", deviceName, cfg.Audio.SampleRate)

	sched.Start()

	var runErr error
	select {
	case <-done:
		applog.Infof("Shutting down")
	case err := <-sched.Fatal():
		runErr = err
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	sched.Stop()

	if err := capture.Stop(); err != nil {
		applog.Errorf("Error stopping capture: %v", err)
	}

	if recorder.Recording() {
		if err := recorder.Stop(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
		}
	}

	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			applog.Errorf("Error closing sink: %v", err)
		}
	}

	return runErr
}
