package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Device describes one host audio device as reported by the backend.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	Loopback          bool
}

// paDevicesFunc is a seam for tests; production code always hits PortAudio.
var paDevicesFunc = portaudio.Devices

// loopbackHints are the substrings platforms tend to put in the names of
// monitor/loopback capture sources.
var loopbackHints = []string{"monitor", "stereo mix", "loopback", "blackhole", "soundflower", "what u hear"}

// IsLoopbackName reports whether a device name looks like a loopback or
// monitor source. Heuristic only; platforms do not flag this explicitly.
func IsLoopbackName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range loopbackHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// HostDevices returns all devices reported by the backend.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Loopback:          IsLoopbackName(info.Name),
		}
	}
	return devices, nil
}

// matchInput returns the index of the first input-capable device whose name
// contains the given substring (case-insensitive), or -1.
func matchInput(devices []Device, substring string) int {
	needle := strings.ToLower(substring)
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d.ID
		}
	}
	return -1
}

// InputDevice resolves the capture device for the given selection. An empty
// name means the system default input (or, when loopback is set, the first
// loopback-looking source). A non-empty name is matched by substring.
func InputDevice(name string, loopback bool) (*portaudio.DeviceInfo, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:               i,
			Name:             info.Name,
			MaxInputChannels: info.MaxInputChannels,
		}
	}

	if name == "" && loopback {
		for _, d := range devices {
			if d.MaxInputChannels > 0 && IsLoopbackName(d.Name) {
				return infos[d.ID], nil
			}
		}
		return nil, fmt.Errorf("%w: no loopback-capable source found", ErrDeviceUnavailable)
	}

	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return device, nil
	}

	if id := matchInput(devices, name); id >= 0 {
		return infos[id], nil
	}
	return nil, fmt.Errorf("%w: no input device matching %q", ErrDeviceUnavailable, name)
}

// ListDevices prints information about all available audio devices,
// flagging loopback-looking sources.
func ListDevices() error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")

	for _, device := range devices {
		deviceType := ""
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			deviceType = "Input/Output"
		case device.MaxInputChannels > 0:
			deviceType = "Input"
		case device.MaxOutputChannels > 0:
			deviceType = "Output"
		}
		if device.Loopback {
			deviceType += ", loopback"
		}

		fmt.Printf("[%d] %s (%s)\n", device.ID, device.Name, deviceType)
		fmt.Printf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n\n", device.DefaultSampleRate)
	}

	return nil
}
