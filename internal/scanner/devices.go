package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Facing values reported by a capture device.
const (
	FacingEnvironment = "environment"
	FacingUser        = "user"
	FacingUnknown     = "unknown"
)

type Device struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Facing string `json:"facing"`
}

// DeviceManager enumerates the capture devices visible to this host.
type DeviceManager interface {
	Enumerate(ctx context.Context) ([]Device, error)
}

// videoDeviceManager lists V4L2 devices under /dev. Labels come from sysfs
// when readable.
type videoDeviceManager struct {
	devDir string
	sysDir string
}

func NewVideoDeviceManager() DeviceManager {
	return &videoDeviceManager{devDir: "/dev", sysDir: "/sys/class/video4linux"}
}

func (m *videoDeviceManager) Enumerate(ctx context.Context) ([]Device, error) {
	matches, err := filepath.Glob(filepath.Join(m.devDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("listing video devices: %w", err)
	}
	sort.Strings(matches)

	var devices []Device
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := m.readLabel(filepath.Base(path))
		devices = append(devices, Device{
			ID:     path,
			Label:  label,
			Facing: facingFromLabel(label),
		})
	}
	return devices, nil
}

func (m *videoDeviceManager) readLabel(name string) string {
	b, err := os.ReadFile(filepath.Join(m.sysDir, name, "name"))
	if err != nil {
		return name
	}
	return strings.TrimSpace(string(b))
}

func facingFromLabel(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "rear") || strings.Contains(l, "back") || strings.Contains(l, "environment"):
		return FacingEnvironment
	case strings.Contains(l, "front") || strings.Contains(l, "user"):
		return FacingUser
	default:
		return FacingUnknown
	}
}

// PickDevice chooses the device to scan with: an environment-facing camera
// when present (wristbands are scanned at arm's length), otherwise the first
// enumerated device.
func PickDevice(devices []Device) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrDeviceUnavailable
	}
	for _, d := range devices {
		if d.Facing == FacingEnvironment {
			return d, nil
		}
	}
	return devices[0], nil
}
