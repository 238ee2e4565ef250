//go:build linux

package server

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// pulseServerReachable checks for a reachable PulseAudio (or pipewire-pulse)
// server without connecting to it.
func pulseServerReachable() bool {
	if os.Getenv("PULSE_SERVER") != "" {
		return true
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	return unix.Access(dir+"/pulse/native", unix.R_OK|unix.W_OK) == nil
}

// soundDevicesPresent reports whether the kernel exposes any sound devices.
func soundDevicesPresent() bool {
	return unix.Access("/dev/snd", unix.R_OK) == nil
}
