//go:build linux

package server

// Builtin returns the drivers compiled into this platform, best first.
func Builtin() []Driver {
	return []Driver{pulseDriver{}, alsaDriver{}, nullDriver{}}
}
