//go:build !linux

package server

// Builtin returns the drivers compiled into this platform. Only the null
// sink is built in outside linux; real drivers are registered by the
// application.
func Builtin() []Driver {
	return []Driver{nullDriver{}}
}
