// Package server abstracts the native audio servers a device can play
// through. A Driver is a named connection factory, a Conn owns the server
// connection and its clock, and a Stream delivers playback audio through a
// data-request callback that the server invokes on its own thread.
package server

// State mirrors the connection state reported by the audio server.
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateReady
	StateFailed
	StateTerminated
)

// Terminal reports whether the connection cannot recover from s.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateTerminated
}

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Format identifies a sample format on the wire to the server.
type Format int

const (
	FormatUnknown Format = iota
	FormatInt16LE
	FormatFloat32LE
	FormatFloat64LE
)

// SampleBytes returns the width of one sample in bytes.
func (f Format) SampleBytes() int {
	switch f {
	case FormatInt16LE:
		return 2
	case FormatFloat64LE:
		return 8
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatInt16LE:
		return "s16le"
	case FormatFloat32LE:
		return "f32le"
	case FormatFloat64LE:
		return "f64le"
	}
	return "unknown"
}

// StreamSpec is the resolved format a playback stream is negotiated with.
type StreamSpec struct {
	SampleRate   int
	ChannelCount int
	Format       Format

	// BufferBytes is the requested server-side buffer length. Other tuning
	// fields are left to the server's auto negotiation.
	BufferBytes int
}

// FrameBytes returns the size of one frame (one sample per channel).
func (s StreamSpec) FrameBytes() int {
	return s.ChannelCount * s.Format.SampleBytes()
}

// StateFunc receives connection state changes. It is called on the server's
// event thread and must not block.
type StateFunc func(State)

// DataFunc is the data-request callback. The server invokes it on its
// playback thread with the stream and a wanted byte count; the callback
// fills the stream through BeginWrite/Commit and must never block
// indefinitely.
type DataFunc func(s Stream, nbytes int)

// Driver is a named factory for server connections. Drivers are registered
// into the process-wide device registry with a priority that orders
// default-device selection.
type Driver interface {
	Name() string
	// Priority orders default selection; higher wins.
	Priority() int
	// Available reports whether the server this driver talks to is reachable
	// on this machine.
	Available() bool
	// Connect establishes a connection, reporting state transitions through
	// onState. Transitions may be delivered before Connect returns.
	Connect(appName string, onState StateFunc) (Conn, error)
}

// Conn is an established server connection.
type Conn interface {
	// NewStream negotiates a playback stream. onData starts firing on the
	// server's thread once the stream is started.
	NewStream(spec StreamSpec, onData DataFunc) (Stream, error)
	// ClockMicros returns the server's monotonic playback clock in
	// microseconds.
	ClockMicros() int64
	// Close stops event processing and releases the connection. No callback
	// fires after Close returns.
	Close() error
}

// Stream is a playback stream on a Conn.
type Stream interface {
	// Start connects the stream for playback; after Start the data-request
	// callback begins firing.
	Start() error
	// BeginWrite returns a writable chunk of at most want bytes. A chunk may
	// be smaller than requested; callers iterate until the request is
	// satisfied. A nil return means no space is currently available.
	BeginWrite(want int) []byte
	// Commit hands a chunk obtained from BeginWrite, now filled, to the
	// server.
	Commit(chunk []byte) error
	// Cork pauses (true) or resumes (false) the stream at the server without
	// destroying it.
	Cork(corked bool) error
	// Flush discards buffered-but-unplayed audio on the server side.
	Flush() error
	Close() error
}
