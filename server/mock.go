package server

import (
	"sync"
	"time"
)

// MockDriver is a scripted in-memory server. Tests and headless environments
// use it to exercise the full device lifecycle deterministically: the
// connection state sequence, the clock, and the data-request chunking are all
// under the caller's control.
type MockDriver struct {
	DriverName     string
	DriverPriority int
	Unavailable    bool

	// ConnectStates overrides the state sequence delivered during Connect.
	// Empty means Connecting, Ready.
	ConnectStates []State

	// StreamErr makes NewStream on resulting connections fail.
	StreamErr error

	mu    sync.Mutex
	conns []*MockConn
}

func (d *MockDriver) Name() string {
	if d.DriverName == "" {
		return "mock"
	}
	return d.DriverName
}

func (d *MockDriver) Priority() int   { return d.DriverPriority }
func (d *MockDriver) Available() bool { return !d.Unavailable }

func (d *MockDriver) Connect(appName string, onState StateFunc) (Conn, error) {
	states := d.ConnectStates
	if len(states) == 0 {
		states = []State{StateConnecting, StateReady}
	}
	last := StateUnconnected
	for _, st := range states {
		last = st
		if onState != nil {
			onState(st)
		}
	}
	c := &MockConn{state: last, streamErr: d.StreamErr}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// LastConn returns the most recently established connection, or nil.
func (d *MockDriver) LastConn() *MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// MockConn is a connection to the mock server. Its clock only moves when
// AdvanceClock is called.
type MockConn struct {
	mu        sync.Mutex
	state     State
	clock     int64
	streams   []*MockStream
	streamErr error
	closed    bool
}

// AdvanceClock moves the server clock forward.
func (c *MockConn) AdvanceClock(d time.Duration) {
	c.mu.Lock()
	c.clock += d.Microseconds()
	c.mu.Unlock()
}

func (c *MockConn) ClockMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

func (c *MockConn) NewStream(spec StreamSpec, onData DataFunc) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	s := &MockStream{spec: spec, onData: onData}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastStream returns the most recently negotiated stream, or nil.
func (c *MockConn) LastStream() *MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

// MockStream records everything committed to it.
type MockStream struct {
	// MaxChunk caps the size BeginWrite hands out so that callers are forced
	// to iterate, like a real server under memory pressure. 0 means
	// unlimited.
	MaxChunk int

	mu      sync.Mutex
	spec    StreamSpec
	onData  DataFunc
	started bool
	corked  bool
	closed  bool
	flushes int
	played  []byte
	staged  []byte
}

func (s *MockStream) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// RequestData runs the data-request callback on the caller's goroutine,
// standing in for the server's playback thread.
func (s *MockStream) RequestData(nbytes int) {
	s.mu.Lock()
	cb := s.onData
	closed := s.closed
	s.mu.Unlock()
	if closed || cb == nil {
		return
	}
	cb(s, nbytes)
}

func (s *MockStream) BeginWrite(want int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if want <= 0 || s.closed {
		return nil
	}
	if s.MaxChunk > 0 && want > s.MaxChunk {
		want = s.MaxChunk
	}
	s.staged = make([]byte, want)
	return s.staged
}

func (s *MockStream) Commit(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, chunk...)
	s.staged = nil
	return nil
}

func (s *MockStream) Cork(corked bool) error {
	s.mu.Lock()
	s.corked = corked
	s.mu.Unlock()
	return nil
}

func (s *MockStream) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Played returns a copy of every byte committed so far.
func (s *MockStream) Played() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.played))
	copy(out, s.played)
	return out
}

// Flushes returns how many times Flush has been called.
func (s *MockStream) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Corked reports the current cork state.
func (s *MockStream) Corked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corked
}

// Started reports whether Start has been called.
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
