package audioout

import "sync"

// Synchronizer tracks the playback position of a stream against the audio
// server's clock. It is a two-state machine: while stopped the position is
// the stored seek offset, while playing it advances with the server clock
// from the reference captured at the last play or seek transition.
type Synchronizer struct {
	mu        sync.Mutex
	clock     func() int64 // server clock, microseconds
	seek      func(seconds float64)
	playing   bool
	seekPos   float64 // seconds, authoritative while stopped
	timeStart int64   // clock value at the last play/seek transition
}

// NewSynchronizer builds a standalone synchronizer around a microsecond
// clock. Devices hand out one wired to their server connection through
// Device.Synchronizer.
func NewSynchronizer(clock func() int64) *Synchronizer {
	return &Synchronizer{clock: clock}
}

// SetSeekHandler installs the playback-position owner that performs the
// actual repositioning on Seek, typically a mixer track.
func (s *Synchronizer) SetSeekHandler(h func(seconds float64)) {
	s.mu.Lock()
	s.seek = h
	s.mu.Unlock()
}

func (s *Synchronizer) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.timeStart = s.clock()
	s.playing = true
}

func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.seekPos = s.positionLocked()
	s.playing = false
}

// Seek re-captures the clock reference: seeking can happen mid-playback, so
// the elapsed-time origin must be refreshed along with the offset.
func (s *Synchronizer) Seek(seconds float64) {
	s.mu.Lock()
	s.timeStart = s.clock()
	s.seekPos = seconds
	h := s.seek
	s.mu.Unlock()
	if h != nil {
		h(seconds)
	}
}

// Position returns the playback position in seconds.
func (s *Synchronizer) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Synchronizer) positionLocked() float64 {
	if !s.playing {
		return s.seekPos
	}
	return float64(s.clock()-s.timeStart)/1e6 + s.seekPos
}
