//go:build linux

package server

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

// pulseDriver talks to a PulseAudio or pipewire-pulse server through the
// pure Go client. The client pulls samples from a reader callback on its own
// goroutine; pulseStream translates that pull into the BeginWrite/Commit
// chunk protocol.
type pulseDriver struct{}

func (pulseDriver) Name() string    { return "pulseaudio" }
func (pulseDriver) Priority() int   { return 20 }
func (pulseDriver) Available() bool { return pulseServerReachable() }

func (pulseDriver) Connect(appName string, onState StateFunc) (Conn, error) {
	notify := func(s State) {
		if onState != nil {
			onState(s)
		}
	}
	notify(StateConnecting)
	client, err := pulse.NewClient(pulse.ClientApplicationName(appName))
	if err != nil {
		notify(StateFailed)
		return nil, fmt.Errorf("pulseaudio: %w", err)
	}
	notify(StateReady)
	return &pulseConn{client: client, epoch: time.Now()}, nil
}

type pulseConn struct {
	client *pulse.Client
	epoch  time.Time

	mu      sync.Mutex
	streams []*pulseStream
}

func (c *pulseConn) ClockMicros() int64 {
	return time.Since(c.epoch).Microseconds()
}

func (c *pulseConn) NewStream(spec StreamSpec, onData DataFunc) (Stream, error) {
	s := &pulseStream{spec: spec, onData: onData}

	latency := float64(spec.BufferBytes) / float64(spec.FrameBytes()) / float64(spec.SampleRate)
	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(spec.SampleRate),
		pulse.PlaybackLatency(latency),
	}
	if spec.ChannelCount == 1 {
		opts = append(opts, pulse.PlaybackMono)
	} else {
		opts = append(opts, pulse.PlaybackStereo)
	}

	var (
		ps  *pulse.PlaybackStream
		err error
	)
	switch spec.Format {
	case FormatInt16LE:
		ps, err = c.client.NewPlayback(pulse.Int16Reader(s.readInt16), opts...)
	default:
		ps, err = c.client.NewPlayback(pulse.Float32Reader(s.readFloat32), opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("pulseaudio: %w", err)
	}
	s.stream = ps

	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

func (c *pulseConn) Close() error {
	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}
	c.client.Close()
	return nil
}

// pulseChunkBytes caps a single BeginWrite chunk.
const pulseChunkBytes = 8192

type pulseStream struct {
	spec   StreamSpec
	onData DataFunc
	stream *pulse.PlaybackStream

	mu     sync.Mutex
	closed bool

	// pull state, touched only on the client's playback goroutine
	outF   []float32
	outI   []int16
	off    int
	staged []byte
}

func (s *pulseStream) Start() error {
	s.stream.Start()
	return nil
}

func (s *pulseStream) readFloat32(out []float32) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, pulse.EndOfData
	}
	s.outF, s.off = out, 0
	s.onData(s, len(out)*4)
	n := s.off
	s.outF = nil
	return n, nil
}

func (s *pulseStream) readInt16(out []int16) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, pulse.EndOfData
	}
	s.outI, s.off = out, 0
	s.onData(s, len(out)*2)
	n := s.off
	s.outI = nil
	return n, nil
}

func (s *pulseStream) BeginWrite(want int) []byte {
	sample := s.spec.Format.SampleBytes()
	remaining := 0
	switch {
	case s.outF != nil:
		remaining = (len(s.outF) - s.off) * sample
	case s.outI != nil:
		remaining = (len(s.outI) - s.off) * sample
	}
	if want > remaining {
		want = remaining
	}
	if want > pulseChunkBytes {
		want = pulseChunkBytes
	}
	want -= want % sample
	if want <= 0 {
		return nil
	}
	if cap(s.staged) < want {
		s.staged = make([]byte, want)
	}
	return s.staged[:want]
}

func (s *pulseStream) Commit(chunk []byte) error {
	switch {
	case s.outF != nil:
		for i := 0; i+4 <= len(chunk); i += 4 {
			s.outF[s.off] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:]))
			s.off++
		}
	case s.outI != nil:
		for i := 0; i+2 <= len(chunk); i += 2 {
			s.outI[s.off] = int16(binary.LittleEndian.Uint16(chunk[i:]))
			s.off++
		}
	}
	return nil
}

func (s *pulseStream) Cork(corked bool) error {
	if corked {
		s.stream.Stop()
	} else {
		s.stream.Start()
	}
	return nil
}

// Flush is a no-op here: the pure Go client exposes no flush request, and a
// corked stream stops pulling, so stale audio cannot resume by itself.
func (s *pulseStream) Flush() error { return nil }

func (s *pulseStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.stream.Close()
	return nil
}
