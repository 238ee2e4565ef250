package server

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStateTerminal(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StateUnconnected, false},
		{StateConnecting, false},
		{StateReady, false},
		{StateFailed, true},
		{StateTerminated, true},
	}
	for _, c := range cases {
		if got := c.state.Terminal(); got != c.want {
			t.Errorf("%s.Terminal() = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestFormatSampleBytes(t *testing.T) {
	if got := FormatInt16LE.SampleBytes(); got != 2 {
		t.Errorf("s16le sample bytes = %d, want 2", got)
	}
	if got := FormatFloat32LE.SampleBytes(); got != 4 {
		t.Errorf("f32le sample bytes = %d, want 4", got)
	}
	if got := FormatFloat64LE.SampleBytes(); got != 8 {
		t.Errorf("f64le sample bytes = %d, want 8", got)
	}
	spec := StreamSpec{SampleRate: 48000, ChannelCount: 2, Format: FormatFloat32LE}
	if got := spec.FrameBytes(); got != 8 {
		t.Errorf("stereo f32le frame bytes = %d, want 8", got)
	}
}

func TestNullDriverLifecycle(t *testing.T) {
	var drv nullDriver
	if !drv.Available() {
		t.Fatal("null driver must always be available")
	}

	var mu sync.Mutex
	var states []State
	conn, err := drv.Connect("test", func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("error connecting: %s", err)
	}
	mu.Lock()
	if len(states) != 2 || states[0] != StateConnecting || states[1] != StateReady {
		t.Fatalf("state sequence = %v, want [connecting ready]", states)
	}
	mu.Unlock()

	var requested atomic.Int64
	spec := StreamSpec{SampleRate: 48000, ChannelCount: 2, Format: FormatFloat32LE}
	stream, err := conn.NewStream(spec, func(s Stream, nbytes int) {
		chunk := s.BeginWrite(nbytes)
		if len(chunk) != nbytes {
			t.Errorf("BeginWrite(%d) returned %d bytes", nbytes, len(chunk))
		}
		if err := s.Commit(chunk); err != nil {
			t.Errorf("error committing: %s", err)
		}
		requested.Add(int64(nbytes))
	})
	if err != nil {
		t.Fatalf("error negotiating stream: %s", err)
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("error starting stream: %s", err)
	}

	deadline := time.Now().Add(time.Second)
	for requested.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if requested.Load() == 0 {
		t.Fatal("data-request callback never fired")
	}
	if conn.ClockMicros() <= 0 {
		t.Fatal("clock did not advance")
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("error closing: %s", err)
	}
	after := requested.Load()
	time.Sleep(50 * time.Millisecond)
	if requested.Load() != after {
		t.Fatal("callback still firing after Close")
	}
	// Closing again must not panic or block.
	if err := stream.Close(); err != nil {
		t.Fatalf("error on second close: %s", err)
	}
}

func TestNullStreamCork(t *testing.T) {
	var drv nullDriver
	conn, _ := drv.Connect("test", nil)
	defer conn.Close()

	var requested atomic.Int64
	spec := StreamSpec{SampleRate: 48000, ChannelCount: 2, Format: FormatInt16LE}
	stream, err := conn.NewStream(spec, func(s Stream, nbytes int) {
		requested.Add(int64(nbytes))
	})
	if err != nil {
		t.Fatalf("error negotiating stream: %s", err)
	}
	if err := stream.Cork(true); err != nil {
		t.Fatalf("error corking: %s", err)
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("error starting stream: %s", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := requested.Load(); n != 0 {
		t.Fatalf("corked stream requested %d bytes", n)
	}

	stream.Cork(false)
	deadline := time.Now().Add(time.Second)
	for requested.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if requested.Load() == 0 {
		t.Fatal("uncorked stream never requested data")
	}
}

func TestMockStreamChunking(t *testing.T) {
	drv := &MockDriver{}
	conn, err := drv.Connect("test", nil)
	if err != nil {
		t.Fatalf("error connecting: %s", err)
	}

	var requests []int
	_, err = conn.NewStream(StreamSpec{}, func(s Stream, nbytes int) {
		for nbytes > 0 {
			chunk := s.BeginWrite(nbytes)
			if chunk == nil {
				t.Fatal("BeginWrite returned nil")
			}
			requests = append(requests, len(chunk))
			for i := range chunk {
				chunk[i] = byte(i)
			}
			if err := s.Commit(chunk); err != nil {
				t.Fatalf("error committing: %s", err)
			}
			nbytes -= len(chunk)
		}
	})
	if err != nil {
		t.Fatalf("error negotiating stream: %s", err)
	}

	ms := drv.LastConn().LastStream()
	ms.MaxChunk = 48
	ms.RequestData(100)

	want := []int{48, 48, 4}
	if len(requests) != len(want) {
		t.Fatalf("chunk sizes = %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Fatalf("chunk sizes = %v, want %v", requests, want)
		}
	}
	if got := len(ms.Played()); got != 100 {
		t.Fatalf("played %d bytes, want 100", got)
	}
}

func TestMockConnClock(t *testing.T) {
	drv := &MockDriver{}
	conn, _ := drv.Connect("test", nil)
	if conn.ClockMicros() != 0 {
		t.Fatal("mock clock must start at zero")
	}
	drv.LastConn().AdvanceClock(1500 * time.Millisecond)
	if got := conn.ClockMicros(); got != 1_500_000 {
		t.Fatalf("clock = %d, want 1500000", got)
	}
}

func TestMockConnectStates(t *testing.T) {
	drv := &MockDriver{ConnectStates: []State{StateConnecting, StateFailed}}
	var states []State
	conn, err := drv.Connect("test", func(s State) { states = append(states, s) })
	if err != nil {
		t.Fatalf("error connecting: %s", err)
	}
	if len(states) != 2 || !states[1].Terminal() {
		t.Fatalf("state sequence = %v, want it to end terminally", states)
	}
	if conn == nil {
		t.Fatal("connect must still hand back the connection for cleanup")
	}
}
