// Copyright 2021 The Oto Authors
// Copyright 2025 Lundis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package audioout is a real-time audio output backend: it bridges an
// application-level mixer to a native low-latency audio server through a
// ring buffer, a background mixing goroutine and a server-driven write
// callback.
package audioout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/Lundis/go-audioout/server"
)

var (
	// ErrConnection means the audio server could not be reached or
	// negotiated with. Surfaced synchronously from Open, never retried.
	ErrConnection = errors.New("audioout: cannot connect to audio server")
	// ErrStream means the server is reachable but stream creation or
	// connection failed.
	ErrStream = errors.New("audioout: stream setup failed")
)

// Mixer supplies mixed audio on demand. ReadFloat32s must completely fill
// buf with interleaved samples at the device's sample rate and channel
// layout; it is called from the device's mixing goroutine.
type Mixer interface {
	ReadFloat32s(buf []float32)
}

// Device is an open playback connection to an audio server. It owns the
// server stream, the ring buffer and the mixing goroutine; Close releases
// all of them in an order that guarantees no callback fires into freed
// state.
type Device struct {
	name  string
	specs DeviceSpecs

	conn   server.Conn
	stream server.Stream

	mu      sync.Mutex // guards playing, corked and the mixing side
	mixer   Mixer
	playing bool
	corked  bool

	ring       *RingBuffer
	frameBytes int
	scratchF   []float32
	scratchB   []byte

	wakeMu  sync.Mutex
	wake    *sync.Cond
	pending bool // wake requested; guarded by wakeMu
	valid   bool // guarded by wakeMu
	closed  bool // guarded by wakeMu

	done       chan struct{}
	underflows atomic.Uint64

	synchronizer *Synchronizer
}

// Open connects to an audio server and negotiates a playback stream.
//
// name selects a registered driver; the empty name picks the highest
// priority available one. mixer may be nil, which plays silence. Zero spec
// fields and a zero bufferFrames resolve to the registry defaults.
//
// The device starts paused; call SetPlaying(true) to produce audio.
func Open(name string, mixer Mixer, specs DeviceSpecs, bufferFrames int) (*Device, error) {
	cfg, err := openConfig(name)
	if err != nil {
		return nil, err
	}
	resolved := specs.resolve(cfg.specs)
	if specs.Format == FormatFloat64LE {
		log.Debug("audioout: unsupported sample format downgraded",
			"requested", FormatFloat64LE, "using", resolved.Format)
	}
	if bufferFrames <= 0 {
		bufferFrames = cfg.bufferFrames
	}

	var rb rollbackStack
	w := newStateWaiter()
	conn, err := cfg.driver.Connect(cfg.displayName, w.update)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, cfg.driver.Name(), err)
	}
	rb.push(func() { conn.Close() })
	if st := w.waitReady(); st != server.StateReady {
		rb.unwind()
		return nil, fmt.Errorf("%w: %s: connection %s", ErrConnection, cfg.driver.Name(), st)
	}

	d := &Device{
		name:       cfg.driver.Name(),
		specs:      resolved,
		conn:       conn,
		mixer:      mixer,
		ring:       NewRingBuffer(bufferFrames * resolved.FrameBytes()),
		frameBytes: resolved.FrameBytes(),
		done:       make(chan struct{}),
	}
	d.wake = sync.NewCond(&d.wakeMu)
	d.synchronizer = NewSynchronizer(conn.ClockMicros)

	stream, err := conn.NewStream(server.StreamSpec{
		SampleRate:   resolved.SampleRate,
		ChannelCount: resolved.ChannelCount,
		Format:       resolved.Format,
		BufferBytes:  d.ring.Capacity(),
	}, d.onData)
	if err != nil {
		rb.unwind()
		return nil, fmt.Errorf("%w: %v", ErrStream, err)
	}
	rb.push(func() { stream.Close() })
	d.stream = stream

	if err := stream.Start(); err != nil {
		rb.unwind()
		return nil, fmt.Errorf("%w: %v", ErrStream, err)
	}

	d.valid = true
	go d.mixLoop()
	markOpened()

	log.Debug("audioout: device opened",
		"driver", d.name,
		"rate", resolved.SampleRate,
		"channels", resolved.ChannelCount,
		"format", resolved.Format,
		"buffer_frames", bufferFrames)
	return d, nil
}

// Specs returns the negotiated device specs, reflecting any format
// downgrade.
func (d *Device) Specs() DeviceSpecs { return d.specs }

// Synchronizer returns the playback-position interface of this device,
// driven by the server clock.
func (d *Device) Synchronizer() *Synchronizer { return d.synchronizer }

// Underflows returns how many data requests found the ring buffer starved.
// Underflow is a degraded-quality event, not an error: the missing bytes
// are played as silence.
func (d *Device) Underflows() uint64 { return d.underflows.Load() }

// SetPlaying starts (true) or pauses (false) playback. Pausing lets the
// ring buffer drain, then corks the stream at the server.
func (d *Device) SetPlaying(playing bool) {
	d.mu.Lock()
	d.playing = playing
	if playing && d.corked {
		d.stream.Cork(false)
		d.corked = false
	}
	d.mu.Unlock()
	if playing {
		d.signalWake()
	}
}

// Close tears the device down: it invalidates and joins the mixing
// goroutine first, then closes the stream, then the connection. Any other
// order risks a server callback firing into freed state. Close is
// idempotent.
func (d *Device) Close() error {
	d.wakeMu.Lock()
	if d.closed {
		d.wakeMu.Unlock()
		return nil
	}
	d.closed = true
	d.valid = false
	d.wake.Broadcast()
	d.wakeMu.Unlock()

	<-d.done
	d.stream.Close()
	return d.conn.Close()
}

// mixLoop pulls from the mixer and pushes into the ring buffer until the
// device is invalidated. Between iterations it sleeps on the wake condition
// signalled by the server callback, SetPlaying and Close.
func (d *Device) mixLoop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		if d.playing {
			frames := d.ring.WriteSize() / d.frameBytes
			if frames > 0 {
				d.mix(frames)
			}
		} else if d.ring.ReadSize() == 0 && !d.corked {
			// Pause at the server and drop anything it still buffers, so
			// stale audio cannot resume before new data arrives. The corked
			// flag makes this pair run at most once per pause.
			d.stream.Cork(true)
			d.stream.Flush()
			d.corked = true
		}
		d.mu.Unlock()

		d.wakeMu.Lock()
		for !d.pending && d.valid {
			d.wake.Wait()
		}
		d.pending = false
		valid := d.valid
		d.wakeMu.Unlock()
		if !valid {
			return
		}
	}
}

// mix pulls exactly frames frames from the mixer, encodes them to the
// device format and writes them into the ring. Caller holds d.mu.
func (d *Device) mix(frames int) {
	samples := frames * d.specs.ChannelCount
	if cap(d.scratchF) < samples {
		d.scratchF = make([]float32, samples)
		d.scratchB = make([]byte, frames*d.frameBytes)
	}
	f := d.scratchF[:samples]
	b := d.scratchB[:frames*d.frameBytes]
	if d.mixer != nil {
		d.mixer.ReadFloat32s(f)
	} else {
		clear(f)
	}
	encodeFrames(b, f, d.specs.Format)
	d.ring.Write(b)
}

// onData is the server callback bridge, invoked on the server's playback
// thread. It drains the ring buffer into server chunks, zero-filling on
// underflow, and gives the mixing goroutine a best-effort kick after each
// committed chunk.
func (d *Device) onData(s server.Stream, nbytes int) {
	for nbytes > 0 {
		chunk := s.BeginWrite(nbytes)
		if len(chunk) == 0 {
			return
		}
		want := d.ring.ReadSize()
		if want > len(chunk) {
			want = len(chunk)
		}
		want -= want % d.frameBytes
		n := d.ring.Read(chunk[:want])
		if n < len(chunk) {
			clear(chunk[n:])
			d.underflows.Add(1)
		}
		if err := s.Commit(chunk); err != nil {
			return
		}
		nbytes -= len(chunk)

		// Best effort only: a busy mixing goroutine will notice the free
		// space on its next wake. Blocking here would stall the server's
		// real-time thread.
		if d.wakeMu.TryLock() {
			d.pending = true
			d.wake.Signal()
			d.wakeMu.Unlock()
		}
	}
}

func (d *Device) signalWake() {
	d.wakeMu.Lock()
	d.pending = true
	d.wake.Signal()
	d.wakeMu.Unlock()
}

func encodeFrames(dst []byte, src []float32, f Format) {
	switch f {
	case FormatInt16LE:
		for i, v := range src {
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v*32767)))
		}
	default: // FormatFloat32LE
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
		}
	}
}

// stateWaiter mirrors connection state changes delivered on the server's
// event thread and lets Open block until a decisive state.
type stateWaiter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state server.State
}

func newStateWaiter() *stateWaiter {
	w := &stateWaiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *stateWaiter) update(s server.State) {
	w.mu.Lock()
	w.state = s
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *stateWaiter) waitReady() server.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.state != server.StateReady && !w.state.Terminal() {
		w.cond.Wait()
	}
	return w.state
}

// rollbackStack unwinds partially acquired resources in strict reverse
// order when a multi-stage open fails, so a failed open leaves no dangling
// server-side state.
type rollbackStack struct {
	steps []func()
}

func (r *rollbackStack) push(f func()) {
	r.steps = append(r.steps, f)
}

func (r *rollbackStack) unwind() {
	for i := len(r.steps) - 1; i >= 0; i-- {
		r.steps[i]()
	}
	r.steps = nil
}
