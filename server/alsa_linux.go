// Copyright 2022 The Oto Authors
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

//go:build linux

package server

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	sndPcmStreamPlayback      = 0
	sndPcmAccessRWInterleaved = 3

	sndPcmFormatS16LE   = 2
	sndPcmFormatFloatLE = 14
)

type alsaLib struct {
	open      func(pcm *uintptr, name string, stream int32, mode int32) int32
	setParams func(pcm uintptr, format int32, access int32, channels uint32, rate uint32, softResample int32, latency uint32) int32
	writei    func(pcm uintptr, buf unsafe.Pointer, frames uint64) int64
	recover   func(pcm uintptr, errnum int32, silent int32) int32
	prepare   func(pcm uintptr) int32
	drop      func(pcm uintptr) int32
	drain     func(pcm uintptr) int32
	close     func(pcm uintptr) int32
	strerror  func(errnum int32) string
}

var (
	alsaOnce sync.Once
	alsa     *alsaLib
	alsaErr  error
)

func loadALSA() (*alsaLib, error) {
	alsaOnce.Do(func() {
		lib, err := purego.Dlopen("libasound.so.2", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			alsaErr = fmt.Errorf("alsa: %w", err)
			return
		}
		l := &alsaLib{}
		purego.RegisterLibFunc(&l.open, lib, "snd_pcm_open")
		purego.RegisterLibFunc(&l.setParams, lib, "snd_pcm_set_params")
		purego.RegisterLibFunc(&l.writei, lib, "snd_pcm_writei")
		purego.RegisterLibFunc(&l.recover, lib, "snd_pcm_recover")
		purego.RegisterLibFunc(&l.prepare, lib, "snd_pcm_prepare")
		purego.RegisterLibFunc(&l.drop, lib, "snd_pcm_drop")
		purego.RegisterLibFunc(&l.drain, lib, "snd_pcm_drain")
		purego.RegisterLibFunc(&l.close, lib, "snd_pcm_close")
		purego.RegisterLibFunc(&l.strerror, lib, "snd_strerror")
		alsa = l
	})
	return alsa, alsaErr
}

// alsaDriver opens the default ALSA PCM directly through libasound. It is
// the fallback when no sound server is running; a feeder goroutine plays the
// role of the server's playback thread, issuing data requests and blocking
// in snd_pcm_writei.
type alsaDriver struct{}

func (alsaDriver) Name() string  { return "alsa" }
func (alsaDriver) Priority() int { return 10 }

func (alsaDriver) Available() bool {
	if _, err := loadALSA(); err != nil {
		return false
	}
	return soundDevicesPresent()
}

func (alsaDriver) Connect(appName string, onState StateFunc) (Conn, error) {
	notify := func(s State) {
		if onState != nil {
			onState(s)
		}
	}
	notify(StateConnecting)
	lib, err := loadALSA()
	if err != nil {
		notify(StateFailed)
		return nil, err
	}
	notify(StateReady)
	return &alsaConn{lib: lib, epoch: time.Now()}, nil
}

type alsaConn struct {
	lib   *alsaLib
	epoch time.Time

	mu      sync.Mutex
	streams []*alsaStream
}

func (c *alsaConn) ClockMicros() int64 {
	return time.Since(c.epoch).Microseconds()
}

func (c *alsaConn) NewStream(spec StreamSpec, onData DataFunc) (Stream, error) {
	var pcm uintptr
	if rc := c.lib.open(&pcm, "default", sndPcmStreamPlayback, 0); rc < 0 {
		return nil, fmt.Errorf("alsa: snd_pcm_open: %s", c.lib.strerror(rc))
	}

	format := int32(sndPcmFormatFloatLE)
	if spec.Format == FormatInt16LE {
		format = sndPcmFormatS16LE
	}
	bufferFrames := spec.BufferBytes / spec.FrameBytes()
	latencyMicros := uint32(uint64(bufferFrames) * 1e6 / uint64(spec.SampleRate))
	if rc := c.lib.setParams(pcm, format, sndPcmAccessRWInterleaved,
		uint32(spec.ChannelCount), uint32(spec.SampleRate), 1, latencyMicros); rc < 0 {
		c.lib.close(pcm)
		return nil, fmt.Errorf("alsa: snd_pcm_set_params: %s", c.lib.strerror(rc))
	}

	s := &alsaStream{
		lib:    c.lib,
		pcm:    pcm,
		spec:   spec,
		onData: onData,
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

func (c *alsaConn) Close() error {
	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}
	return nil
}

// alsaChunkBytes caps a single BeginWrite chunk.
const alsaChunkBytes = 4096

type alsaStream struct {
	lib    *alsaLib
	pcm    uintptr
	spec   StreamSpec
	onData DataFunc
	chunk  []byte
	corked atomic.Bool
	err    atomicError
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (s *alsaStream) Start() error {
	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *alsaStream) loop() {
	defer s.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	const batchFrames = 512
	batch := batchFrames * s.spec.FrameBytes()
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if s.corked.Load() || s.err.Load() != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		// writei blocks until the device accepts the batch, pacing the loop.
		s.onData(s, batch)
	}
}

func (s *alsaStream) BeginWrite(want int) []byte {
	frame := s.spec.FrameBytes()
	if want > alsaChunkBytes {
		want = alsaChunkBytes
	}
	want -= want % frame
	if want <= 0 {
		return nil
	}
	if cap(s.chunk) < want {
		s.chunk = make([]byte, want)
	}
	return s.chunk[:want]
}

func (s *alsaStream) Commit(chunk []byte) error {
	frame := s.spec.FrameBytes()
	frames := uint64(len(chunk) / frame)
	buf := chunk
	for frames > 0 {
		n := s.lib.writei(s.pcm, unsafe.Pointer(&buf[0]), frames)
		if n < 0 {
			if rc := s.lib.recover(s.pcm, int32(n), 1); rc < 0 {
				err := fmt.Errorf("alsa: snd_pcm_writei: %s", s.lib.strerror(int32(n)))
				s.err.TryStore(err)
				return err
			}
			continue
		}
		frames -= uint64(n)
		buf = buf[int(n)*frame:]
	}
	return nil
}

func (s *alsaStream) Cork(corked bool) error {
	s.corked.Store(corked)
	return nil
}

func (s *alsaStream) Flush() error {
	if rc := s.lib.drop(s.pcm); rc < 0 {
		return fmt.Errorf("alsa: snd_pcm_drop: %s", s.lib.strerror(rc))
	}
	// drop leaves the device in SETUP state; prepare it for the next write.
	if rc := s.lib.prepare(s.pcm); rc < 0 {
		return fmt.Errorf("alsa: snd_pcm_prepare: %s", s.lib.strerror(rc))
	}
	return nil
}

func (s *alsaStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.lib.drain(s.pcm)
		s.lib.close(s.pcm)
	})
	return nil
}
