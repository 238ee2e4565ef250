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

package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// nullDriver plays into the void at real-time rate so that applications keep
// working on machines without any audio server. It is always available and
// sorts below every real driver.
type nullDriver struct{}

func (nullDriver) Name() string    { return "null" }
func (nullDriver) Priority() int   { return -1 }
func (nullDriver) Available() bool { return true }

func (nullDriver) Connect(appName string, onState StateFunc) (Conn, error) {
	if onState != nil {
		onState(StateConnecting)
		onState(StateReady)
	}
	return &nullConn{epoch: time.Now()}, nil
}

type nullConn struct {
	epoch time.Time

	mu      sync.Mutex
	streams []*nullStream
}

func (c *nullConn) ClockMicros() int64 {
	return time.Since(c.epoch).Microseconds()
}

func (c *nullConn) NewStream(spec StreamSpec, onData DataFunc) (Stream, error) {
	s := &nullStream{
		spec:   spec,
		onData: onData,
		done:   make(chan struct{}),
	}
	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

func (c *nullConn) Close() error {
	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()
	for _, s := range streams {
		s.Close()
	}
	return nil
}

type nullStream struct {
	spec   StreamSpec
	onData DataFunc
	chunk  []byte
	corked atomic.Bool
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (s *nullStream) Start() error {
	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *nullStream) loop() {
	defer s.wg.Done()

	const batchFrames = 1024
	batch := batchFrames * s.spec.FrameBytes()
	sleep := time.Duration(float64(time.Second) * batchFrames / float64(s.spec.SampleRate))
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if !s.corked.Load() {
			s.onData(s, batch)
		}
		time.Sleep(sleep)
	}
}

func (s *nullStream) BeginWrite(want int) []byte {
	if want <= 0 {
		return nil
	}
	if cap(s.chunk) < want {
		s.chunk = make([]byte, want)
	}
	return s.chunk[:want]
}

func (s *nullStream) Commit(chunk []byte) error { return nil }

func (s *nullStream) Cork(corked bool) error {
	s.corked.Store(corked)
	return nil
}

func (s *nullStream) Flush() error { return nil }

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
