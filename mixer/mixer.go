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

// Package mixer is a pull-style mixing engine. The audio device calls
// ReadFloat32s from its mixing goroutine and the mixer sums every playing
// track into the buffer.
package mixer

import "sync"

// Mixer multiplexes tracks into one interleaved float32 stream. It
// implements the device's Mixer interface.
type Mixer struct {
	sampleRate   int
	channelCount int

	m      sync.Mutex
	tracks map[*Track]struct{}
	buses  map[Bus]busSettings
}

func New(sampleRate, channelCount int) *Mixer {
	return &Mixer{
		sampleRate:   sampleRate,
		channelCount: channelCount,
		tracks:       make(map[*Track]struct{}),
		buses:        make(map[Bus]busSettings),
	}
}

func (m *Mixer) SampleRate() int   { return m.sampleRate }
func (m *Mixer) ChannelCount() int { return m.channelCount }

// ReadFloat32s fills buf completely with the summed output of all playing
// tracks; missing source data is silence.
func (m *Mixer) ReadFloat32s(buf []float32) {
	m.m.Lock()
	tracks := make([]*Track, 0, len(m.tracks))
	for t := range m.tracks {
		tracks = append(tracks, t)
	}
	m.m.Unlock()

	clear(buf)
	for _, t := range tracks {
		t.readAndAdd(buf)
	}
}

func (m *Mixer) addTrack(t *Track) {
	m.m.Lock()
	m.tracks[t] = struct{}{}
	m.m.Unlock()
}

func (m *Mixer) removeTrack(t *Track) {
	m.m.Lock()
	delete(m.tracks, t)
	m.m.Unlock()
}
