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

package mixer

import (
	"errors"
	"io"
	"sync"
)

// Track plays one AudioStream into the mixer.
//
// All functions of a Track are concurrent-safe.
type Track struct {
	mixer *Mixer
	src   AudioStream
	bus   Bus

	m       sync.Mutex
	volume  float32
	playing bool
	loop    bool
	scratch []float32
}

// NewTrack creates a new, ready-to-use Track belonging to the mixer.
//
//	[data]      = [frame 1] [frame 2] [frame 3] ...
//	[frame *]   = [channel 1] [channel 2] ...
//	[channel *] = [float32]
func (m *Mixer) NewTrack(src AudioStream, volume float32, bus Bus) *Track {
	return &Track{
		mixer:  m,
		src:    src,
		bus:    bus,
		volume: volume,
	}
}

func (t *Track) Play() {
	t.m.Lock()
	t.playing = true
	t.m.Unlock()
	t.mixer.addTrack(t)
}

// Pause stops pulling from the source but keeps its position.
func (t *Track) Pause() {
	t.m.Lock()
	t.playing = false
	t.m.Unlock()
	t.mixer.removeTrack(t)
}

// Stop pauses and rewinds to the start when the source is seekable.
func (t *Track) Stop() {
	t.Pause()
	if s, ok := t.src.(SeekableAudioStream); ok {
		s.Seek(0, io.SeekStart)
	}
}

func (t *Track) SetVolume(volume float32) {
	t.m.Lock()
	t.volume = volume
	t.m.Unlock()
}

// SetLoop makes the track rewind and continue on source EOF. Only seekable
// sources can loop.
func (t *Track) SetLoop(loop bool) {
	t.m.Lock()
	t.loop = loop
	t.m.Unlock()
}

func (t *Track) IsPlaying() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.playing
}

// Seek repositions the source to the given time. Tracks are natural seek
// handlers for a device synchronizer.
func (t *Track) Seek(seconds float64) error {
	s, ok := t.src.(SeekableAudioStream)
	if !ok {
		return errors.New("mixer: source is not seekable")
	}
	offset := int64(seconds*float64(t.mixer.sampleRate)) * int64(t.mixer.channelCount)
	_, err := s.Seek(offset, io.SeekStart)
	return err
}

// readAndAdd mixes up to len(buf) samples of this track into buf.
func (t *Track) readAndAdd(buf []float32) {
	t.m.Lock()
	defer t.m.Unlock()
	if !t.playing {
		return
	}
	gain := t.volume * t.mixer.busGain(t.bus)

	if cap(t.scratch) < len(buf) {
		t.scratch = make([]float32, len(buf))
	}
	total := 0
	for total < len(buf) {
		n, err := t.src.Read(t.scratch[total:len(buf)])
		total += n
		if err == io.EOF {
			s, seekable := t.src.(SeekableAudioStream)
			if !t.loop || !seekable {
				t.playing = false
				t.mixer.removeTrack(t)
				break
			}
			s.Seek(0, io.SeekStart)
			continue
		}
		if err != nil {
			t.playing = false
			t.mixer.removeTrack(t)
			break
		}
		if n == 0 {
			break
		}
	}
	if gain == 0 {
		return
	}
	for i := 0; i < total; i++ {
		buf[i] += t.scratch[i] * gain
	}
}
