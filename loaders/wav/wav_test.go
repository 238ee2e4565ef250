package wav_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Lundis/go-audioout/loaders/wav"
)

// makeWav builds a minimal RIFF/WAVE file around the given PCM data.
func makeWav(format, channels, sampleRate, bits int, pcm []byte) []byte {
	var b []byte
	u16 := func(v int) []byte {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v))
		return tmp[:]
	}
	u32 := func(v int) []byte {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		return tmp[:]
	}
	blockAlign := channels * bits / 8
	b = append(b, []byte("RIFF")...)
	b = append(b, u32(36+len(pcm))...)
	b = append(b, []byte("WAVE")...)
	b = append(b, []byte("fmt ")...)
	b = append(b, u32(16)...)
	b = append(b, u16(format)...)
	b = append(b, u16(channels)...)
	b = append(b, u32(sampleRate)...)
	b = append(b, u32(sampleRate*blockAlign)...)
	b = append(b, u16(blockAlign)...)
	b = append(b, u16(bits)...)
	b = append(b, []byte("data")...)
	b = append(b, u32(len(pcm))...)
	b = append(b, pcm...)
	return b
}

func TestDecodeStereo(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(16384)))  // 0.5
	neg := int16(-16384)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(neg)) // -0.5
	binary.LittleEndian.PutUint16(pcm[4:], 0)
	binary.LittleEndian.PutUint16(pcm[6:], uint16(int16(32767)))

	data, err := wav.Decode(makeWav(1, 2, 44100, 16, pcm), 44100)
	if err != nil {
		t.Fatalf("error decoding wav: %s", err)
	}
	if len(data) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(data))
	}
	want := []float32{0.5, -0.5, 0, 32767.0 / 32768.0}
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: got %f, want %f", i, data[i], want[i])
		}
	}
}

func TestDecodeMono(t *testing.T) {
	_, err := wav.Decode(makeWav(1, 1, 44100, 16, make([]byte, 4)), 44100)
	if err == nil {
		t.Fatalf("should not decode mono tracks without error")
	}
}

func TestDecodeWrongRate(t *testing.T) {
	_, err := wav.Decode(makeWav(1, 2, 8000, 16, make([]byte, 4)), 44100)
	if err == nil {
		t.Fatalf("should not decode tracks in unexpected sampling rate without error")
	}
}

func TestDecode8Bit(t *testing.T) {
	_, err := wav.Decode(makeWav(1, 2, 44100, 8, make([]byte, 4)), 44100)
	if err == nil {
		t.Fatalf("should not decode non-16bit PCM tracks without error")
	}
}

func TestDecodeNonPCM(t *testing.T) {
	_, err := wav.Decode(makeWav(3, 2, 44100, 16, make([]byte, 4)), 44100)
	if err == nil {
		t.Fatalf("should not decode non-PCM tracks without error")
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := wav.Decode([]byte("not a wav file"), 44100)
	if err == nil {
		t.Fatalf("should not decode garbage without error")
	}
}
