// Package wav decodes linear PCM WAV (RIFF) files into the interleaved
// float32 samples the mixer consumes.
package wav

import (
	"bytes"
	"fmt"
	"os"
)

// DecodeFile reads and decodes a WAV file, see Decode.
func DecodeFile(path string, wantSampleRate int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, err := Decode(data, wantSampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// Decode converts 16-bit stereo linear PCM WAV bytes at the wanted sample
// rate into float32 samples. Anything else is rejected: resampling and
// channel conversion are out of scope.
func Decode(data []byte, wantSampleRate int) ([]float32, error) {
	if len(data) < 12 ||
		!bytes.Equal(data[0:4], []byte("RIFF")) ||
		!bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("wav: invalid header")
	}

	pos := 12
	for pos+8 <= len(data) {
		hdr := data[pos : pos+8]
		pos += 8
		size := int(hdr[4]) | int(hdr[5])<<8 | int(hdr[6])<<16 | int(hdr[7])<<24
		if size < 0 || pos+size > len(data) {
			return nil, fmt.Errorf("wav: truncated chunk %q", hdr[0:4])
		}
		switch {
		case bytes.Equal(hdr[0:4], []byte("fmt ")):
			// The fmt chunk is usually 16 bytes but may be longer.
			if size < 16 {
				return nil, fmt.Errorf("wav: invalid fmt chunk, maybe non-PCM file?")
			}
			buf := data[pos : pos+size]
			format := int(buf[0]) | int(buf[1])<<8
			if format != 1 {
				return nil, fmt.Errorf("wav: format must be linear PCM")
			}
			channels := int(buf[2]) | int(buf[3])<<8
			if channels != 2 {
				return nil, fmt.Errorf("wav: number of channels must be 2 but was %d", channels)
			}
			sampleRate := int(buf[4]) | int(buf[5])<<8 | int(buf[6])<<16 | int(buf[7])<<24
			if sampleRate != wantSampleRate {
				return nil, fmt.Errorf("wav: sample rate must be %d but was %d", wantSampleRate, sampleRate)
			}
			bits := int(buf[14]) | int(buf[15])<<8
			if bits != 16 {
				return nil, fmt.Errorf("wav: bits per sample must be 16 but was %d", bits)
			}
			pos += size
		case bytes.Equal(hdr[0:4], []byte("data")):
			return int16ToFloat32(data[pos : pos+size]), nil
		default:
			pos += size
		}
	}
	return nil, fmt.Errorf("wav: no data chunk")
}

func int16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out[i/2] = float32(int16(pcm[i])|int16(pcm[i+1])<<8) / (1 << 15)
	}
	return out
}
