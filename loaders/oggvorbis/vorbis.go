// Package oggvorbis decodes Ogg Vorbis files into the interleaved float32
// samples the mixer consumes.
package oggvorbis

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// DecodeFile reads and decodes an Ogg Vorbis file, see Decode.
func DecodeFile(path string, wantSampleRate int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open: %w", path, err)
	}
	samples, err := Decode(data, wantSampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// Decode converts stereo Ogg Vorbis bytes at the wanted sample rate into
// float32 samples. Resampling and channel conversion are out of scope.
func Decode(oggData []byte, wantSampleRate int) ([]float32, error) {
	data, format, err := oggvorbis.ReadAll(bytes.NewReader(oggData))
	if err != nil {
		return nil, err
	}
	if format.Channels != 2 {
		return nil, fmt.Errorf("oggvorbis: number of channels must be 2 but was %d", format.Channels)
	}
	if format.SampleRate != wantSampleRate {
		return nil, fmt.Errorf("oggvorbis: sample rate must be %d but was %d", wantSampleRate, format.SampleRate)
	}
	return data, nil
}
