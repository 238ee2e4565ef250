package audioout

import "github.com/Lundis/go-audioout/server"

// Format is the sample format of a device.
type Format = server.Format

const (
	FormatInt16LE   = server.FormatInt16LE
	FormatFloat32LE = server.FormatFloat32LE
	FormatFloat64LE = server.FormatFloat64LE
)

// Hard defaults applied when the caller leaves specs unset and the registry
// defaults were not changed.
const (
	DefaultSampleRate   = 48000
	DefaultChannelCount = 2
	DefaultFormat       = FormatFloat32LE
	DefaultBufferFrames = 4096
)

// DeviceSpecs describes the stream a device negotiates with the audio
// server. Zero fields resolve to the registry defaults. Unsupported formats
// are downgraded to the nearest supported one; inspect Device.Specs for the
// resolved result.
type DeviceSpecs struct {
	SampleRate   int
	ChannelCount int
	Format       Format
}

// FrameBytes returns the size of one frame (one sample per channel).
func (s DeviceSpecs) FrameBytes() int {
	return s.ChannelCount * s.Format.SampleBytes()
}

func (s DeviceSpecs) resolve(defaults DeviceSpecs) DeviceSpecs {
	if s.SampleRate == 0 {
		s.SampleRate = defaults.SampleRate
	}
	if s.ChannelCount == 0 {
		s.ChannelCount = defaults.ChannelCount
	}
	if s.Format == server.FormatUnknown {
		s.Format = defaults.Format
	}
	// The servers don't take 64-bit floats; use the nearest supported format.
	if s.Format == FormatFloat64LE {
		s.Format = FormatFloat32LE
	}
	return s
}
