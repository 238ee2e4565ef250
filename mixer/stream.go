package mixer

import "io"

// AudioStream produces interleaved float32 samples.
type AudioStream interface {
	Read(p []float32) (n int, err error)
}

// SeekableAudioStream additionally supports repositioning by sample offset.
type SeekableAudioStream interface {
	AudioStream
	Seek(offset int64, whence int) (int64, error)
}

// MemoryReader is a SeekableAudioStream over a preloaded sample slice.
type MemoryReader struct {
	data []float32
	pos  int64
}

func NewMemoryReader(data []float32) *MemoryReader {
	return &MemoryReader{data: data}
}

func (r *MemoryReader) Read(p []float32) (n int, err error) {
	n = copy(p, r.data[r.pos:])
	r.pos += int64(n)
	if r.pos >= int64(len(r.data)) {
		err = io.EOF
	}
	return n, err
}

func (r *MemoryReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	case io.SeekEnd:
		r.pos = int64(len(r.data)) + offset
	}
	if r.pos < 0 {
		r.pos = 0
	}
	if r.pos > int64(len(r.data)) {
		r.pos = int64(len(r.data))
	}
	return r.pos, nil
}
