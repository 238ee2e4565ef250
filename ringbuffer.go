package audioout

import "sync/atomic"

// RingBuffer is a fixed-capacity byte ring for a single producer and a
// single consumer: the mixing goroutine writes, the server callback reads.
// Cursors increase monotonically; their difference is the readable size, so
// readable + writable always equals the capacity.
//
// Reads and writes never block and never overrun: a request larger than the
// available space is truncated.
type RingBuffer struct {
	buf []byte
	r   atomic.Uint64
	w   atomic.Uint64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("audioout: ring buffer capacity must be positive")
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

func (rb *RingBuffer) Capacity() int { return len(rb.buf) }

// ReadSize reports the number of bytes available for reading.
func (rb *RingBuffer) ReadSize() int {
	return int(rb.w.Load() - rb.r.Load())
}

// WriteSize reports the number of bytes available for writing.
func (rb *RingBuffer) WriteSize() int {
	return len(rb.buf) - rb.ReadSize()
}

// Write copies as much of p as fits and returns the number of bytes written.
// Producer side only.
func (rb *RingBuffer) Write(p []byte) int {
	w := rb.w.Load()
	free := uint64(len(rb.buf)) - (w - rb.r.Load())
	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	pos := w % uint64(len(rb.buf))
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}
	rb.w.Store(w + n)
	return int(n)
}

// Read copies up to len(p) readable bytes into p and returns the number of
// bytes read. Consumer side only.
func (rb *RingBuffer) Read(p []byte) int {
	r := rb.r.Load()
	avail := rb.w.Load() - r
	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	pos := r % uint64(len(rb.buf))
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}
	rb.r.Store(r + n)
	return int(n)
}
