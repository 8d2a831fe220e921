package audioio

import (
	"sync"
)

// SampleRing is a fixed-capacity FIFO between a driver callback thread and the
// relay goroutine. Unlike a drop-oldest ring it refuses what does not fit, so
// a full ring shows up as a partial transfer to whoever is pushing.
type SampleRing struct {
	mu   sync.Mutex
	buf  []float32
	head int // next read position
	len  int

	underrun int64 // silence samples handed out by PopOrSilence
}

func NewSampleRing(capacity int) *SampleRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &SampleRing{buf: make([]float32, capacity)}
}

// Push appends as much of src as fits and returns how many samples it took.
// What the caller does with the rest is up to it, playback retries and capture drops.
func (r *SampleRing) Push(src []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	free := len(r.buf) - r.len
	n := len(src)
	if n > free {
		n = free
	}
	tail := (r.head + r.len) % len(r.buf)
	first := copy(r.buf[tail:], src[:n])
	copy(r.buf, src[first:n])
	r.len += n
	return n
}

// Pop moves up to len(dst) samples out of the ring.
func (r *SampleRing) Pop(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pop(dst)
}

// PopOrSilence fills all of dst, padding with zeros once the ring runs dry,
// and returns how many real samples it used.
func (r *SampleRing) PopOrSilence(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.pop(dst)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	r.underrun += int64(len(dst) - n)
	return n
}

func (r *SampleRing) pop(dst []float32) int {
	n := len(dst)
	if n > r.len {
		n = r.len
	}
	end := r.head + n
	if end <= len(r.buf) {
		copy(dst, r.buf[r.head:end])
	} else {
		first := copy(dst, r.buf[r.head:])
		copy(dst[first:n], r.buf[:n-first])
	}
	r.head = (r.head + n) % len(r.buf)
	r.len -= n
	return n
}

func (r *SampleRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len
}

func (r *SampleRing) Cap() int {
	return len(r.buf)
}

// Underrun returns and resets the count of silence samples.
func (r *SampleRing) Underrun() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.underrun
	r.underrun = 0
	return u
}
