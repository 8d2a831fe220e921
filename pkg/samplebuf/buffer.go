// Package samplebuf provides the fixed-capacity sample buffer a relay pipeline
// reuses on every iteration.
package samplebuf

import (
	"fmt"

	"github.com/pkg/errors"
)

// MaxCapacity caps a single allocation at one minute of 192kHz audio.
const MaxCapacity = 192000 * 60

var (
	ErrAllocation = errors.New("sample buffer allocation failed")
	ErrReleased   = errors.New("sample buffer already released")
)

// Buffer is an owned, contiguous run of float32 samples.
// Its capacity never changes after Allocate and it must not be shared between pipelines.
type Buffer struct {
	samples []float32
}

// Allocate reserves a zero-filled buffer of exactly capacity samples.
// MaxCapacity is the only guard, running out of memory beyond it is fatal.
func Allocate(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d outside (0, %d]", ErrAllocation, capacity, MaxCapacity)
	}
	return &Buffer{samples: make([]float32, capacity)}, nil
}

// Samples returns the full-capacity view, or nil once released.
func (b *Buffer) Samples() []float32 {
	return b.samples
}

// Cap returns the capacity in samples, 0 once released.
func (b *Buffer) Cap() int {
	return len(b.samples)
}

// Released reports whether Release was called.
func (b *Buffer) Released() bool {
	return b.samples == nil
}

// Release drops the backing storage; calling it twice is an error.
func (b *Buffer) Release() error {
	if b.samples == nil {
		return ErrReleased
	}
	b.samples = nil
	return nil
}
