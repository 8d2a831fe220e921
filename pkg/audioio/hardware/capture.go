package hardware

import (
	"sync/atomic"

	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/rs/zerolog/log"
)

// captureRing is the driver-facing half of an input device. Samples that do not
// fit are gone for good, so unlike playback they are counted as dropped.
type captureRing struct {
	ring    *audioio.SampleRing
	dropped atomic.Int64
}

func newCaptureRing(opts audioio.Options) *captureRing {
	return &captureRing{ring: audioio.NewSampleRing(opts.RingSize())}
}

// push runs on the driver thread.
func (c *captureRing) push(samples []float32, device string) {
	if pushed := c.ring.Push(samples); pushed < len(samples) {
		c.dropped.Add(int64(len(samples) - pushed))
		log.Warn().Str("device", device).Int("dropped", len(samples)-pushed).Msg("relay fell behind, dropping samples")
	}
}

func (c *captureRing) ReadSamples(dst []float32) (int, error) {
	return c.ring.Pop(dst), nil
}

func (c *captureRing) logDropped(device string) {
	if d := c.dropped.Load(); d > 0 {
		log.Warn().Str("device", device).Int64("dropped_samples", d).Msg("capture dropped samples while the relay was behind")
	}
}
