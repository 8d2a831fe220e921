package audioio

import (
	"time"

	"github.com/pkg/errors"
)

// Device backends understood by hardware.OpenInput and hardware.OpenOutput.
const (
	BackendMalgo     = "malgo"
	BackendPortaudio = "portaudio"
)

// ErrDeviceInit is returned by every device constructor that cannot bring its device up.
var ErrDeviceInit = errors.New("audio device init failed")

// InputDevice is the capture side: ReadSamples returns whatever was captured
// since the last call, at most len(dst), and never blocks waiting for more.
type InputDevice interface {
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// OutputDevice is the playback side: WriteSamples queues as many samples as the
// device has room for right now, possibly none.
type OutputDevice interface {
	WriteSamples(src []float32) (int, error)
	Close() error
}

// Options describe a mono float32 device.
type Options struct {
	SampleRate     int
	Channels       int
	BufferDuration time.Duration // latency between driver callbacks and ReadSamples/WriteSamples
	DeviceName     string        // "default" or "" picks the system default
}

func DefaultOptions() Options {
	return Options{
		SampleRate:     44100,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
		DeviceName:     "default",
	}
}

// BufferSamples is how many samples BufferDuration spans.
func (o Options) BufferSamples() int {
	channels := o.Channels
	if channels <= 0 {
		channels = 1
	}
	frames := int(o.BufferDuration.Seconds() * float64(o.SampleRate))
	return frames * channels
}

// RingSize is the device-side ring capacity: twice the buffer duration, so a
// callback can land while the previous one is still being consumed.
func (o Options) RingSize() int {
	n := 2 * o.BufferSamples()
	if n <= 0 {
		return 1
	}
	return n
}

func (o Options) IsDefaultDevice() bool {
	return o.DeviceName == "" || o.DeviceName == "default"
}
