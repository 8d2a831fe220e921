package hardware

import (
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/pkg/errors"
)

// OpenInput opens the capture device of the given backend.
func OpenInput(backend string, opts audioio.Options) (audioio.InputDevice, error) {
	switch backend {
	case audioio.BackendMalgo:
		return NewMalgoMicrophone(opts)
	case audioio.BackendPortaudio:
		return NewPortaudioInput(opts)
	}
	return nil, errors.Wrapf(audioio.ErrDeviceInit, "unknown backend %q", backend)
}

// OpenOutput opens the playback device. The malgo backend plays through oto,
// which shares miniaudio underneath.
func OpenOutput(backend string, opts audioio.Options) (audioio.OutputDevice, error) {
	switch backend {
	case audioio.BackendMalgo:
		return NewOtoSpeakers(opts)
	case audioio.BackendPortaudio:
		return NewPortaudioOutput(opts)
	}
	return nil, errors.Wrapf(audioio.ErrDeviceInit, "unknown backend %q", backend)
}
