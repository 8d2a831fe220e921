package hardware

import (
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// portaudioDevice runs a callback stream that moves samples between the
// driver and a ring, in either direction.
type portaudioDevice struct {
	stream *portaudio.Stream
	ring   *audioio.SampleRing

	closeOnce sync.Once
}

type portaudioInput struct {
	*portaudioDevice
	*captureRing
}

func findPortaudioDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}
	return nil, errors.Errorf("no portaudio device named %q", name)
}

func openPortaudio(opts audioio.Options, input bool, capture *captureRing) (*portaudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot init portaudio: %v", err)
	}
	info, err := findPortaudioDevice(opts.DeviceName, input)
	if err != nil {
		dbg(portaudio.Terminate())
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "%v", err)
	}

	p := &portaudioDevice{ring: audioio.NewSampleRing(opts.RingSize())}
	if capture != nil {
		p.ring = capture.ring
	}
	var params portaudio.StreamParameters
	var callback interface{}
	if input {
		params = portaudio.LowLatencyParameters(info, nil)
		params.Input.Channels = opts.Channels
		callback = func(in []float32) {
			capture.push(in, "portaudio input")
		}
	} else {
		params = portaudio.LowLatencyParameters(nil, info)
		params.Output.Channels = opts.Channels
		callback = func(out []float32) {
			p.ring.PopOrSilence(out)
		}
	}
	params.SampleRate = float64(opts.SampleRate)
	params.FramesPerBuffer = opts.BufferSamples() / opts.Channels

	log.Debug().Str("device", info.Name).Bool("input", input).Int("sample_rate", opts.SampleRate).Int("frames_per_buffer", params.FramesPerBuffer).Msg("portaudio open stream")
	p.stream, err = portaudio.OpenStream(params, callback)
	if err != nil {
		dbg(portaudio.Terminate())
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot open portaudio stream: %v", err)
	}
	if err = p.stream.Start(); err != nil {
		dbg(p.stream.Close())
		dbg(portaudio.Terminate())
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot start portaudio stream: %v", err)
	}
	return p, nil
}

func NewPortaudioInput(opts audioio.Options) (audioio.InputDevice, error) {
	capture := newCaptureRing(opts)
	p, err := openPortaudio(opts, true, capture)
	if err != nil {
		return nil, err
	}
	return &portaudioInput{portaudioDevice: p, captureRing: capture}, nil
}

func NewPortaudioOutput(opts audioio.Options) (audioio.OutputDevice, error) {
	return openPortaudio(opts, false, nil)
}

func (p *portaudioInput) Close() error {
	p.logDropped("portaudio input")
	return p.portaudioDevice.Close()
}

func (p *portaudioDevice) WriteSamples(src []float32) (int, error) {
	return p.ring.Push(src), nil
}

func (p *portaudioDevice) Close() error {
	var err error
	p.closeOnce.Do(func() {
		dbg(p.stream.Stop())
		err = p.stream.Close()
		dbg(portaudio.Terminate())
	})
	return err
}
