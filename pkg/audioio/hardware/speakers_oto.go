package hardware

import (
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// speakers keeps one oto player running for its whole life. The player pulls
// from ringReader which hands out silence whenever the relay is late, so the
// device never stops and WriteSamples only ever has to fill the ring.
type speakers struct {
	otoContext *oto.Context
	player     *oto.Player
	ring       *audioio.SampleRing

	closeOnce sync.Once
}

// ringReader is the io.Reader oto pulls float32 LE frames from.
type ringReader struct {
	ring    *audioio.SampleRing
	scratch []float32
}

func (r *ringReader) Read(p []byte) (int, error) {
	count := len(p) / 4
	if cap(r.scratch) < count {
		r.scratch = make([]float32, count)
	}
	samples := r.scratch[:count]
	r.ring.PopOrSilence(samples)
	encodeFloat32LE(p, samples)
	return count * 4, nil
}

// NewOtoSpeakers only supports the default output device; oto has no device selection.
func NewOtoSpeakers(opts audioio.Options) (audioio.OutputDevice, error) {
	if !opts.IsDefaultDevice() {
		log.Warn().Str("device", opts.DeviceName).Msg("oto can only use the default output device, ignoring device name")
	}
	op := &oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   opts.BufferDuration,
	}

	// Remember that you should **not** create more than one context
	log.Info().Msgf("setupOtoPlayer - will wait until ready")
	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot init oto context: %v", err)
	}
	<-readyChan // Wait for the audio hardware to be ready (about 200ms empirically)
	log.Info().Msgf("setupOtoPlayer - context ready")

	s := &speakers{
		otoContext: otoCtx,
		ring:       audioio.NewSampleRing(opts.RingSize()),
	}
	s.player = otoCtx.NewPlayer(&ringReader{ring: s.ring})
	s.player.SetBufferSize(opts.BufferSamples() * 4)
	s.player.Play()
	return s, nil
}

func (s *speakers) WriteSamples(src []float32) (int, error) {
	return s.ring.Push(src), nil
}

func (s *speakers) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if u := s.ring.Underrun(); u > 0 {
			log.Debug().Int64("silence_samples", u).Msg("speakers played silence while waiting for the relay")
		}
		s.player.Pause()
		err = s.player.Close()
	})
	return err
}
