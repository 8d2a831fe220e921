// Go cannot talk to the sound card on its own, so capture goes through
// miniaudio (malgo) and its driver thread pushes into a SampleRing.
package hardware

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

type microphone struct {
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	*captureRing

	recordingStart time.Time
	closeOnce      sync.Once
}

func initMalgoContext() (*malgo.AllocatedContext, error) {
	log.Info().Msg("malgo init context (miniaudio)")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Msg(strings.Replace("malgo devices: "+message, "\n", "", -1))
	})
	if err != nil {
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot init malgo context: %v", err)
	}
	return ctx, nil
}

// findMalgoDevice returns nil for the default device.
func findMalgoDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceInfo, error) {
	devices, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot list malgo devices: %v", err)
	}
	for i := range devices {
		if devices[i].Name() == name {
			return &devices[i], nil
		}
	}
	return nil, errors.Wrapf(audioio.ErrDeviceInit, "no device named %q", name)
}

// NewMalgoMicrophone starts capturing immediately, you should defer Close.
func NewMalgoMicrophone(opts audioio.Options) (audioio.InputDevice, error) {
	ctx, err := initMalgoContext()
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(opts.Channels)
	deviceConfig.SampleRate = uint32(opts.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(opts.BufferDuration.Milliseconds())
	deviceConfig.Alsa.NoMMap = 1
	if !opts.IsDefaultDevice() {
		info, err := findMalgoDevice(ctx, malgo.Capture, opts.DeviceName)
		if err != nil {
			dbg(ctx.Uninit())
			ctx.Free()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	m := &microphone{
		malgoContext: ctx,
		captureRing:  newCaptureRing(opts),
	}

	// Runs on the driver thread, roughly every PeriodSizeInMilliseconds.
	onRecvFrames := func(_, pInputSamples []byte, framecount uint32) {
		m.push(decodeFloat32LE(pInputSamples), "malgo microphone")
	}
	m.device, err = malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		dbg(ctx.Uninit())
		ctx.Free()
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot init malgo device with config %v: %v", deviceConfig, err)
	}

	log.Info().Int("sample_rate", opts.SampleRate).Str("device", opts.DeviceName).Msg("malgo START recording...")
	m.recordingStart = time.Now()
	if err = m.device.Start(); err != nil {
		m.device.Uninit()
		dbg(ctx.Uninit())
		ctx.Free()
		return nil, errors.Wrapf(audioio.ErrDeviceInit, "cannot start malgo device: %v", err)
	}
	return m, nil
}

func (m *microphone) Close() error {
	m.closeOnce.Do(func() {
		log.Info().Dur("recording_duration", time.Since(m.recordingStart)).Msg("malgo STOP recording")
		dbg(m.device.Stop())
		m.logDropped("malgo microphone")
		m.device.Uninit()
		dbg(m.malgoContext.Uninit())
		m.malgoContext.Free()
	})
	return nil
}

func decodeFloat32LE(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out
}

func encodeFloat32LE(dst []byte, src []float32) {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(s))
	}
}
