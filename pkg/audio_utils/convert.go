package audio_utils

import (
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

const wavBitDepth = 16
const wavPCMFormat = 1

// FloatToIntBuffer scales [-1, 1] float samples to 16 bit integers, clipping anything louder.
func FloatToIntBuffer(samples []float32, sampleRate int, numChannels int) *audio.IntBuffer {
	intData := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		intData[i] = int(math.Round(v * math.MaxInt16))
	}
	return &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		SourceBitDepth: wavBitDepth,
	}
}

// ToMonoFloat32 normalizes signed integer PCM to [-1, 1] and averages interleaved channels down to one.
func ToMonoFloat32(buf *audio.IntBuffer) []float32 {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil
	}
	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		numChannels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = wavBitDepth
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / numChannels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		sum := 0.0
		for ch := 0; ch < numChannels; ch++ {
			sum += float64(buf.Data[f*numChannels+ch]) / scale
		}
		out[f] = float32(sum / float64(numChannels))
	}
	return out
}

// ConvertFloatSamplesToWav encodes float samples as a 16 bit PCM WAV.
func ConvertFloatSamplesToWav(samples []float32, sampleRate int, numChannels int) (result []byte, err error) {
	return EncodeToWav(FloatToIntBuffer(samples, sampleRate, numChannels), wavBitDepth, wavPCMFormat)
}

// EncodeToWav writes inputBuffer with its own sample rate and channel count.
func EncodeToWav(inputBuffer *audio.IntBuffer, outputBitDepth int, audioFormat int) (result []byte, err error) {
	if len(inputBuffer.Data) == 0 {
		return // Nothing to do
	}

	// Create a new in-memory file system
	fs := afero.NewMemMapFs()
	// Create an in-memory file to support io.WriteSeeker needed for NewEncoder which is needed for finalizing headers.
	inMemoryFilename := "in-memory-output.wav"
	inMemoryFile, err := fs.Create(inMemoryFilename)
	if err != nil {
		return nil, fmt.Errorf("cannot create in-memory wav file %w", err)
	}
	// We will call Close ourselves.

	sampleRate := inputBuffer.Format.SampleRate
	numChannels := inputBuffer.Format.NumChannels
	wavEncoder := wav.NewEncoder(inMemoryFile, sampleRate, outputBitDepth, numChannels, audioFormat)
	log.Debug().Int("int_data_length", len(inputBuffer.Data)).Int("sample_rate", sampleRate).Int("source_bit_depth", inputBuffer.SourceBitDepth).Int("output_bit_depth", outputBitDepth).Int("num_channels", numChannels).Int("audio_format", audioFormat).Msg("encoding int stream output as a wav")
	if err = wavEncoder.Write(inputBuffer); err != nil {
		err = fmt.Errorf("cannot encode samples as wav %w", err)
		return
	}

	// Close the wavEncoder to flush any remaining data and finalize the WAV file
	if err = wavEncoder.Close(); err != nil {
		err = fmt.Errorf("cannot finish wav encoding %w", err)
		return
	}

	// We close and re-open the file so we can properly read-all of its contents.
	dbg(inMemoryFile.Close())
	inMemoryFileReopen, err := fs.Open(inMemoryFilename)
	if err != nil {
		return nil, fmt.Errorf("cannot reopen in-memory wav file %w", err)
	}
	defer inMemoryFileReopen.Close()
	result, err = io.ReadAll(inMemoryFileReopen)
	if err == nil && len(result) == 0 {
		err = fmt.Errorf("wav output is empty when input was not")
		return
	}
	return
}

// Resample converts mono samples between rates with a polyphase anti-aliasing FIR.
func Resample(samples []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}
	// The prototype FIR is sized by the upsampling factor, decimation needs it longer
	// for the transition band to end below the new Nyquist.
	taps := resample.QualityProfile(resample.QualityBalanced).TapsPerPhase
	if toRate > 0 && fromRate > toRate {
		taps *= (fromRate + toRate - 1) / toRate
	}
	resampler, err := resample.NewForRates(float64(fromRate), float64(toRate), resample.WithTapsPerPhase(taps))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resample %d Hz to %d Hz", fromRate, toRate)
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	processed := resampler.Process(in)
	out := make([]float32, len(processed))
	for i, s := range processed {
		out[i] = float32(s)
	}
	up, down := resampler.Ratio()
	log.Debug().Int("from_rate", fromRate).Int("to_rate", toRate).Int("up", up).Int("down", down).Int("taps_per_phase", resampler.TapsPerPhase()).Msg("resampled")
	return out, nil
}
