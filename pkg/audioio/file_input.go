package audioio

import (
	"io"
	"time"

	"github.com/petrzlen/audiorelay/pkg/audio_utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// FileInput plays a decoded audio file as if it were a microphone.
type FileInput struct {
	samples    []float32
	pos        int
	sampleRate int

	realtime bool
	eofAtEnd bool
	now      func() time.Time
	started  time.Time
}

type FileInputOptions struct {
	// Realtime only hands out as many samples as would have been captured by now.
	Realtime bool
	// EOFAtEnd reports io.EOF once the file is used up, otherwise the input goes quiet.
	EOFAtEnd bool
	// Now is the clock used for Realtime pacing, time.Now when nil.
	Now func() time.Time
}

// NewFileInput decodes a wav, mp3 or flac file to mono at opts.SampleRate.
func NewFileInput(fs afero.Fs, path string, opts Options, fileOpts FileInputOptions) (*FileInput, error) {
	intBuffer, err := audio_utils.DecodeFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceInit, "file input %s: %v", path, err)
	}
	samples := audio_utils.ToMonoFloat32(intBuffer)
	samples, err = audio_utils.Resample(samples, intBuffer.Format.SampleRate, opts.SampleRate)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceInit, "file input %s: %v", path, err)
	}
	log.Info().Str("path", path).Int("source_sample_rate", intBuffer.Format.SampleRate).Int("source_channels", intBuffer.Format.NumChannels).Int("samples", len(samples)).Msg("file input ready")
	return NewSliceInput(samples, opts.SampleRate, fileOpts), nil
}

func NewSliceInput(samples []float32, sampleRate int, fileOpts FileInputOptions) *FileInput {
	now := fileOpts.Now
	if now == nil {
		now = time.Now
	}
	return &FileInput{
		samples:    samples,
		sampleRate: sampleRate,
		realtime:   fileOpts.Realtime,
		eofAtEnd:   fileOpts.EOFAtEnd,
		now:        now,
	}
}

func (f *FileInput) ReadSamples(dst []float32) (int, error) {
	remaining := len(f.samples) - f.pos
	if remaining == 0 {
		if f.eofAtEnd {
			return 0, io.EOF
		}
		return 0, nil
	}

	n := len(dst)
	if n > remaining {
		n = remaining
	}
	if f.realtime {
		if f.started.IsZero() {
			f.started = f.now()
		}
		due := int(f.now().Sub(f.started).Seconds()*float64(f.sampleRate)) - f.pos
		if due < 0 {
			due = 0
		}
		if n > due {
			n = due
		}
	}
	copy(dst, f.samples[f.pos:f.pos+n])
	f.pos += n
	return n, nil
}

func (f *FileInput) SampleRate() int {
	return f.sampleRate
}

func (f *FileInput) Remaining() int {
	return len(f.samples) - f.pos
}

func (f *FileInput) Close() error {
	return nil
}
