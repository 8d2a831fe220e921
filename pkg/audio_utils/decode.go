package audio_utils

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrUnsupportedFormat = errors.New("unsupported audio file format")

// DecodeFile picks a decoder by file extension.
func DecodeFile(fs afero.Fs, path string) (*audio.IntBuffer, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "mp3":
		return DecodeFromMp3(data)
	case "flac":
		return DecodeFromFlac(data)
	case "wav":
		return DecodeFromWav(data)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
}

// DecodeFromMp3 returns interleaved 16 bit stereo, which is all go-mp3 produces.
func DecodeFromMp3(rawAudioBytes []byte) (*audio.IntBuffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(rawAudioBytes))
	if err != nil {
		return nil, errors.Wrap(err, "mp3.NewDecoder failed")
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode mp3 frames")
	}

	intData := make([]int, len(pcm)/2)
	for i := range intData {
		intData[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	log.Trace().Int("sample_rate", decoder.SampleRate()).Int("byte_size", len(pcm)).Msg("decoded mp3")
	return &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  decoder.SampleRate(),
			NumChannels: 2,
		},
		SourceBitDepth: 16,
	}, nil
}

func DecodeFromFlac(rawAudioBytes []byte) (*audio.IntBuffer, error) {
	stream, err := flac.New(bytes.NewReader(rawAudioBytes))
	if err != nil {
		return nil, errors.Wrap(err, "flac.New failed")
	}
	defer stream.Close()

	numChannels := int(stream.Info.NChannels)
	intData := make([]int, 0, int(stream.Info.NSamples)*numChannels)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse flac frame")
		}
		for i := 0; i < frame.Subframes[0].NSamples; i++ {
			for ch := 0; ch < numChannels; ch++ {
				intData = append(intData, int(frame.Subframes[ch].Samples[i]))
			}
		}
	}
	return &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(stream.Info.SampleRate),
			NumChannels: numChannels,
		},
		SourceBitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

func DecodeFromWav(rawAudioBytes []byte) (*audio.IntBuffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(rawAudioBytes))
	if !decoder.IsValidFile() {
		return nil, errors.Wrap(ErrUnsupportedFormat, "not a valid wav file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode wav pcm")
	}
	buf.SourceBitDepth = int(decoder.BitDepth)
	// 8 bit WAV is the only unsigned PCM we decode, shift it so every IntBuffer is signed.
	if buf.SourceBitDepth == 8 {
		for i := range buf.Data {
			buf.Data[i] -= 128
		}
	}
	return buf, nil
}
