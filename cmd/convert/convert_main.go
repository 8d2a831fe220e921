package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/internal/utils"
	"github.com/petrzlen/audiorelay/pkg/audio_utils"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const usage = `usage:
  convert export -out recording.wav   relay file -> 16 bit wav
  convert import -in song.mp3         wav/mp3/flac -> relay file`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := config.Load()
	utils.SetupZerolog(cfg.LogLevel)
	ftl(cfg.Validate())
	fs := afero.NewOsFs()

	switch os.Args[1] {
	case "export":
		flags := flag.NewFlagSet("export", flag.ExitOnError)
		out := flags.String("out", "relay.wav", "wav file to write")
		ftl(flags.Parse(os.Args[2:]))
		ftl(exportWav(fs, cfg, *out))
	case "import":
		flags := flag.NewFlagSet("import", flag.ExitOnError)
		in := flags.String("in", "", "wav, mp3 or flac file to read")
		realtime := flags.Bool("realtime", false, "append at playback speed, so a listener can follow along")
		ftl(flags.Parse(os.Args[2:]))
		if *in == "" {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ftl(importFile(ctx, fs, cfg, *in, *realtime))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func exportWav(fs afero.Fs, cfg config.Config, out string) error {
	samples, err := relayfile.ReadAll(fs, cfg.RelayPath)
	if err != nil {
		return err
	}
	wavData, err := audio_utils.ConvertFloatSamplesToWav(samples, cfg.SampleRate, 1)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, out, wavData, 0644); err != nil {
		return err
	}
	log.Info().Int("samples", len(samples)).Int("sample_rate", cfg.SampleRate).Str("out", out).Msg("exported relay file")
	return nil
}

// importFile runs a capture pipeline with the decoded file standing in for the microphone.
func importFile(ctx context.Context, fs afero.Fs, cfg config.Config, in string, realtime bool) error {
	src, err := audioio.NewFileInput(fs, in, cfg.InputOptions(), audioio.FileInputOptions{Realtime: realtime, EOFAtEnd: true})
	if err != nil {
		return err
	}
	buf, err := samplebuf.Allocate(cfg.BufferSamples)
	if err != nil {
		return err
	}
	defer func() { dbg(buf.Release()) }()

	w, err := relayfile.Create(fs, cfg.RelayPath)
	if err != nil {
		return err
	}
	defer func() { dbg(w.Close()) }()

	p := relay.NewCapturePipeline(src, w, buf, cfg.RetryPolicy())
	err = p.Run(ctx)
	p.Stats().Log()
	log.Info().Str("in", in).Str("relay_path", w.Name()).Int64("relay_samples", w.SamplesWritten()).Msg("imported into relay file")
	return err
}

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

func ftl(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("sth essential failed")
		debug.PrintStack()
	}
}
