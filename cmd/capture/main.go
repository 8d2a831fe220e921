package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/internal/utils"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/petrzlen/audiorelay/pkg/audioio/hardware"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	from := flag.String("from", "", "capture from a wav/mp3/flac file in real time instead of the microphone")
	flag.Parse()

	cfg := config.Load()
	utils.SetupZerolog(cfg.LogLevel)
	ftl(cfg.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *from); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("capture failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, from string) error {
	fs := afero.NewOsFs()

	buf, err := samplebuf.Allocate(cfg.BufferSamples)
	if err != nil {
		return err
	}
	defer func() { dbg(buf.Release()) }()

	var mic audioio.InputDevice
	if from != "" {
		mic, err = audioio.NewFileInput(fs, from, cfg.InputOptions(), audioio.FileInputOptions{Realtime: true, EOFAtEnd: true})
	} else {
		mic, err = hardware.OpenInput(cfg.DeviceBackend, cfg.InputOptions())
	}
	if err != nil {
		return err
	}
	defer func() { dbg(mic.Close()) }()

	// The relay file is truncated here, a playback process must be started after this.
	w, err := relayfile.Create(fs, cfg.RelayPath)
	if err != nil {
		return err
	}
	defer func() { dbg(w.Close()) }()

	p := relay.NewCapturePipeline(mic, w, buf, cfg.RetryPolicy())
	log.Info().Str("relay_path", cfg.RelayPath).Int("buffer_samples", cfg.BufferSamples).Str("backend", cfg.DeviceBackend).Msg("capturing, Ctrl+C to stop")
	err = p.Run(ctx)
	p.Stats().Log()
	log.Info().Str("relay_path", w.Name()).Int64("relay_samples", w.SamplesWritten()).Msg("capture stopped")
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
