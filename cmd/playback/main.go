package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/internal/utils"
	"github.com/petrzlen/audiorelay/pkg/audioio/hardware"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	cfg := config.Load()
	utils.SetupZerolog(cfg.LogLevel)
	ftl(cfg.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfg)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, relayfile.ErrFormat):
		// The capture process was cut off in the middle of a sample.
		log.Warn().Err(err).Msg("relay file ends with a partial sample")
	default:
		log.Error().Err(err).Msg("playback failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	fs := afero.NewOsFs()

	// Open before touching the device, a missing relay file is the common mistake.
	r, err := relayfile.Open(fs, cfg.RelayPath)
	if err != nil {
		return err
	}
	defer func() { dbg(r.Close()) }()

	buf, err := samplebuf.Allocate(cfg.BufferSamples)
	if err != nil {
		return err
	}
	defer func() { dbg(buf.Release()) }()

	speakers, err := hardware.OpenOutput(cfg.DeviceBackend, cfg.OutputOptions())
	if err != nil {
		return err
	}
	defer func() { dbg(speakers.Close()) }()

	p := relay.NewPlaybackPipeline(r, speakers, buf, cfg.RetryPolicy())
	log.Info().Str("relay_path", cfg.RelayPath).Int("buffer_samples", cfg.BufferSamples).Str("backend", cfg.DeviceBackend).Msg("playing back")
	err = p.Run(ctx)
	p.Stats().Log()
	log.Info().Str("relay_path", r.Name()).Int64("relay_position", r.SamplesRead()).Msg("playback stopped")
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
