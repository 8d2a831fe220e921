package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/internal/networking"
	"github.com/petrzlen/audiorelay/internal/utils"
	"github.com/petrzlen/audiorelay/pkg/audioio/hardware"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func main() {
	discover := flag.Bool("discover", false, "find the relay server over mdns instead of RELAY_SERVER_URL")
	flag.Parse()

	cfg := config.Load()
	utils.SetupZerolog(cfg.LogLevel)
	ftl(cfg.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *discover); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("listen failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, discover bool) error {
	url := cfg.ServerURL
	if discover {
		browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		found, err := networking.Discover(browseCtx)
		cancel()
		if err != nil {
			return err
		}
		url = found
	}

	remote, err := networking.DialRemoteInput(ctx, url)
	if err != nil {
		return err
	}
	defer func() { dbg(remote.Close()) }()
	// ReadSamples waits for the server, closing is the only way to interrupt it.
	go func() {
		<-ctx.Done()
		dbg(remote.Close())
	}()

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

	p := relay.NewPlaybackPipeline(remote, speakers, buf, cfg.RetryPolicy())
	log.Info().Str("url", url).Msg("listening")
	err = p.Run(ctx)
	p.Stats().Log()
	if err != nil {
		return errors.Wrap(err, "relay stream")
	}
	return nil
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
