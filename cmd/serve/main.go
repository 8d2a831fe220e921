package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/internal/networking"
	"github.com/petrzlen/audiorelay/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	cfg := config.Load()
	utils.SetupZerolog(cfg.LogLevel)
	ftl(cfg.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamServer := networking.NewStreamServer(ctx, afero.NewOsFs(), cfg.RelayPath, networking.StreamServerConfig{
		BufferSamples: cfg.BufferSamples,
		Policy:        cfg.RetryPolicy(),
		FollowPoll:    cfg.FollowPoll,
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", streamServer.HandlerFunc())
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	if cfg.Zeroconf {
		shutdown, err := networking.Advertise(cfg.ListenAddr, cfg.RelayPath)
		if err != nil {
			log.Warn().Err(err).Msg("cannot advertise over mdns, listeners need RELAY_SERVER_URL")
		} else {
			defer shutdown()
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dbg(server.Shutdown(shutdownCtx))
	}()

	log.Info().Str("listen_addr", cfg.ListenAddr).Str("relay_path", cfg.RelayPath).Msg("relay server listening on /ws")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		ftl(err)
	}
	// Hijacked websocket connections outlive Shutdown, their pipelines stop on ctx.
	streamServer.Wait()
	log.Info().Msg("relay server stopped")
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
