package networking

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petrzlen/audiorelay/pkg/relay"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// WireOrder is the byte order of samples on the websocket, independent of the host.
var WireOrder = binary.LittleEndian

var errListenerGone = errors.New("listener disconnected")

type StreamServerConfig struct {
	BufferSamples int
	Policy        relay.RetryPolicy
	// FollowPoll is how long to wait after end-of-stream before reading the relay
	// file again. Zero closes the connection at end-of-stream instead.
	FollowPoll time.Duration
	// QueueFrames is how many unsent frames a slow listener may have before
	// the pipeline sees partial transfers.
	QueueFrames int
}

// StreamServer serves the relay file over websockets, one playback pipeline per listener.
type StreamServer struct {
	ctx  context.Context
	fs   afero.Fs
	path string
	cfg  StreamServerConfig

	mu        sync.Mutex // protects listeners and closed, and orders wg.Add before wg.Wait
	listeners map[string]*relayListener
	closed    bool
	wg        sync.WaitGroup
}

func NewStreamServer(ctx context.Context, fs afero.Fs, path string, cfg StreamServerConfig) *StreamServer {
	if cfg.QueueFrames <= 0 {
		cfg.QueueFrames = 16
	}
	return &StreamServer{
		ctx:       ctx,
		fs:        fs,
		path:      path,
		cfg:       cfg,
		listeners: make(map[string]*relayListener),
	}
}

func (s *StreamServer) HandlerFunc() http.HandlerFunc {
	return NewWebsocketHandlerFunc(func(clientIP string) WebsocketMessageHandler {
		return s.addListener(clientIP)
	})
}

func (s *StreamServer) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Wait stops accepting listeners and blocks until every listener's pipeline has finished.
func (s *StreamServer) Wait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// relayListener is one websocket client. It is the playback sink of its own pipeline.
type relayListener struct {
	id       string
	clientIP string
	reader   chan []byte
	writer   chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

func (l *relayListener) GetReader() chan<- []byte {
	return l.reader
}

func (l *relayListener) GetWriter() <-chan []byte {
	return l.writer
}

// WriteSamples queues src as one frame, or takes nothing if the client is behind.
func (l *relayListener) WriteSamples(src []float32) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", errListenerGone, err)
	}
	frame := relayfile.AppendSamples(WireOrder, nil, src)
	select {
	case l.writer <- frame:
		return len(src), nil
	default:
		return 0, nil
	}
}

func (s *StreamServer) addListener(clientIP string) *relayListener {
	ctx, cancel := context.WithCancel(s.ctx)
	l := &relayListener{
		id:       uuid.New().String(),
		clientIP: clientIP,
		reader:   make(chan []byte),
		writer:   make(chan []byte, s.cfg.QueueFrames),
		ctx:      ctx,
		cancel:   cancel,
	}
	// Listeners have nothing to say; a closed reader means they left.
	go func() {
		for range l.reader {
		}
		cancel()
	}()

	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		log.Info().Str("client_ip", clientIP).Msg("relay server shutting down, turning listener away")
		cancel()
		close(l.writer)
		return l
	}
	s.listeners[l.id] = l
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.removeListener(l)
		s.stream(l)
	}()
	return l
}

func (s *StreamServer) removeListener(l *relayListener) {
	l.cancel()
	s.mu.Lock()
	delete(s.listeners, l.id)
	s.mu.Unlock()
}

// followSource turns a torn trailing sample into "nothing yet", the writer is
// still in the middle of appending it.
type followSource struct {
	*relayfile.Reader
}

func (f followSource) ReadSamples(dst []float32) (int, error) {
	n, err := f.Reader.ReadSamples(dst)
	if errors.Is(err, relayfile.ErrFormat) {
		return n, nil
	}
	return n, err
}

func (s *StreamServer) stream(l *relayListener) {
	defer close(l.writer)
	logger := log.With().Str("listener_id", l.id).Str("client_ip", l.clientIP).Logger()

	reader, err := relayfile.Open(s.fs, s.path)
	if err != nil {
		logger.Error().Err(err).Msg("cannot open relay file for listener")
		return
	}
	defer func() { dbg(reader.Close()) }()

	buf, err := samplebuf.Allocate(s.cfg.BufferSamples)
	if err != nil {
		logger.Error().Err(err).Msg("cannot allocate listener buffer")
		return
	}
	defer func() { dbg(buf.Release()) }()

	var src relay.Source = reader
	if s.cfg.FollowPoll > 0 {
		src = followSource{reader}
	}
	p := relay.NewPlaybackPipeline(src, l, buf, s.cfg.Policy)
	logger.Info().Str("path", s.path).Msg("listener streaming")
	for {
		err := p.Run(l.ctx)
		if err != nil {
			if l.ctx.Err() == nil && !errors.Is(err, errListenerGone) {
				logger.Error().Err(err).Msg("listener stream failed")
			}
			break
		}
		if s.cfg.FollowPoll <= 0 || !sleepCtx(l.ctx, s.cfg.FollowPoll) {
			break
		}
	}
	p.Stats().LogAt(zerolog.InfoLevel, "listener done")
	logger.Debug().Int64("relay_position", reader.SamplesRead()).Msg("listener cursor at hang up")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func dbg(err error) {
	if err != nil && !errors.Is(err, io.EOF) {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}
