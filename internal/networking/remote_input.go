package networking

import (
	"context"
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RemoteInput receives a relay stream from a StreamServer and hands it out as samples.
// ReadSamples blocks until the next frame arrives, so a playback pipeline over it
// only sees end-of-stream once the server hangs up.
type RemoteInput struct {
	conn   *websocket.Conn
	frames chan []float32

	pending []float32
	pos     int

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// DialRemoteInput connects to a relay server at url, e.g. ws://host:8081/ws.
func DialRemoteInput(ctx context.Context, url string) (*RemoteInput, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot dial relay server %s", url)
	}
	log.Info().Str("url", url).Msg("connected to relay server")
	r := &RemoteInput{
		conn:   conn,
		frames: make(chan []float32, 64),
	}
	go r.readRoutine()
	return r, nil
}

func (r *RemoteInput) readRoutine() {
	defer close(r.frames)
	// Incomplete trailing bytes of one message continue in the next.
	var carry []byte
	for {
		messageType, msg, err := r.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway) {
				r.setErr(err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			log.Debug().Int("message_type", messageType).Msg("ignoring non-binary relay message")
			continue
		}
		carry = append(carry, msg...)
		count := len(carry) / relayfile.SampleSize
		if count == 0 {
			continue
		}
		samples := make([]float32, count)
		relayfile.DecodeSamples(WireOrder, samples, carry[:count*relayfile.SampleSize])
		carry = append(carry[:0], carry[count*relayfile.SampleSize:]...)
		r.frames <- samples
	}
}

func (r *RemoteInput) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// ReadSamples returns io.EOF after a clean hang up and the read error otherwise.
func (r *RemoteInput) ReadSamples(dst []float32) (int, error) {
	if r.pos == len(r.pending) {
		frame, ok := <-r.frames
		if !ok {
			r.errMu.Lock()
			defer r.errMu.Unlock()
			if r.err != nil {
				return 0, r.err
			}
			return 0, io.EOF
		}
		r.pending, r.pos = frame, 0
	}
	n := copy(dst, r.pending[r.pos:])
	r.pos += n
	return n, nil
}

func (r *RemoteInput) Close() error {
	var err error
	r.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		dbg(r.conn.WriteMessage(websocket.CloseMessage, msg))
		err = r.conn.Close()
	})
	return err
}
