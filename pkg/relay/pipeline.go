package relay

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/petrzlen/audiorelay/pkg/models"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/rs/zerolog/log"
)

type Direction int

const (
	Capture Direction = iota
	Playback
)

func (d Direction) String() string {
	switch d {
	case Capture:
		return "capture"
	case Playback:
		return "playback"
	default:
		return "unknown"
	}
}

type State int

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "terminated"
}

// Pipeline repeats one transfer step over a buffer it owns for its whole life.
// Nothing but the buffer carries over between iterations.
//
// The capture direction keeps going through empty reads until ctx ends or the
// source reports io.EOF. The playback direction stops at the first read that
// yields nothing, which is its only way to notice the writer went away.
type Pipeline struct {
	direction Direction
	src       Source
	dst       Sink
	buf       *samplebuf.Buffer
	policy    RetryPolicy

	mu    sync.Mutex // protects state and stats, read by other goroutines
	state State
	stats models.RelayStats
}

func NewCapturePipeline(src Source, dst Sink, buf *samplebuf.Buffer, policy RetryPolicy) *Pipeline {
	return newPipeline(Capture, src, dst, buf, policy)
}

func NewPlaybackPipeline(src Source, dst Sink, buf *samplebuf.Buffer, policy RetryPolicy) *Pipeline {
	return newPipeline(Playback, src, dst, buf, policy)
}

func newPipeline(direction Direction, src Source, dst Sink, buf *samplebuf.Buffer, policy RetryPolicy) *Pipeline {
	return &Pipeline{
		direction: direction,
		src:       src,
		dst:       dst,
		buf:       buf,
		policy:    policy,
		state:     Running,
		stats:     models.NewRelayStats(direction.String()),
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Stats() models.RelayStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run blocks until the pipeline terminates. A playback pipeline that reached
// end-of-stream and a capture source that reported io.EOF return nil.
// Run may be called again on a playback pipeline to resume from the same cursor.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if p.buf.Released() {
		return errors.Wrap(samplebuf.ErrReleased, "cannot run pipeline")
	}
	p.setState(Running)
	log.Debug().Str("pipeline", p.direction.String()).Int("buffer_samples", p.buf.Cap()).Msg("relay pipeline running")
	defer func() {
		p.setState(Terminated)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("pipeline", p.direction.String()).Msg("relay pipeline failed")
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var res StepResult
		if p.direction == Capture {
			res, err = CaptureStep(p.src, p.dst, p.buf)
		} else {
			res, err = PlaybackStep(ctx, p.src, p.dst, p.buf, p.policy)
		}
		p.record(res)

		if err != nil {
			if p.direction == Capture && errors.Is(err, io.EOF) {
				log.Info().Str("pipeline", p.direction.String()).Msg("capture source exhausted")
				return nil
			}
			return err
		}
		if res.Read > 0 {
			continue
		}
		if p.direction == Playback {
			log.Debug().Str("pipeline", p.direction.String()).Msg("end of stream")
			return nil
		}
		if err := pause(ctx, p.policy.RetryInterval); err != nil {
			return err
		}
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	if s == Terminated {
		p.stats.FinishedAt = time.Now()
	} else {
		p.stats.FinishedAt = time.Time{}
	}
}

func (p *Pipeline) record(res StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Iterations++
	if res.Read <= 0 {
		p.stats.EmptyIterations++
	}
	p.stats.SamplesRead += int64(res.Read)
	p.stats.SamplesWritten += int64(res.Written)
	p.stats.SinkCalls += int64(res.SinkCalls)
}
