package models

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RelayStats counts what one pipeline moved. Owned by the pipeline goroutine,
// callers get copies.
type RelayStats struct {
	Pipeline string

	Iterations      int64
	EmptyIterations int64 // source had nothing to give
	SamplesRead     int64
	SamplesWritten  int64
	SinkCalls       int64 // > Iterations when the sink only took partial chunks

	StartedAt  time.Time
	FinishedAt time.Time
}

func NewRelayStats(pipeline string) RelayStats {
	return RelayStats{
		Pipeline:  pipeline,
		StartedAt: time.Now(),
	}
}

// Elapsed is the running time, up to now for a pipeline that has not finished.
func (s RelayStats) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s RelayStats) Log() {
	s.LogAt(zerolog.InfoLevel, "relay stats")
}

func (s RelayStats) LogAt(level zerolog.Level, msg string) {
	log.WithLevel(level).
		Str("pipeline", s.Pipeline).
		Int64("iterations", s.Iterations).
		Int64("empty_iterations", s.EmptyIterations).
		Int64("samples_read", s.SamplesRead).
		Int64("samples_written", s.SamplesWritten).
		Int64("sink_calls", s.SinkCalls).
		Dur("elapsed", s.Elapsed()).
		Msg(msg)
}
