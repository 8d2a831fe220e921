package relay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
)

var (
	ErrTransfer      = errors.New("sample transfer failed")
	ErrShortWrite    = errors.New("sink accepted fewer samples than captured")
	ErrDeviceStalled = errors.New("device stopped accepting samples")
)

// RetryPolicy bounds how long a step keeps retrying a sink that makes no progress.
// The zero value retries forever without sleeping.
type RetryPolicy struct {
	// MaxStalledAttempts fails a drain after this many consecutive calls that moved nothing.
	MaxStalledAttempts int
	// StallTimeout fails a drain once no progress was made for this long.
	StallTimeout time.Duration
	// RetryInterval is slept after every unproductive call; capture also sleeps it after an empty read.
	RetryInterval time.Duration
}

// StepResult is what one transfer attempt moved.
type StepResult struct {
	Read      int // samples taken from the source, the attempt's transfer count
	Written   int // samples accepted by the sink
	SinkCalls int
}

// CaptureStep moves whatever the source has, at most the buffer capacity, to the
// sink as a single append. An empty read skips the sink entirely.
func CaptureStep(src Source, dst Sink, buf *samplebuf.Buffer) (res StepResult, err error) {
	samples := buf.Samples()
	n, err := src.ReadSamples(samples)
	if errors.Is(err, io.EOF) {
		return res, io.EOF
	}
	if err != nil {
		return res, fmt.Errorf("%w: capture: %w", ErrTransfer, err)
	}
	if n <= 0 {
		return res, nil
	}
	if n > len(samples) {
		return res, fmt.Errorf("%w: source reported %d samples into a buffer of %d", ErrTransfer, n, len(samples))
	}
	res.Read = n

	w, err := dst.WriteSamples(samples[:n])
	res.SinkCalls = 1
	res.Written = w
	if err != nil {
		return res, err
	}
	if w != n {
		return res, errors.Wrapf(ErrShortWrite, "%d of %d samples", w, n)
	}
	return res, nil
}

// PlaybackStep reads up to the buffer capacity and drains every sample read into the sink.
// A read with nothing in it (including io.EOF) returns a zero Read and no error.
func PlaybackStep(ctx context.Context, src Source, dst Sink, buf *samplebuf.Buffer, policy RetryPolicy) (res StepResult, err error) {
	samples := buf.Samples()
	n, err := src.ReadSamples(samples)
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if n <= 0 {
		return res, nil
	}
	if n > len(samples) {
		return res, fmt.Errorf("%w: source reported %d samples into a buffer of %d", ErrTransfer, n, len(samples))
	}
	res.Read = n
	res.Written, res.SinkCalls, err = Drain(ctx, dst, samples[:n], policy)
	return res, err
}

// Drain hands samples to dst until all of them are accepted, retrying partial writes
// from where the previous call stopped. Nothing past len(samples) is ever offered.
func Drain(ctx context.Context, dst Sink, samples []float32, policy RetryPolicy) (written, calls int, err error) {
	n := len(samples)
	stalled := 0
	var stalledSince time.Time

	for written < n {
		w, err := dst.WriteSamples(samples[written:])
		calls++
		if err != nil {
			return written, calls, fmt.Errorf("%w: playback: %w", ErrTransfer, err)
		}
		if w < 0 || w > n-written {
			return written, calls, fmt.Errorf("%w: sink reported %d of %d samples", ErrTransfer, w, n-written)
		}
		if w > 0 {
			written += w
			stalled = 0
			continue
		}

		stalled++
		if stalled == 1 {
			stalledSince = time.Now()
		}
		if policy.MaxStalledAttempts > 0 && stalled >= policy.MaxStalledAttempts {
			return written, calls, errors.Wrapf(ErrDeviceStalled, "%d attempts without progress, %d of %d samples delivered", stalled, written, n)
		}
		if policy.StallTimeout > 0 && time.Since(stalledSince) >= policy.StallTimeout {
			return written, calls, errors.Wrapf(ErrDeviceStalled, "no progress for %s, %d of %d samples delivered", time.Since(stalledSince), written, n)
		}
		if err := pause(ctx, policy.RetryInterval); err != nil {
			return written, calls, err
		}
	}
	return written, calls, nil
}

// pause sleeps for d unless ctx ends first. A zero d only checks ctx.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
