package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/petrzlen/audiorelay/pkg/samplebuf"
	"github.com/spf13/afero"
)

// countingReader records how many samples each read of the relay file returned.
type countingReader struct {
	*relayfile.Reader
	reads []int
}

func (c *countingReader) ReadSamples(dst []float32) (int, error) {
	n, err := c.Reader.ReadSamples(dst)
	c.reads = append(c.reads, n)
	return n, err
}

func writeRelayFile(t *testing.T, fs afero.Fs, samples []float32) {
	t.Helper()
	w, err := relayfile.Create(fs, "buffer")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteSamples(samples); err != nil {
		t.Fatal(err)
	}
	w.Close()
}

// 100 samples through a 40 sample buffer: reads of 40, 40, 20, then 0 ends it.
func TestPlaybackPipelineDrainsFileThenTerminates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRelayFile(t, fs, seq(0, 100))

	r, err := relayfile.Open(fs, "buffer")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	src := &countingReader{Reader: r}
	sink := &limitedSink{}
	buf := mustAllocate(t, 40)

	p := NewPlaybackPipeline(src, sink, buf, RetryPolicy{})
	if p.State() != Running {
		t.Fatalf("initial State() = %v, want running", p.State())
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.State() != Terminated {
		t.Errorf("State() = %v, want terminated", p.State())
	}

	wantReads := []int{40, 40, 20, 0}
	if len(src.reads) != len(wantReads) {
		t.Fatalf("reads = %v, want %v", src.reads, wantReads)
	}
	for i := range wantReads {
		if src.reads[i] != wantReads[i] {
			t.Fatalf("reads = %v, want %v", src.reads, wantReads)
		}
	}
	if got := len(sink.samples()); got != 100 {
		t.Errorf("samples played = %d, want 100", got)
	}
	if sink.calls() != 3 {
		t.Errorf("device calls = %d, want one per non-empty read", sink.calls())
	}

	stats := p.Stats()
	if stats.SamplesRead != 100 || stats.SamplesWritten != 100 || stats.Iterations != 4 || stats.EmptyIterations != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if buf.Cap() != 40 {
		t.Errorf("buffer capacity changed to %d", buf.Cap())
	}
}

// stateCheckingSink fails the test if the pipeline is not running while it
// is still being fed.
type stateCheckingSink struct {
	t *testing.T
	p *Pipeline
	n int
}

func (s *stateCheckingSink) WriteSamples(src []float32) (int, error) {
	if s.p.State() != Running {
		s.t.Errorf("pipeline %v while samples were still flowing", s.p.State())
	}
	s.n += len(src)
	return len(src), nil
}

func TestPlaybackPipelineTerminatesOnlyAtEmptyRead(t *testing.T) {
	buf := mustAllocate(t, 16)
	src := &scriptedSource{chunks: [][]float32{seq(0, 16), seq(16, 3), seq(19, 16)}}
	sink := &stateCheckingSink{t: t}
	p := NewPlaybackPipeline(src, sink, buf, RetryPolicy{})
	sink.p = p

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.n != 35 {
		t.Errorf("played %d samples, want 35", sink.n)
	}
	if src.calls != 4 {
		t.Errorf("source calls = %d, want 4", src.calls)
	}
}

func TestPlaybackPipelineStopsOnStalledDevice(t *testing.T) {
	buf := mustAllocate(t, 16)
	src := &scriptedSource{chunks: [][]float32{seq(0, 16), seq(16, 16)}}
	sink := &limitedSink{limit: 4, stallAfter: 20}
	p := NewPlaybackPipeline(src, sink, buf, RetryPolicy{MaxStalledAttempts: 10})

	err := p.Run(context.Background())
	if !errors.Is(err, ErrDeviceStalled) {
		t.Fatalf("Run() error = %v, want ErrDeviceStalled", err)
	}
	if p.State() != Terminated {
		t.Errorf("State() = %v, want terminated", p.State())
	}
}

// A microphone with nothing to give: no appends, no error, loop keeps going.
func TestCapturePipelineIdlesWithoutInput(t *testing.T) {
	buf := mustAllocate(t, 40)
	src := &scriptedSource{}
	sink := &limitedSink{}
	p := NewCapturePipeline(src, sink, buf, RetryPolicy{RetryInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if sink.calls() != 0 {
		t.Errorf("sink calls = %d, want 0", sink.calls())
	}
	stats := p.Stats()
	if stats.Iterations < 2 {
		t.Errorf("Iterations = %d, want the loop to keep going", stats.Iterations)
	}
	if stats.EmptyIterations != stats.Iterations {
		t.Errorf("EmptyIterations = %d, want %d", stats.EmptyIterations, stats.Iterations)
	}
}

func TestCapturePipelineStopsOnDeviceError(t *testing.T) {
	buf := mustAllocate(t, 8)
	boom := errors.New("capture failed")
	src := &scriptedSource{chunks: [][]float32{seq(0, 8)}, errs: map[int]error{1: boom}}
	sink := &limitedSink{}
	p := NewCapturePipeline(src, sink, buf, RetryPolicy{})

	err := p.Run(context.Background())
	if !errors.Is(err, ErrTransfer) || !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want ErrTransfer wrapping %v", err, boom)
	}
	if len(sink.samples()) != 8 {
		t.Errorf("sink got %d samples before the failure, want 8", len(sink.samples()))
	}
}

func TestRunRejectsReleasedBuffer(t *testing.T) {
	buf, err := samplebuf.Allocate(4)
	if err != nil {
		t.Fatal(err)
	}
	buf.Release()
	p := NewPlaybackPipeline(&scriptedSource{}, &limitedSink{}, buf, RetryPolicy{})
	if err := p.Run(context.Background()); !errors.Is(err, samplebuf.ErrReleased) {
		t.Errorf("Run() error = %v, want ErrReleased", err)
	}
}

// Microphone -> file -> speaker with a device that takes odd-sized chunks.
func TestCaptureThenPlaybackThroughRelayFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := relayfile.Create(fs, "buffer")
	if err != nil {
		t.Fatal(err)
	}
	mic := &scriptedSource{
		chunks: [][]float32{seq(0, 25), seq(25, 40), seq(65, 7), seq(72, 40)},
		eof:    true,
	}
	capture := NewCapturePipeline(mic, w, mustAllocate(t, 40), RetryPolicy{})
	if err := capture.Run(context.Background()); err != nil {
		t.Fatalf("capture Run() error = %v", err)
	}
	w.Close()

	r, err := relayfile.Open(fs, "buffer")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	speaker := &limitedSink{limit: 9}
	playback := NewPlaybackPipeline(r, speaker, mustAllocate(t, 32), RetryPolicy{MaxStalledAttempts: 1})
	if err := playback.Run(context.Background()); err != nil {
		t.Fatalf("playback Run() error = %v", err)
	}

	got := speaker.samples()
	if len(got) != 112 {
		t.Fatalf("played %d samples, want 112", len(got))
	}
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d = %v, want %d", i, v, i)
		}
	}
}
