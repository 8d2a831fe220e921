package relay

import (
	"io"
	"sync"
)

// scriptedSource returns the next scripted chunk per call, then io.EOF or
// (0, nil) forever depending on eof.
type scriptedSource struct {
	chunks [][]float32
	errs   map[int]error // call index -> error to return instead of a chunk
	eof    bool

	calls int
	reads []int
}

func (s *scriptedSource) ReadSamples(dst []float32) (int, error) {
	call := s.calls
	s.calls++
	if err, ok := s.errs[call]; ok {
		s.reads = append(s.reads, 0)
		return 0, err
	}
	if len(s.chunks) == 0 {
		s.reads = append(s.reads, 0)
		if s.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(dst, s.chunks[0])
	s.chunks = s.chunks[1:]
	s.reads = append(s.reads, n)
	return n, nil
}

// limitedSink accepts at most limit samples per call (all when limit is 0) and
// records every call. stallAfter > 0 makes it accept nothing once it has taken
// that many samples.
type limitedSink struct {
	mu         sync.Mutex
	limit      int
	stallAfter int
	short      int // when > 0 accept exactly this many and no error, once
	err        error

	got     []float32
	offered []int
}

func (s *limitedSink) WriteSamples(src []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offered = append(s.offered, len(src))
	if s.err != nil {
		return 0, s.err
	}
	if s.short > 0 {
		n := s.short
		s.short = 0
		s.got = append(s.got, src[:n]...)
		return n, nil
	}
	if s.stallAfter > 0 && len(s.got) >= s.stallAfter {
		return 0, nil
	}
	n := len(src)
	if s.limit > 0 && n > s.limit {
		n = s.limit
	}
	s.got = append(s.got, src[:n]...)
	return n, nil
}

func (s *limitedSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offered)
}

func (s *limitedSink) samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.got...)
}

// overreportingSink claims to take more than it was offered.
type overreportingSink struct{}

func (overreportingSink) WriteSamples(src []float32) (int, error) {
	return len(src) + 1, nil
}

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}
