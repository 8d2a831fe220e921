// Package relayfile implements both ends of the relay file: a flat, headerless
// concatenation of float32 samples written by one process and read by another.
//
// There is no end-of-stream marker. A reader treats "no whole sample available
// right now" as the end of the stream, which races with a writer that is merely
// slow: a momentarily drained file looks exactly like a finished one.
package relayfile

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const FileMode os.FileMode = 0660

var (
	ErrStorage = errors.New("relay file storage error")
	// ErrFormat means the stream ended inside a sample. The partial bytes stay
	// buffered in the Reader, so a later read can still complete the sample.
	ErrFormat = errors.New("relay file ends with a partial sample")
)

// Writer appends samples to the relay file. Not safe for concurrent use.
type Writer struct {
	file    afero.File
	scratch []byte
	written int64
}

// Create opens path for read-write, creating or truncating it.
func Create(fs afero.Fs, path string) (*Writer, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorage, path, err)
	}
	return &Writer{file: f}, nil
}

// WriteSamples appends all of samples as one write and returns how many landed.
func (w *Writer) WriteSamples(samples []float32) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	w.scratch = growBytes(w.scratch, len(samples)*SampleSize)
	EncodeSamples(FileOrder, w.scratch, samples)

	n, err := w.file.Write(w.scratch)
	w.written += int64(n)
	if err != nil {
		return n / SampleSize, fmt.Errorf("%w: write %s: %w", ErrStorage, w.file.Name(), err)
	}
	return n / SampleSize, nil
}

// SamplesWritten is the total over the Writer's lifetime.
func (w *Writer) SamplesWritten() int64 {
	return w.written / SampleSize
}

func (w *Writer) Name() string {
	return w.file.Name()
}

func (w *Writer) Close() error {
	return w.file.Close()
}

// Reader reads samples sequentially from the relay file. Not safe for concurrent use.
type Reader struct {
	file    afero.File
	scratch []byte
	pending int // bytes of an incomplete sample kept at the front of scratch
	read    int64
}

// Open opens path read-only; a missing file is an ErrStorage.
func Open(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, path, err)
	}
	return &Reader{file: f}, nil
}

// ReadSamples issues one read of up to len(dst) samples.
// It returns io.EOF when no whole sample is available and nothing is pending,
// ErrFormat when only a partial sample is available.
func (r *Reader) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * SampleSize
	if cap(r.scratch) < want {
		r.scratch = growBytes(r.scratch[:r.pending], want)
	}
	r.scratch = r.scratch[:want]

	n, err := r.file.Read(r.scratch[r.pending:want])
	total := r.pending + n
	whole := total / SampleSize
	DecodeSamples(FileOrder, dst[:whole], r.scratch[:whole*SampleSize])
	r.pending = copy(r.scratch, r.scratch[whole*SampleSize:total])
	r.read += int64(whole)

	switch {
	case err == nil || errors.Is(err, io.EOF):
		if whole > 0 {
			return whole, nil
		}
		if r.pending > 0 {
			return 0, errors.Wrapf(ErrFormat, "%d trailing bytes in %s", r.pending, r.file.Name())
		}
		if err == nil {
			return 0, nil
		}
		return 0, io.EOF
	default:
		return whole, fmt.Errorf("%w: read %s: %w", ErrStorage, r.file.Name(), err)
	}
}

// SamplesRead is the total over the Reader's lifetime.
func (r *Reader) SamplesRead() int64 {
	return r.read
}

func (r *Reader) Name() string {
	return r.file.Name()
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll drains the relay file at path from the start.
func ReadAll(fs afero.Fs, path string) ([]float32, error) {
	r, err := Open(fs, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []float32
	chunk := make([]float32, 4096)
	for {
		n, err := r.ReadSamples(chunk)
		out = append(out, chunk[:n]...)
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
