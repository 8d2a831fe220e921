package audioio

import (
	"io"
	"testing"
	"time"

	"github.com/petrzlen/audiorelay/pkg/audio_utils"
	"github.com/spf13/afero"
)

func TestSliceInputQuietAtEnd(t *testing.T) {
	in := NewSliceInput([]float32{1, 2, 3, 4, 5}, 8000, FileInputOptions{})
	dst := make([]float32, 3)
	if n, err := in.ReadSamples(dst); n != 3 || err != nil {
		t.Fatalf("ReadSamples() = %d, %v", n, err)
	}
	if n, err := in.ReadSamples(dst); n != 2 || err != nil || dst[1] != 5 {
		t.Fatalf("ReadSamples() = %d, %v, %v", n, err, dst)
	}
	if n, err := in.ReadSamples(dst); n != 0 || err != nil {
		t.Errorf("ReadSamples() past end = %d, %v, want 0, nil", n, err)
	}
}

func TestSliceInputEOFAtEnd(t *testing.T) {
	in := NewSliceInput([]float32{1}, 8000, FileInputOptions{EOFAtEnd: true})
	dst := make([]float32, 4)
	if n, _ := in.ReadSamples(dst); n != 1 {
		t.Fatalf("ReadSamples() = %d, want 1", n)
	}
	if _, err := in.ReadSamples(dst); err != io.EOF {
		t.Errorf("ReadSamples() past end error = %v, want io.EOF", err)
	}
}

func TestSliceInputRealtimePacing(t *testing.T) {
	clock := time.Unix(1000, 0)
	in := NewSliceInput(make([]float32, 8000), 8000, FileInputOptions{
		Realtime: true,
		Now:      func() time.Time { return clock },
	})
	dst := make([]float32, 1000)
	if n, _ := in.ReadSamples(dst); n != 0 {
		t.Fatalf("ReadSamples() at start = %d, want 0", n)
	}
	clock = clock.Add(50 * time.Millisecond)
	if n, _ := in.ReadSamples(dst); n != 400 {
		t.Errorf("ReadSamples() after 50ms = %d, want 400", n)
	}
	clock = clock.Add(time.Second)
	if n, _ := in.ReadSamples(dst); n != 1000 {
		t.Errorf("ReadSamples() capped by dst = %d, want 1000", n)
	}
	if in.Remaining() != 6600 {
		t.Errorf("Remaining() = %d, want 6600", in.Remaining())
	}
}

func TestNewFileInputDecodesWav(t *testing.T) {
	fs := afero.NewMemMapFs()
	wavBytes, err := audio_utils.ConvertFloatSamplesToWav([]float32{0.5, -0.5, 0.25, 0}, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "in.wav", wavBytes, 0644); err != nil {
		t.Fatal(err)
	}
	in, err := NewFileInput(fs, "in.wav", Options{SampleRate: 16000}, FileInputOptions{EOFAtEnd: true})
	if err != nil {
		t.Fatal(err)
	}
	if in.SampleRate() != 16000 || in.Remaining() != 8 {
		t.Errorf("SampleRate() = %d, Remaining() = %d, want 16000 and 8", in.SampleRate(), in.Remaining())
	}

	if _, err := NewFileInput(fs, "missing.wav", Options{SampleRate: 8000}, FileInputOptions{}); err == nil {
		t.Error("NewFileInput(missing.wav) succeeded")
	}
}
