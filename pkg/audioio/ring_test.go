package audioio

import (
	"testing"
	"time"
)

func TestSampleRingWrapsAround(t *testing.T) {
	r := NewSampleRing(5)
	if n := r.Push([]float32{1, 2, 3, 4}); n != 4 {
		t.Fatalf("Push() = %d, want 4", n)
	}
	out := make([]float32, 3)
	if n := r.Pop(out); n != 3 || out[0] != 1 || out[2] != 3 {
		t.Fatalf("Pop() = %d %v", n, out)
	}
	// head is at 3, so this push wraps.
	if n := r.Push([]float32{5, 6, 7}); n != 3 {
		t.Fatalf("Push() = %d, want 3", n)
	}
	out = make([]float32, 10)
	n := r.Pop(out)
	want := []float32{4, 5, 6, 7}
	if n != len(want) {
		t.Fatalf("Pop() = %d, want %d", n, len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Pop() = %v, want %v", out[:n], want)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSampleRingRefusesOverflow(t *testing.T) {
	r := NewSampleRing(4)
	if n := r.Push([]float32{1, 2, 3}); n != 3 {
		t.Fatalf("Push() = %d", n)
	}
	if n := r.Push([]float32{4, 5, 6}); n != 1 {
		t.Errorf("Push() on nearly full ring = %d, want 1", n)
	}
	if n := r.Push([]float32{7}); n != 0 {
		t.Errorf("Push() on full ring = %d, want 0", n)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
}

func TestSampleRingPopOrSilence(t *testing.T) {
	r := NewSampleRing(8)
	r.Push([]float32{0.5, 0.25})
	out := []float32{9, 9, 9, 9}
	if n := r.PopOrSilence(out); n != 2 {
		t.Fatalf("PopOrSilence() = %d, want 2", n)
	}
	want := []float32{0.5, 0.25, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("PopOrSilence() filled %v, want %v", out, want)
		}
	}
	if u := r.Underrun(); u != 2 {
		t.Errorf("Underrun() = %d, want 2", u)
	}
}

func TestOptionsSizes(t *testing.T) {
	opts := Options{SampleRate: 44100, Channels: 1, BufferDuration: 30 * time.Millisecond}
	if got := opts.BufferSamples(); got != 1323 {
		t.Errorf("BufferSamples() = %d, want 1323", got)
	}
	if got := opts.RingSize(); got != 2646 {
		t.Errorf("RingSize() = %d, want 2646", got)
	}
	if !DefaultOptions().IsDefaultDevice() {
		t.Error("DefaultOptions() should pick the default device")
	}
	if (Options{DeviceName: "hw:1,0"}).IsDefaultDevice() {
		t.Error("named device reported as default")
	}
}
