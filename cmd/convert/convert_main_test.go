package main

import (
	"context"
	"testing"
	"time"

	"github.com/petrzlen/audiorelay/internal/config"
	"github.com/petrzlen/audiorelay/pkg/audio_utils"
	"github.com/petrzlen/audiorelay/pkg/audioio"
	"github.com/petrzlen/audiorelay/pkg/relayfile"
	"github.com/spf13/afero"
)

func testConfig() config.Config {
	return config.Config{
		RelayPath:      "buffer",
		BufferDuration: 30 * time.Millisecond,
		BufferSamples:  64,
		SampleRate:     8000,
		DeviceBackend:  audioio.BackendMalgo,
	}
}

func TestImportThenExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig()
	in := []float32{0.5, -0.5, 0.25, 0, 0.125}
	for len(in) < 300 {
		in = append(in, in[len(in)%5])
	}
	wavData, err := audio_utils.ConvertFloatSamplesToWav(in, cfg.SampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "in.wav", wavData, 0644); err != nil {
		t.Fatal(err)
	}

	if err := importFile(context.Background(), fs, cfg, "in.wav", false); err != nil {
		t.Fatalf("importFile() error = %v", err)
	}
	relayed, err := relayfile.ReadAll(fs, cfg.RelayPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(relayed) != len(in) {
		t.Fatalf("relay file holds %d samples, want %d", len(relayed), len(in))
	}

	if err := exportWav(fs, cfg, "out.wav"); err != nil {
		t.Fatalf("exportWav() error = %v", err)
	}
	out, err := afero.ReadFile(fs, "out.wav")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(wavData) {
		t.Errorf("exported wav (%d bytes) differs from the imported one (%d bytes)", len(out), len(wavData))
	}
}

func TestExportMissingRelayFile(t *testing.T) {
	if err := exportWav(afero.NewMemMapFs(), testConfig(), "out.wav"); err == nil {
		t.Error("exportWav() without a relay file succeeded")
	}
}
