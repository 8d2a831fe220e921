package relay

// Source hands out up to len(dst) samples per call.
// (0, nil) means nothing is available right now, io.EOF means nothing ever will be.
type Source interface {
	ReadSamples(dst []float32) (int, error)
}

// Sink accepts up to len(src) samples per call and reports how many it took.
// Devices may take fewer than offered, files take all or fail.
type Sink interface {
	WriteSamples(src []float32) (int, error)
}
