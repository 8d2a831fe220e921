package relayfile

import (
	"encoding/binary"
	"math"
)

// SampleSize is the encoded size of one float32 sample.
const SampleSize = 4

// FileOrder is the byte order of samples in the relay file. The file is only
// ever shared between processes on the same machine, so no order is fixed.
var FileOrder binary.ByteOrder = binary.NativeEndian

// EncodeSamples writes src into dst, which must hold len(src)*SampleSize bytes.
func EncodeSamples(order binary.ByteOrder, dst []byte, src []float32) {
	for i, s := range src {
		order.PutUint32(dst[i*SampleSize:], math.Float32bits(s))
	}
}

// DecodeSamples fills dst from src, which must hold len(dst)*SampleSize bytes.
func DecodeSamples(order binary.ByteOrder, dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(order.Uint32(src[i*SampleSize:]))
	}
}

// AppendSamples is EncodeSamples onto the end of dst.
func AppendSamples(order binary.ByteOrder, dst []byte, src []float32) []byte {
	start := len(dst)
	dst = growBytes(dst, start+len(src)*SampleSize)
	EncodeSamples(order, dst[start:], src)
	return dst
}

// growBytes returns b resized to n, reusing its backing array when it is big enough.
func growBytes(b []byte, n int) []byte {
	if n <= cap(b) {
		return b[:n]
	}
	grown := make([]byte, n)
	copy(grown, b)
	return grown
}
