// Package wire decodes and encodes the little-endian float32/uint32 arrays
// every reference kernel reads and writes through its mapped buffer bytes.
// Real shader code does this implicitly through typed storage-buffer
// declarations; the reference device has to do it explicitly in Go.
package wire

import (
	"encoding/binary"
	"math"
)

// Floats32 reinterprets the first n*4 bytes of b as a []float32.
func Floats32(b []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// PutFloats32 encodes vs into b starting at byte 0.
func PutFloats32(b []byte, vs []float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
}

// PutFloat32At encodes v at byte offset i*4 in b.
func PutFloat32At(b []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
}

// Float32At decodes the float32 at byte offset i*4 in b.
func Float32At(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

// Uint32s reinterprets the first n*4 bytes of b as a []uint32.
func Uint32s(b []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// PutUint32s encodes vs into b starting at byte 0.
func PutUint32s(b []byte, vs []uint32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
}

// PutUint32At encodes v at byte offset i*4 in b.
func PutUint32At(b []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(b[i*4:], v)
}

// Uint32At decodes the uint32 at byte offset i*4 in b.
func Uint32At(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i*4:])
}
