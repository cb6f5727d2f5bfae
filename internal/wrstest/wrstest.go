// Copyright 2025 go-wrs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wrstest collects the buffer-plumbing and alias-table-law helpers
// every component's tests repeat by hand: wiring a []float32/[]uint32 slice
// into a refdevice buffer, reading one back, and checking Walker's
// alias-table invariant holds for a finished table.
package wrstest

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/wrs"
)

// FloatBuffer allocates a host-visible buffer sized for values and writes
// them into it.
func FloatBuffer(t *testing.T, dev *refdevice.Device, values []float32) wrs.Buffer {
	t.Helper()
	buf, err := dev.AllocateBuffer(4*uint64(len(values)), wrs.BufferUsageHostVisible)
	require.NoError(t, err)
	m, err := buf.Map()
	require.NoError(t, err)
	wire.PutFloats32(m, values)
	require.NoError(t, buf.Unmap())
	return buf
}

// Uint32Buffer allocates a host-visible buffer sized for values and writes
// them into it.
func Uint32Buffer(t *testing.T, dev *refdevice.Device, values []uint32) wrs.Buffer {
	t.Helper()
	buf, err := dev.AllocateBuffer(4*uint64(len(values)), wrs.BufferUsageHostVisible)
	require.NoError(t, err)
	m, err := buf.Map()
	require.NoError(t, err)
	wire.PutUint32s(m, values)
	require.NoError(t, buf.Unmap())
	return buf
}

// ScalarFloatBuffer allocates a single-float buffer, typically used for a
// Mean output.
func ScalarFloatBuffer(t *testing.T, dev *refdevice.Device) wrs.Buffer {
	t.Helper()
	buf, err := dev.AllocateBuffer(4, wrs.BufferUsageHostVisible)
	require.NoError(t, err)
	return buf
}

// ScalarUint32Buffer allocates a single-uint32 buffer, typically used for a
// HeavyCount output.
func ScalarUint32Buffer(t *testing.T, dev *refdevice.Device) wrs.Buffer {
	t.Helper()
	buf, err := dev.AllocateBuffer(4, wrs.BufferUsageHostVisible)
	require.NoError(t, err)
	return buf
}

// ReadFloat32 maps buf and returns the float32 at element index 0.
func ReadFloat32(t *testing.T, buf wrs.Buffer) float32 {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	defer buf.Unmap()
	return wire.Float32At(m, 0)
}

// ReadUint32 maps buf and returns the uint32 at element index 0.
func ReadUint32(t *testing.T, buf wrs.Buffer) uint32 {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	defer buf.Unmap()
	return wire.Uint32At(m, 0)
}

// ReadFloats32 maps buf and returns its first n float32 elements.
func ReadFloats32(t *testing.T, buf wrs.Buffer, n int) []float32 {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	defer buf.Unmap()
	out := make([]float32, n)
	copy(out, wire.Floats32(m, n))
	return out
}

// ReadAliasTable maps buf and decodes its first n pack.Entry values (8
// bytes each: a float32 probability followed by a uint32 alias index).
func ReadAliasTable(t *testing.T, buf wrs.Buffer, n int) []pack.Entry {
	t.Helper()
	m, err := buf.Map()
	require.NoError(t, err)
	defer buf.Unmap()
	entries := make([]pack.Entry, n)
	for i := range entries {
		off := i * 8
		entries[i] = pack.Entry{P: wire.Float32At(m[off:], 0), A: wire.Uint32At(m[off:], 1)}
	}
	return entries
}

// Contributions computes contrib(i) = A[i].p + sum_{j: A[j].a==i}(1-A[j].p),
// the quantity Walker's alias-table law requires to equal W[i]/mean for
// every finished alias table, regardless of which pack variant produced
// it.
func Contributions(entries []pack.Entry) []float32 {
	contrib := make([]float32, len(entries))
	for i, e := range entries {
		contrib[i] += e.P
		contrib[e.A] += 1 - e.P
	}
	return contrib
}

// AssertAliasTableLaw fails t unless every entry's probability lies in
// [0,1] and every index's contribution matches weights[i]/mean within tol.
func AssertAliasTableLaw(t *testing.T, entries []pack.Entry, weights []float32, mean float32, tol float64) {
	t.Helper()
	for i, e := range entries {
		if e.P < 0 || e.P > 1 {
			t.Errorf("entry %d: probability %v out of [0,1]", i, e.P)
		}
	}
	contrib := Contributions(entries)
	for i, w := range weights {
		want := float64(w / mean)
		got := float64(contrib[i])
		if diff := want - got; diff > tol || diff < -tol {
			t.Errorf("index %d: contribution %v, want %v (within %v)", i, got, want, tol)
		}
	}
}

// PositiveWeights is a testing/quick-compatible generator for weight slices
// with no pathological values (no zero, NaN, or Inf), used by property
// tests that need many independently-shrunk random inputs rather than one
// hand-picked fixture.
type PositiveWeights []float32

// Generate implements quick.Generator, producing between 1 and 63 weights
// in [1, 1000).
func (PositiveWeights) Generate(rand *rand.Rand, size int) reflect.Value {
	n := 1 + rand.Intn(63)
	ws := make(PositiveWeights, n)
	for i := range ws {
		ws[i] = float32(1 + rand.Float64()*999)
	}
	return reflect.ValueOf(ws)
}

var _ quick.Generator = PositiveWeights{}
