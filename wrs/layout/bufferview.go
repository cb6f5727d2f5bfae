package layout

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ajroetker/go-wrs/wrs"
)

// BarrierState is the auxiliary flyweight BufferView instances share: the
// three write epochs a buffer can be sitting in. It is
// shared by strong reference between a view and every sub-view taken from
// it via Attribute, so a write recorded through one sees through the other
// without double-barriering.
type BarrierState struct {
	mu                sync.Mutex
	postHostWrite     bool
	postTransferWrite bool
	postShaderWrite   bool
}

func (b *BarrierState) pendingKind() (wrs.BarrierKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.postShaderWrite:
		return wrs.BarrierComputeToCompute, true
	case b.postTransferWrite:
		return wrs.BarrierTransferToCompute, true
	case b.postHostWrite:
		return wrs.BarrierHostToCompute, true
	default:
		return 0, false
	}
}

func (b *BarrierState) clear() {
	b.mu.Lock()
	b.postHostWrite = false
	b.postTransferWrite = false
	b.postShaderWrite = false
	b.mu.Unlock()
}

func (b *BarrierState) setShaderWrite() {
	b.mu.Lock()
	b.postShaderWrite = true
	b.mu.Unlock()
}

func (b *BarrierState) setTransferWrite() {
	b.mu.Lock()
	b.postTransferWrite = true
	b.mu.Unlock()
}

func (b *BarrierState) setHostWrite() {
	b.mu.Lock()
	b.postHostWrite = true
	b.mu.Unlock()
}

// View pairs a device buffer with a Layout and a shared BarrierState. Layout
// is typically *Struct, Array, or Primitive; the zero value of n is ignored by
// fixed layouts and gives the element count for unsized ones.
type View struct {
	Buffer  wrs.Buffer
	Layout  Layout
	n       uint64
	offset  uint64 // byte offset of this view's layout within Buffer
	barrier *BarrierState
}

// NewView creates a root view over the whole of buf, with its own fresh
// barrier state.
func NewView(buf wrs.Buffer, l Layout, n uint64) *View {
	return &View{Buffer: buf, Layout: l, n: n, barrier: &BarrierState{}}
}

// Size is the byte footprint this view occupies.
func (v *View) Size() uint64 {
	if v.Layout.Fixed() {
		return v.Layout.Size()
	}
	switch l := v.Layout.(type) {
	case UnsizedArray:
		return l.SizeN(v.n)
	case *Struct:
		return l.SizeN(v.n)
	default:
		panic("layout: unsized layout of unsupported kind")
	}
}

// Attribute returns a sub-view over the named attribute of a struct-layout
// view, sharing this view's barrier state so sibling sub-views observe the
// same write epoch.
func (v *View) Attribute(name string) *View {
	s, ok := v.Layout.(*Struct)
	if !ok {
		panic("layout: Attribute called on a non-struct view")
	}
	return &View{
		Buffer:  v.Buffer,
		Layout:  s.Attribute(name),
		n:       v.n,
		offset:  v.offset + s.Offset(name),
		barrier: v.barrier,
	}
}

// ExpectHostRead inserts a barrier from whichever prior write epoch is set,
// then clears it, before the host maps this buffer for reading.
func (v *View) ExpectHostRead(cmd wrs.CommandBuffer) {
	if kind, pending := v.barrier.pendingKind(); pending {
		cmd.Barrier(kind)
		v.barrier.clear()
	}
}

// ExpectComputeRead inserts a barrier from whichever prior write epoch is
// set, then clears it, before a compute dispatch reads this buffer.
func (v *View) ExpectComputeRead(cmd wrs.CommandBuffer) {
	if kind, pending := v.barrier.pendingKind(); pending {
		cmd.Barrier(kind)
		v.barrier.clear()
	}
}

// ExpectComputeWrite declares that a compute dispatch is about to write
// this buffer; subsequent readers will see postShaderWrite.
func (v *View) ExpectComputeWrite() { v.barrier.setShaderWrite() }

// ExpectTransferWrite declares that a buffer copy is about to write this
// buffer.
func (v *View) ExpectTransferWrite() { v.barrier.setTransferWrite() }

// ExpectHostWrite declares that a host upload is about to write this
// buffer.
func (v *View) ExpectHostWrite() { v.barrier.setHostWrite() }

// CopyTo records a buffer-to-buffer copy from v to dst, inserting the
// necessary barrier first and marking dst postTransferWrite.
func (v *View) CopyTo(cmd wrs.CommandBuffer, dst *View) {
	v.ExpectComputeRead(cmd)
	cmd.CopyBuffer(v.Buffer, dst.Buffer, v.Size())
	dst.ExpectTransferWrite()
}

// Zero records a zero fill of the whole underlying buffer (not only this
// view's byte range), after inserting whatever barrier its current epoch
// demands.
func (v *View) Zero(cmd wrs.CommandBuffer) {
	v.ExpectComputeRead(cmd)
	cmd.Fill(v.Buffer, 0)
	v.ExpectComputeWrite()
}

// UploadFloats encodes a []float32 into the mapped buffer at this view's
// offset, under the view's layout (which must be an Array/UnsizedArray of
// Primitive).
func (v *View) UploadFloats(data []float32) error {
	mapped, err := v.Buffer.Map()
	if err != nil {
		return fmt.Errorf("layout: upload: %w", err)
	}
	defer v.Buffer.Unmap()
	stride := elemStride(v.Layout)
	for i, f := range data {
		off := v.offset + uint64(i)*stride
		binary.LittleEndian.PutUint32(mapped[off:], math.Float32bits(f))
	}
	v.ExpectHostWrite()
	return nil
}

// DownloadFloats decodes n float32s from the mapped buffer at this view's
// offset.
func (v *View) DownloadFloats(n int) ([]float32, error) {
	mapped, err := v.Buffer.Map()
	if err != nil {
		return nil, fmt.Errorf("layout: download: %w", err)
	}
	defer v.Buffer.Unmap()
	stride := elemStride(v.Layout)
	out := make([]float32, n)
	for i := range out {
		off := v.offset + uint64(i)*stride
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(mapped[off:]))
	}
	return out, nil
}

// UploadUint32s encodes a []uint32 into the mapped buffer at this view's
// offset.
func (v *View) UploadUint32s(data []uint32) error {
	mapped, err := v.Buffer.Map()
	if err != nil {
		return fmt.Errorf("layout: upload: %w", err)
	}
	defer v.Buffer.Unmap()
	stride := elemStride(v.Layout)
	for i, u := range data {
		off := v.offset + uint64(i)*stride
		binary.LittleEndian.PutUint32(mapped[off:], u)
	}
	v.ExpectHostWrite()
	return nil
}

// DownloadUint32s decodes n uint32s from the mapped buffer at this view's
// offset.
func (v *View) DownloadUint32s(n int) ([]uint32, error) {
	mapped, err := v.Buffer.Map()
	if err != nil {
		return nil, fmt.Errorf("layout: download: %w", err)
	}
	defer v.Buffer.Unmap()
	stride := elemStride(v.Layout)
	out := make([]uint32, n)
	for i := range out {
		off := v.offset + uint64(i)*stride
		out[i] = binary.LittleEndian.Uint32(mapped[off:])
	}
	return out, nil
}

func elemStride(l Layout) uint64 {
	switch t := l.(type) {
	case Array:
		return t.Stride()
	case UnsizedArray:
		return t.Stride()
	case Primitive:
		return 4
	default:
		return l.Align()
	}
}
