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

// Package layout describes how semantic data structures (scalars, fixed
// arrays, runtime-sized arrays, named structs, nested combinations of the
// above) occupy a device buffer under a storage layout rule set matching
// GLSL std430/std140 sizing and alignment.
package layout

// Rule selects which GLSL storage-layout sizing/alignment convention a
// Layout follows. go-wrs only ever targets std430 storage buffers, but the
// rule is still explicit on every Layout because it changes array stride
// rounding (std140 always rounds array/struct strides up to 16 bytes;
// std430 does not for arrays of scalars).
type Rule int

const (
	Std430 Rule = iota
	Std140
)

// Layout describes the byte footprint of a value in a device buffer.
// Fixed layouts (primitives, fixed arrays, structs of fixed layouts) know
// their Size() up front; layouts that end in a runtime-sized array must be
// asked via SizeN on the enclosing Array/Struct.
type Layout interface {
	// Size returns the byte footprint of a fixed-size layout. It panics if
	// called on an unsized layout (use SizeN on UnsizedArray, or Struct.SizeN
	// when the struct's last attribute is unsized).
	Size() uint64
	// Align returns the layout's base alignment under its Rule.
	Align() uint64
	// Fixed reports whether Size() is valid (false for UnsizedArray and for a
	// Struct whose last attribute is unsized).
	Fixed() bool
}

func roundUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// Primitive is a single 4-byte scalar: float32 or uint32 on the wire.
type Primitive struct{ rule Rule }

// NewPrimitive builds a 4-byte scalar layout under rule.
func NewPrimitive(rule Rule) Primitive { return Primitive{rule: rule} }

func (Primitive) Size() uint64  { return 4 }
func (Primitive) Align() uint64 { return 4 }
func (Primitive) Fixed() bool   { return true }

// Array is a compile-time-sized array of N elements of Elem.
type Array struct {
	rule Rule
	elem Layout
	n    uint64
}

// NewArray builds a fixed-length array layout.
func NewArray(rule Rule, elem Layout, n uint64) Array {
	return Array{rule: rule, elem: elem, n: n}
}

// Stride is the per-element byte step, including any padding the rule
// imposes. Under std140 every array stride is rounded up to 16 bytes; under
// std430 the element size is rounded up to the element's own alignment.
func (a Array) Stride() uint64 {
	align := a.elem.Align()
	if a.rule == Std140 && align < 16 {
		align = 16
	}
	return roundUp(a.elem.Size(), align)
}

func (a Array) Size() uint64  { return a.Stride() * a.n }
func (a Array) Align() uint64 { return a.Stride() }
func (a Array) Fixed() bool   { return true }
func (a Array) N() uint64     { return a.n }

// Elem returns the element layout.
func (a Array) Elem() Layout { return a.elem }

// UnsizedArray is a runtime-length array; its element count is supplied by
// the caller at upload/allocate time via N, not baked into the layout.
type UnsizedArray struct {
	rule Rule
	elem Layout
}

// NewUnsizedArray builds an unsized-array layout.
func NewUnsizedArray(rule Rule, elem Layout) UnsizedArray {
	return UnsizedArray{rule: rule, elem: elem}
}

func (u UnsizedArray) Stride() uint64 {
	align := u.elem.Align()
	if u.rule == Std140 && align < 16 {
		align = 16
	}
	return roundUp(u.elem.Size(), align)
}

// SizeN returns the byte footprint for n elements.
func (u UnsizedArray) SizeN(n uint64) uint64 { return u.Stride() * n }
func (u UnsizedArray) Size() uint64          { panic("layout: Size() called on unsized array; use SizeN") }
func (u UnsizedArray) Align() uint64         { return u.Stride() }
func (u UnsizedArray) Fixed() bool           { return false }
func (u UnsizedArray) Elem() Layout          { return u.elem }

// Attribute names one member of a Struct.
type Attribute struct {
	Name   string
	Layout Layout
}

// Struct lays out named attributes in declaration order under std430/std140
// alignment rules. At most the last attribute may be unsized.
type Struct struct {
	rule    Rule
	attrs   []Attribute
	offsets map[string]uint64
	order   []string
	align   uint64
	size    uint64 // valid only if fixed
	fixed   bool
}

// NewStruct computes offsets for attrs under rule. It panics if an unsized
// attribute appears anywhere but last, matching the GLSL restriction that
// only the final member of a buffer block may be runtime-sized.
func NewStruct(rule Rule, attrs ...Attribute) *Struct {
	s := &Struct{
		rule:    rule,
		attrs:   attrs,
		offsets: make(map[string]uint64, len(attrs)),
		order:   make([]string, 0, len(attrs)),
		fixed:   true,
	}

	var offset uint64
	var maxAlign uint64 = 4
	for i, a := range attrs {
		if !a.Layout.Fixed() && i != len(attrs)-1 {
			panic("layout: only the final struct attribute may be unsized")
		}
		align := a.Layout.Align()
		if rule == Std140 && align < 16 {
			if _, isStruct := a.Layout.(*Struct); isStruct {
				align = 16
			}
		}
		if align > maxAlign {
			maxAlign = align
		}
		offset = roundUp(offset, align)
		s.offsets[a.Name] = offset
		s.order = append(s.order, a.Name)
		if a.Layout.Fixed() {
			offset += a.Layout.Size()
		} else {
			s.fixed = false
		}
	}
	s.align = maxAlign
	if s.fixed {
		s.size = roundUp(offset, maxAlign)
	}
	return s
}

func (s *Struct) Size() uint64 {
	if !s.fixed {
		panic("layout: Size() called on a struct with a trailing unsized attribute; use SizeN")
	}
	return s.size
}

// SizeN returns the byte footprint when the trailing unsized attribute (if
// any) holds n elements. Valid on fixed structs too, where it ignores n.
func (s *Struct) SizeN(n uint64) uint64 {
	if s.fixed {
		return s.size
	}
	last := s.attrs[len(s.attrs)-1]
	off := s.offsets[last.Name]
	return roundUp(off+last.Layout.(UnsizedArray).SizeN(n), s.align)
}

func (s *Struct) Align() uint64 { return s.align }
func (s *Struct) Fixed() bool   { return s.fixed }

// Offset returns the byte offset of the named attribute within the struct.
func (s *Struct) Offset(name string) uint64 {
	off, ok := s.offsets[name]
	if !ok {
		panic("layout: unknown attribute " + name)
	}
	return off
}

// Attribute returns the layout of the named attribute.
func (s *Struct) Attribute(name string) Layout {
	for _, a := range s.attrs {
		if a.Name == name {
			return a.Layout
		}
	}
	panic("layout: unknown attribute " + name)
}

// Names returns attribute names in declaration order.
func (s *Struct) Names() []string { return s.order }
