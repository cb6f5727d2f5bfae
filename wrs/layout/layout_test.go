package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasEntryLayoutStride(t *testing.T) {
	assert.Equal(t, uint64(0), AliasEntryLayout.Offset("p"))
	assert.Equal(t, uint64(4), AliasEntryLayout.Offset("a"))
	assert.Equal(t, uint64(8), AliasEntryLayout.Size())
}

func TestSplitEntryLayoutStride(t *testing.T) {
	assert.Equal(t, uint64(0), SplitEntryLayout.Offset("i"))
	assert.Equal(t, uint64(4), SplitEntryLayout.Offset("j"))
	assert.Equal(t, uint64(8), SplitEntryLayout.Offset("spill"))
	assert.Equal(t, uint64(12), SplitEntryLayout.Size())
}

func TestScanDecoupledStateLayoutPadding(t *testing.T) {
	assert.Equal(t, uint64(16), ScanDecoupledStateLayout.Size())
}

func TestPartitionDecoupledStateLayoutPadding(t *testing.T) {
	assert.Equal(t, uint64(32), PartitionDecoupledStateLayout.Size())
}

func TestArrayStd430ScalarStrideIsUnpadded(t *testing.T) {
	arr := NewArray(Std430, NewPrimitive(Std430), 4)
	assert.Equal(t, uint64(4), arr.Stride())
	assert.Equal(t, uint64(16), arr.Size())
}

func TestArrayOfStructsStridePadsToStructAlign(t *testing.T) {
	arr := NewArray(Std430, AliasEntryLayout, 3)
	assert.Equal(t, uint64(8), arr.Stride())
	assert.Equal(t, arr.Stride()*3, arr.Size())
}

func TestUnsizedArraySizeN(t *testing.T) {
	u := NewUnsizedArray(Std430, NewPrimitive(Std430))
	assert.Equal(t, uint64(40), u.SizeN(10))
	assert.Panics(t, func() { _ = u.Size() })
}

func TestStructOnlyLastAttributeMayBeUnsized(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	NewStruct(Std430,
		Attribute{Name: "bad", Layout: NewUnsizedArray(Std430, NewPrimitive(Std430))},
		Attribute{Name: "after", Layout: NewPrimitive(Std430)},
	)
}

func TestStructTrailingUnsizedSizeN(t *testing.T) {
	s := NewStruct(Std430,
		Attribute{Name: "heavyCount", Layout: NewPrimitive(Std430)},
		Attribute{Name: "weights", Layout: NewUnsizedArray(Std430, NewPrimitive(Std430))},
	)
	require.False(t, s.Fixed())
	assert.Equal(t, uint64(4+4*5), s.SizeN(5))
}
