package csvsink_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/wrs/csvsink"
)

func TestAliasTableSinkWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	sink, err := csvsink.NewAliasTable(&buf)
	require.NoError(t, err)

	require.NoError(t, sink.PushTable([]pack.Entry{
		{P: 0.5, A: 1},
		{P: 1, A: 1},
	}))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,p,a", lines[0])
	assert.Equal(t, "0,0.5,1", lines[1])
	assert.Equal(t, "1,1,1", lines[2])
}

func TestSampleSinkPreservesDrawOrder(t *testing.T) {
	var buf bytes.Buffer
	sink, err := csvsink.NewSamples(&buf, csvsink.WithFlushEvery(1))
	require.NoError(t, err)

	require.NoError(t, sink.PushSamples([]uint32{3, 1, 4, 1, 5}))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "k,sample", lines[0])
	assert.Equal(t, "2,4", lines[3])
}

func TestWeightSinkMarksPartition(t *testing.T) {
	var buf bytes.Buffer
	sink, err := csvsink.NewWeights(&buf)
	require.NoError(t, err)

	require.NoError(t, sink.PushWeight(0, 3.0, true))
	require.NoError(t, sink.PushWeight(1, 1.0, false))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "0,3,heavy", lines[1])
	assert.Equal(t, "1,1,light", lines[2])
}

func TestSinkSeparatorOption(t *testing.T) {
	var buf bytes.Buffer
	sink, err := csvsink.New(&buf, []string{"a", "b"}, csvsink.WithSeparator(';'))
	require.NoError(t, err)
	require.NoError(t, sink.Flush())

	assert.Equal(t, "a;b\n", buf.String())
}
