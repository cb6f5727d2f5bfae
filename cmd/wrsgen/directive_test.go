package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectivesReadsEveryConfigLine(t *testing.T) {
	pkg, directives, err := ParseDirectives("testdata/pipelines.go")
	require.NoError(t, err)

	assert.Equal(t, "pipelines", pkg)
	require.Len(t, directives, 2)

	assert.Equal(t, "Default", directives[0].Name)
	assert.Equal(t, uint32(64), directives[0].Fields["workgroupSize"])
	assert.Equal(t, uint32(4096), directives[0].Fields["maxBlockCount"])

	assert.Equal(t, "Small", directives[1].Name)
	assert.Equal(t, uint32(2), directives[1].Fields["splitSize"])
}

func TestParseConfigLineRejectsUnknownField(t *testing.T) {
	_, err := parseConfigLine("Broken bogusField=1")
	assert.Error(t, err)
}

func TestParseConfigLineRejectsNonNumericValue(t *testing.T) {
	_, err := parseConfigLine("Broken workgroupSize=not-a-number")
	assert.Error(t, err)
}
