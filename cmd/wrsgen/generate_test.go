package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmitsOneConstructorPerDirective(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pipelines_gen.go")
	require.NoError(t, Generate("testdata/pipelines.go", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	src := string(data)

	assert.True(t, strings.HasPrefix(src, Header("testdata/pipelines.go")))
	assert.Contains(t, src, "package pipelines")
	assert.Contains(t, src, `"github.com/ajroetker/go-wrs/psa"`)
	assert.Contains(t, src, "func NewDefault(")
	assert.Contains(t, src, "func NewSmall(")
	assert.Regexp(t, `WorkgroupSize:\s+64,`, src)
	assert.Regexp(t, `SplitSize:\s+2,`, src)
}

func TestGenerateRejectsFileWithNoDirectives(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.go")
	require.NoError(t, os.WriteFile(input, []byte("package empty\n"), 0o644))

	err := Generate(input, filepath.Join(dir, "empty_gen.go"))
	assert.Error(t, err)
}
