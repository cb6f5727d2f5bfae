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

package main

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"strings"
	"text/template"

	"golang.org/x/tools/go/ast/astutil"
)

const psaImportPath = "github.com/ajroetker/go-wrs/psa"

var outputTemplate = template.Must(template.New("wrsgen").Parse(`// Code generated by wrsgen from {{.Source}}; DO NOT EDIT.

package {{.Package}}

import (
	"github.com/ajroetker/go-wrs/wrs"
)
{{range .Directives}}
// New{{.Name}} builds a PSA pipeline pinned to the {{.Name}} tiling declared
// by a //wrsgen:config directive in {{$.Source}}.
func New{{.Name}}(ctx wrs.Context, compiler wrs.ShaderCompiler, alloc wrs.Allocator) (*psa.PSA, error) {
	return psa.New(ctx, compiler, alloc, psa.Config{
		WorkgroupSize:         {{index .Fields "workgroupSize"}},
		Rows:                  {{index .Fields "rows"}},
		ParallelLookbackDepth: {{index .Fields "parallelLookbackDepth"}},
		MaxBlockCount:         {{index .Fields "maxBlockCount"}},
		SplitSize:             {{index .Fields "splitSize"}},
		SplitWorkgroupSize:    {{index .Fields "splitWorkgroupSize"}},
		PackWorkgroupSize:     {{index .Fields "packWorkgroupSize"}},
	})
}
{{end}}`))

type templateDirective struct {
	Name   string
	Fields map[string]uint32
}

type templateData struct {
	Source     string
	Package    string
	Directives []templateDirective
}

// Generate reads inputFile's //wrsgen:config directives and writes a
// sibling file of pinned PSA constructors to outputFile.
func Generate(inputFile, outputFile string) error {
	pkg, directives, err := ParseDirectives(inputFile)
	if err != nil {
		return err
	}
	if len(directives) == 0 {
		return fmt.Errorf("wrsgen: %s declares no //wrsgen:config directives", inputFile)
	}

	data := templateData{Source: inputFile, Package: pkg}
	for _, d := range directives {
		fields := make(map[string]uint32, len(fieldOrder))
		for _, f := range fieldOrder {
			fields[f] = d.Fields[f]
		}
		data.Directives = append(data.Directives, templateDirective{Name: d.Name, Fields: fields})
	}

	var buf bytes.Buffer
	if err := outputTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("wrsgen: render template: %w", err)
	}

	src, err := addPSAImport(buf.Bytes())
	if err != nil {
		return fmt.Errorf("wrsgen: %w", err)
	}

	formatted, err := format.Source(src)
	if err != nil {
		return fmt.Errorf("wrsgen: format generated source: %w\n%s", err, src)
	}

	if err := os.WriteFile(outputFile, formatted, 0o644); err != nil {
		return fmt.Errorf("wrsgen: write %s: %w", outputFile, err)
	}
	return nil
}

// addPSAImport re-parses the rendered template and uses astutil to insert
// the psa import into the generated import block, so the template itself
// never has to hand-maintain import text — the one place in this generator
// that genuinely needs AST-level surgery rather than string templating.
func addPSAImport(src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse rendered template: %w", err)
	}

	astutil.AddImport(fset, file, psaImportPath)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("print rendered template: %w", err)
	}
	return buf.Bytes(), nil
}

// Header returns the leading generated-file notice this package always
// emits, exposed for tests that check a generated file carries it.
func Header(source string) string {
	return strings.TrimSpace(fmt.Sprintf("// Code generated by wrsgen from %s; DO NOT EDIT.", source))
}
