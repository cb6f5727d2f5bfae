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
	"fmt"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// ConfigDirective is one //wrsgen:config Name key=value ... comment: a
// request to emit a constructor that pins psa.Config to literal values, so
// a caller who always builds the same fixed tiling never spells out the
// struct literal by hand.
type ConfigDirective struct {
	Name   string
	Fields map[string]uint32
}

// fieldOrder is the order generated struct literals list fields in,
// matching psa.Config's declaration order.
var fieldOrder = []string{
	"workgroupSize", "rows", "parallelLookbackDepth", "maxBlockCount",
	"splitSize", "splitWorkgroupSize", "packWorkgroupSize",
}

// ParseDirectives scans filename's comments for //wrsgen:config lines and
// returns one ConfigDirective per line found, plus the parsed package name.
func ParseDirectives(filename string) (string, []ConfigDirective, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return "", nil, fmt.Errorf("wrsgen: parse %s: %w", filename, err)
	}

	var directives []ConfigDirective
	for _, cg := range file.Comments {
		for _, c := range cg.List {
			text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
			after, ok := strings.CutPrefix(text, "wrsgen:config ")
			if !ok {
				continue
			}
			d, err := parseConfigLine(after)
			if err != nil {
				return "", nil, fmt.Errorf("wrsgen: %s: %w", filename, err)
			}
			directives = append(directives, d)
		}
	}

	sort.Slice(directives, func(i, j int) bool { return directives[i].Name < directives[j].Name })
	return file.Name.Name, directives, nil
}

func parseConfigLine(line string) (ConfigDirective, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ConfigDirective{}, fmt.Errorf("empty config directive")
	}

	d := ConfigDirective{Name: fields[0], Fields: make(map[string]uint32)}
	for _, kv := range fields[1:] {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return ConfigDirective{}, fmt.Errorf("directive %s: malformed field %q (want key=value)", d.Name, kv)
		}
		if !validField(key) {
			return ConfigDirective{}, fmt.Errorf("directive %s: unknown field %q", d.Name, key)
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return ConfigDirective{}, fmt.Errorf("directive %s: field %s: %w", d.Name, key, err)
		}
		d.Fields[key] = uint32(n)
	}
	return d, nil
}

func validField(key string) bool {
	for _, f := range fieldOrder {
		if f == key {
			return true
		}
	}
	return false
}
