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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajroetker/go-wrs/psa"
)

// PipelineConfig is the YAML shape of a wrsctl run: which weights to build
// an alias table over, and how to size every PSA stage.
type PipelineConfig struct {
	Weights []float32  `yaml:"weights"`
	PSA     PSAConfig  `yaml:"psa"`
	Sample  SampleSpec `yaml:"sample"`
}

// PSAConfig mirrors psa.Config with YAML tags; zero fields fall back to
// defaultPSAConfig's values.
type PSAConfig struct {
	WorkgroupSize         uint32 `yaml:"workgroup_size"`
	Rows                  uint32 `yaml:"rows"`
	ParallelLookbackDepth uint32 `yaml:"parallel_lookback_depth"`
	MaxBlockCount         uint32 `yaml:"max_block_count"`
	SplitSize             uint32 `yaml:"split_size"`
	SplitWorkgroupSize    uint32 `yaml:"split_workgroup_size"`
	PackWorkgroupSize     uint32 `yaml:"pack_workgroup_size"`
}

// SampleSpec configures an optional sampling pass after the table builds.
type SampleSpec struct {
	Count         uint32 `yaml:"count"`
	Seed          uint32 `yaml:"seed"`
	WorkgroupSize uint32 `yaml:"workgroup_size"`
}

func defaultPSAConfig() PSAConfig {
	return PSAConfig{
		WorkgroupSize: 64, Rows: 4, ParallelLookbackDepth: 8, MaxBlockCount: 4096,
		SplitSize: 256, SplitWorkgroupSize: 64, PackWorkgroupSize: 64,
	}
}

func (c PSAConfig) toPSA() psa.Config {
	def := defaultPSAConfig()
	if c.WorkgroupSize == 0 {
		c.WorkgroupSize = def.WorkgroupSize
	}
	if c.Rows == 0 {
		c.Rows = def.Rows
	}
	if c.ParallelLookbackDepth == 0 {
		c.ParallelLookbackDepth = def.ParallelLookbackDepth
	}
	if c.MaxBlockCount == 0 {
		c.MaxBlockCount = def.MaxBlockCount
	}
	if c.SplitSize == 0 {
		c.SplitSize = def.SplitSize
	}
	if c.SplitWorkgroupSize == 0 {
		c.SplitWorkgroupSize = def.SplitWorkgroupSize
	}
	if c.PackWorkgroupSize == 0 {
		c.PackWorkgroupSize = def.PackWorkgroupSize
	}
	return psa.Config{
		WorkgroupSize: c.WorkgroupSize, Rows: c.Rows,
		ParallelLookbackDepth: c.ParallelLookbackDepth, MaxBlockCount: c.MaxBlockCount,
		SplitSize: c.SplitSize, SplitWorkgroupSize: c.SplitWorkgroupSize, PackWorkgroupSize: c.PackWorkgroupSize,
	}
}

func loadConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wrsctl: read config %s: %w", path, err)
	}
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("wrsctl: parse config %s: %w", path, err)
	}
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("wrsctl: config %s declares no weights", path)
	}
	return &cfg, nil
}
