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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-wrs/internal/refdevice"
	"github.com/ajroetker/go-wrs/internal/wire"
	"github.com/ajroetker/go-wrs/psa"
	"github.com/ajroetker/go-wrs/psa/pack"
	"github.com/ajroetker/go-wrs/sample/alias"
	"github.com/ajroetker/go-wrs/wrs/csvsink"
)

var (
	configPath  string
	outputPath  string
	samplesPath string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build an alias table from a weights config and write it as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		log := logrus.WithField("component", "wrsctl.build")
		log.WithField("n", len(cfg.Weights)).Info("building alias table on reference device")

		dev := refdevice.New()
		builder, err := psa.New(dev, dev, dev, cfg.PSA.toPSA())
		if err != nil {
			return fmt.Errorf("wrsctl: construct pipeline: %w", err)
		}

		n := uint32(len(cfg.Weights))
		elemBuf, err := dev.AllocateBuffer(4*uint64(n), 0)
		if err != nil {
			return err
		}
		em, err := elemBuf.Map()
		if err != nil {
			return err
		}
		wire.PutFloats32(em, cfg.Weights)
		if err := elemBuf.Unmap(); err != nil {
			return err
		}

		cmdBuf := refdevice.NewCommandBuffer(cmd.Context())
		result, err := builder.Run(cmdBuf, elemBuf, n, nil)
		if err != nil {
			return fmt.Errorf("wrsctl: build alias table: %w", err)
		}

		tm, err := result.AliasTable.Map()
		if err != nil {
			return err
		}
		entries := make([]pack.Entry, n)
		for i := range entries {
			off := i * 8
			entries[i] = pack.Entry{P: wire.Float32At(tm[off:], 0), A: wire.Uint32At(tm[off:], 1)}
		}
		if err := result.AliasTable.Unmap(); err != nil {
			return err
		}

		out, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("wrsctl: create %s: %w", outputPath, err)
		}
		defer out.Close()
		sink, err := csvsink.NewAliasTable(out)
		if err != nil {
			return err
		}
		if err := sink.PushTable(entries); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
		log.WithField("path", outputPath).Info("wrote alias table")

		if cfg.Sample.Count == 0 {
			return nil
		}
		return runSamplePass(cmd, dev, cmdBuf, result, n, cfg.Sample)
	},
}

func runSamplePass(cmd *cobra.Command, dev *refdevice.Device, cmdBuf *refdevice.CommandBuffer, result psa.Result, n uint32, spec SampleSpec) error {
	log := logrus.WithField("component", "wrsctl.sample")
	workgroupSize := spec.WorkgroupSize
	if workgroupSize == 0 {
		workgroupSize = 64
	}

	sampler, err := alias.New(dev, dev, alias.Config{WorkgroupSize: workgroupSize})
	if err != nil {
		return fmt.Errorf("wrsctl: construct sampler: %w", err)
	}

	samplesBuf, err := dev.AllocateBuffer(4*uint64(spec.Count), 0)
	if err != nil {
		return err
	}
	if err := sampler.Run(cmdBuf, alias.Buffers{AliasTable: result.AliasTable, Samples: samplesBuf}, n, spec.Count, spec.Seed, nil); err != nil {
		return fmt.Errorf("wrsctl: sample: %w", err)
	}

	sm, err := samplesBuf.Map()
	if err != nil {
		return err
	}
	samples := make([]uint32, spec.Count)
	copy(samples, wire.Uint32s(sm, int(spec.Count)))
	if err := samplesBuf.Unmap(); err != nil {
		return err
	}

	if samplesPath == "" {
		log.WithField("count", len(samples)).Info("sampling complete (no --samples path given, not written)")
		return nil
	}

	out, err := os.Create(samplesPath)
	if err != nil {
		return fmt.Errorf("wrsctl: create %s: %w", samplesPath, err)
	}
	defer out.Close()
	sink, err := csvsink.NewSamples(out)
	if err != nil {
		return err
	}
	if err := sink.PushSamples(samples); err != nil {
		return err
	}
	if err := sink.Flush(); err != nil {
		return err
	}
	log.WithField("path", samplesPath).Info("wrote samples")
	return nil
}

func init() {
	buildCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML pipeline config (required)")
	buildCmd.Flags().StringVarP(&outputPath, "output", "o", "alias_table.csv", "path to write the alias table CSV")
	buildCmd.Flags().StringVar(&samplesPath, "samples", "", "path to write drawn samples CSV, if sample.count > 0 in the config")
	_ = buildCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(buildCmd)
}
