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

// Package csvsink writes alias tables, sample streams, and partition
// diagnostics to CSV for offline inspection — a thin, io.Writer-based
// replacement for a one-off dump file dropped next to a benchmark run.
package csvsink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ajroetker/go-wrs/psa/pack"
)

// Sink buffers rows through encoding/csv and flushes on every push past a
// row-count threshold, so a long-running sample export never holds the
// whole stream in memory at once.
type Sink struct {
	w          *csv.Writer
	flushEvery int
	sinceFlush int
}

// Option configures a Sink.
type Option func(*Sink)

// WithSeparator overrides the field separator (default ',').
func WithSeparator(r rune) Option {
	return func(s *Sink) { s.w.Comma = r }
}

// WithFlushEvery overrides how many pushed rows accumulate between
// automatic flushes (default 4096).
func WithFlushEvery(n int) Option {
	return func(s *Sink) { s.flushEvery = n }
}

// New wraps w in a Sink and writes headers as the first row.
func New(w io.Writer, headers []string, opts ...Option) (*Sink, error) {
	s := &Sink{w: csv.NewWriter(w), flushEvery: 4096}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.w.Write(headers); err != nil {
		return nil, fmt.Errorf("csvsink: write headers: %w", err)
	}
	return s, nil
}

func (s *Sink) pushRow(fields []string) error {
	if err := s.w.Write(fields); err != nil {
		return fmt.Errorf("csvsink: write row: %w", err)
	}
	s.sinceFlush++
	if s.sinceFlush >= s.flushEvery {
		s.w.Flush()
		s.sinceFlush = 0
		if err := s.w.Error(); err != nil {
			return fmt.Errorf("csvsink: flush: %w", err)
		}
	}
	return nil
}

// Flush forces any buffered rows to w and reports the first write error
// encountered, if any. Callers must Flush before discarding a Sink.
func (s *Sink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

// AliasTableSink writes one row per pack.Entry: index, probability, alias
// index. Grounded on the original implementation's per-bucket dump used to
// verify the alias-table law offline.
type AliasTableSink struct{ *Sink }

// NewAliasTable opens a Sink with the alias-table header row.
func NewAliasTable(w io.Writer, opts ...Option) (*AliasTableSink, error) {
	s, err := New(w, []string{"index", "p", "a"}, opts...)
	if err != nil {
		return nil, err
	}
	return &AliasTableSink{s}, nil
}

// PushEntry writes one alias-table row.
func (a *AliasTableSink) PushEntry(index uint32, e pack.Entry) error {
	return a.pushRow([]string{
		strconv.FormatUint(uint64(index), 10),
		strconv.FormatFloat(float64(e.P), 'g', -1, 32),
		strconv.FormatUint(uint64(e.A), 10),
	})
}

// PushTable writes every entry in table, in index order.
func (a *AliasTableSink) PushTable(table []pack.Entry) error {
	for i, e := range table {
		if err := a.PushEntry(uint32(i), e); err != nil {
			return err
		}
	}
	return nil
}

// SampleSink writes one row per drawn sample index, in draw order — the
// raw stream a histogram or chi-squared test consumes downstream.
type SampleSink struct{ *Sink }

// NewSamples opens a Sink with the sample-stream header row.
func NewSamples(w io.Writer, opts ...Option) (*SampleSink, error) {
	s, err := New(w, []string{"k", "sample"}, opts...)
	if err != nil {
		return nil, err
	}
	return &SampleSink{s}, nil
}

// PushSample writes one (draw index, sampled index) row.
func (s *SampleSink) PushSample(k uint32, sample uint32) error {
	return s.pushRow([]string{
		strconv.FormatUint(uint64(k), 10),
		strconv.FormatUint(uint64(sample), 10),
	})
}

// PushSamples writes samples[i] as draw index i, for every i.
func (s *SampleSink) PushSamples(samples []uint32) error {
	for i, v := range samples {
		if err := s.PushSample(uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}

// WeightSink writes one row per input element: index, weight, and which
// partition it landed in ("heavy" or "light") — useful for auditing the
// Mean/PrefixPartition stages independently of the final alias table.
type WeightSink struct{ *Sink }

// NewWeights opens a Sink with the weight-diagnostics header row.
func NewWeights(w io.Writer, opts ...Option) (*WeightSink, error) {
	s, err := New(w, []string{"index", "weight", "partition"}, opts...)
	if err != nil {
		return nil, err
	}
	return &WeightSink{s}, nil
}

// PushWeight writes one (index, weight, heavy?) row.
func (s *WeightSink) PushWeight(index uint32, weight float32, heavy bool) error {
	partition := "light"
	if heavy {
		partition = "heavy"
	}
	return s.pushRow([]string{
		strconv.FormatUint(uint64(index), 10),
		strconv.FormatFloat(float64(weight), 'g', -1, 32),
		partition,
	})
}
