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

// Package wrs defines the host-side contracts shared by every component of
// the weighted random sampling library: the abstract GPU handles a caller
// must supply, the error taxonomy components raise, the decoupled-lookback
// state records, and the bitmask allocation flags used to share buffers
// across pipelines.
//
// Concrete components (blockscan, prefixsum, prefixpartition, mean, psa,
// sample/*) each construct from (Context, ShaderCompiler, Config) and expose
// a Run(CommandBuffer, Buffers, N, ...) that records dispatches and barriers into
// the caller's command buffer. None of them submits or waits; the command
// stream owner does.
//
// Package internal/refdevice provides a pure-Go Device that executes every
// kernel's algorithm directly, for use in tests and in the wrsctl CLI when
// no real GPU context is available.
package wrs
