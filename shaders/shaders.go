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

// Package shaders embeds the WGSL kernel text every component in this
// module compiles, keeping the kernel source itself out of each
// component's Go file and in one place a reviewer can read end to end.
package shaders

import _ "embed"

//go:embed blockscan.wgsl
var BlockScan string

//go:embed mean_atomic.wgsl
var MeanAtomic string

//go:embed mean_decoupled.wgsl
var MeanDecoupled string

//go:embed prefixsum_decoupled.wgsl
var PrefixSumDecoupled string

//go:embed prefixsum_combine.wgsl
var PrefixSumCombine string

//go:embed prefixpartition_decoupled.wgsl
var PrefixPartitionDecoupled string

//go:embed prefixpartition_blockwise.wgsl
var PrefixPartitionBlockWise string

//go:embed split_scalar.wgsl
var SplitScalar string

//go:embed pack_scalar.wgsl
var PackScalar string

//go:embed pack_subgroup.wgsl
var PackSubgroup string

//go:embed pack_inline.wgsl
var PackInline string

//go:embed philox.wgsl
var Philox string

//go:embed alias_scalar.wgsl
var AliasScalar string

//go:embed alias_cooperative.wgsl
var AliasCooperative string
