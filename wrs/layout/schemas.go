package layout

// The wire layouts shared by more than one component, defined once here so
// every consumer agrees on field order and stride.

// AliasEntryLayout is the Struct for one alias-table slot: { float p;
// uint a; }, packed with an 8-byte stride.
var AliasEntryLayout = NewStruct(Std430,
	Attribute{Name: "p", Layout: NewPrimitive(Std430)},
	Attribute{Name: "a", Layout: NewPrimitive(Std430)},
)

// SplitEntryLayout is the Struct for one split-table slot: { uint i; uint
// j; float spill; }, packed with a 12-byte stride.
var SplitEntryLayout = NewStruct(Std430,
	Attribute{Name: "i", Layout: NewPrimitive(Std430)},
	Attribute{Name: "j", Layout: NewPrimitive(Std430)},
	Attribute{Name: "spill", Layout: NewPrimitive(Std430)},
)

// ScanDecoupledStateLayout mirrors wrs.ScanDecoupledState: { float
// aggregate; float inclusivePrefix; uint state; uint _pad; }, 16 bytes.
var ScanDecoupledStateLayout = NewStruct(Std430,
	Attribute{Name: "aggregate", Layout: NewPrimitive(Std430)},
	Attribute{Name: "inclusivePrefix", Layout: NewPrimitive(Std430)},
	Attribute{Name: "state", Layout: NewPrimitive(Std430)},
	Attribute{Name: "_pad", Layout: NewPrimitive(Std430)},
)

// PartitionDecoupledStateLayout mirrors wrs.PartitionDecoupledState, 32
// bytes.
var PartitionDecoupledStateLayout = NewStruct(Std430,
	Attribute{Name: "heavyCount", Layout: NewPrimitive(Std430)},
	Attribute{Name: "heavyCountInclusivePrefix", Layout: NewPrimitive(Std430)},
	Attribute{Name: "heavySum", Layout: NewPrimitive(Std430)},
	Attribute{Name: "heavyInclusivePrefix", Layout: NewPrimitive(Std430)},
	Attribute{Name: "lightSum", Layout: NewPrimitive(Std430)},
	Attribute{Name: "lightInclusivePrefix", Layout: NewPrimitive(Std430)},
	Attribute{Name: "state", Layout: NewPrimitive(Std430)},
	Attribute{Name: "_pad", Layout: NewPrimitive(Std430)},
)
