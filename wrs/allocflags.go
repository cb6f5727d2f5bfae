package wrs

import "github.com/samber/lo"

// AllocFlags is a bitmask enumerating which of a component's sub-buffers an
// Allocate helper should create. Callers pass a narrower mask to share an
// intermediate buffer (e.g. partitionPrefix) between two pipelines instead
// of letting each allocate its own.
type AllocFlags uint32

// The two masks every caller can use: select no buffer or every buffer.
// Individual bits are whatever AllocSpec.Bit values the caller defines; no
// component package in this module declares its own AllocFlags constants.
const (
	AllocNone AllocFlags = 0
	AllocAll  AllocFlags = ^AllocFlags(0)
)

// Has reports whether every bit in want is set in f.
func (f AllocFlags) Has(want AllocFlags) bool {
	return f&want == want
}

// AllocSpec names one optionally-allocated sub-buffer: the bit that selects
// it, a human-readable name for logging, and its byte size for a given N.
type AllocSpec struct {
	Bit      AllocFlags
	Name     string
	ByteSize func(n uint32) uint64
}

// Selected filters specs down to the ones requested by flags, preserving
// order. Used by every component's Allocate helper so the "which buffers do
// I actually own" logic is one line instead of a repeated flag check per
// buffer.
func Selected(flags AllocFlags, specs []AllocSpec) []AllocSpec {
	return lo.Filter(specs, func(s AllocSpec, _ int) bool {
		return flags.Has(s.Bit)
	})
}

// AllocateSelected allocates exactly the buffers selected by flags from
// specs, using alloc, and returns them keyed by name. Components wrap this
// with a typed struct-returning Allocate method.
func AllocateSelected(alloc Allocator, flags AllocFlags, specs []AllocSpec, n uint32, usage BufferUsage) (map[string]Buffer, error) {
	selected := Selected(flags, specs)
	out := make(map[string]Buffer, len(selected))
	for _, s := range selected {
		buf, err := alloc.AllocateBuffer(s.ByteSize(n), usage)
		if err != nil {
			return nil, NewConfigError(s.Name, err.Error())
		}
		out[s.Name] = buf
	}
	return out, nil
}

// Names returns the human-readable names of the buffers flags selects from
// specs, for diagnostic logging.
func Names(flags AllocFlags, specs []AllocSpec) []string {
	return lo.Map(Selected(flags, specs), func(s AllocSpec, _ int) string {
		return s.Name
	})
}
