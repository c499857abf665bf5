// Package stub implements the Stub Merger of spec.md §4.5: it reduces
// one or more per-architecture image.Facts records into a single Model
// suitable for the Tbd Writer.
package stub

import (
	"github.com/leptos-null/tbd/types"
)

// Entry is one member of an ordered set whose value appears in a
// subset of the model's architectures.
type Entry struct {
	Value string
	Archs types.ArchSet
}

// Model is the merge of one or more image.Facts into the single record
// the Tbd Writer serialises, per spec.md §3 "Stub Model".
type Model struct {
	Archs types.ArchSet

	Platform            types.Platform
	InstallName         string
	CurrentVersion      types.Version
	CompatibilityVersion types.Version
	ParentUmbrella      string

	FlatNamespace       bool
	NotAppExtensionSafe bool

	SwiftVersion   uint8
	ObjCConstraint types.ObjCConstraint

	// UUIDs maps each architecture index present in Archs to its
	// 16-byte value. Every architecture in Archs has an entry here;
	// Merge rejects any Facts missing an LC_UUID.
	UUIDs map[int]types.UUID

	Reexports          []Entry
	AllowableClients   []Entry
	NormalSymbols      []Entry
	WeakDefinedSymbols []Entry
	ThreadLocalSymbols []Entry
	ObjCClasses        []Entry
	ObjCEHTypes        []Entry
	ObjCIvars          []Entry
}

// orderedSet accumulates Entry values in first-appearance order while
// allowing O(1) lookup by value, per spec.md §4.5's "ordered set keyed
// by value with a bitset value".
type orderedSet struct {
	order []string
	index map[string]int
	archs []types.ArchSet
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]int)}
}

func (s *orderedSet) add(value string, arch types.ArchSet) {
	if i, ok := s.index[value]; ok {
		s.archs[i] |= arch
		return
	}
	s.index[value] = len(s.order)
	s.order = append(s.order, value)
	s.archs = append(s.archs, arch)
}

func (s *orderedSet) entries() []Entry {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]Entry, len(s.order))
	for i, v := range s.order {
		out[i] = Entry{Value: v, Archs: s.archs[i]}
	}
	return out
}
