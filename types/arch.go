// Package types holds the wire-format constants and small value types
// shared by every stage of the pipeline: CPU/architecture identifiers,
// Mach-O magic numbers, load command ids, platform numbers and packed
// version numbers.
package types

import "fmt"

// CPU is a Mach-O cputype value (mach/machine.h).
type CPU uint32

const (
	cpuArchAbi64 CPU = 0x01000000

	CPUTypeX86    CPU = 7
	CPUTypeX8664  CPU = CPUTypeX86 | cpuArchAbi64
	CPUTypeArm    CPU = 12
	CPUTypeArm64  CPU = CPUTypeArm | cpuArchAbi64
	CPUTypePowerPC   CPU = 18
	CPUTypePowerPC64 CPU = CPUTypePowerPC | cpuArchAbi64
)

// CPUSubtype is a Mach-O cpusubtype value. The top byte carries
// capability bits (e.g. the pointer-authentication ABI bit on arm64e)
// that are masked off before a registry lookup.
type CPUSubtype uint32

const (
	CpuSubtypeMask CPUSubtype = 0x00ffffff

	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeX86_64H  CPUSubtype = 8

	CPUSubtypeArmV7  CPUSubtype = 9
	CPUSubtypeArmV7S CPUSubtype = 11
	CPUSubtypeArmV7K CPUSubtype = 12

	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2

	CPUSubtypePowerPCAll CPUSubtype = 0
)

// Arch is an entry in the Architecture Registry: a (name, cputype,
// cpusubtype) triple. Index is the entry's fixed position in the
// registry table and doubles as the bit position of this architecture
// in any ArchSet.
type Arch struct {
	Index      int
	Name       string
	CPU        CPU
	CPUSubtype CPUSubtype
}

// registry is the static, ordered architecture table. Order is part of
// the wire contract: tbd output renders arch subsets in registry order,
// and the bit position of an architecture in an ArchSet is its index
// here. Never reorder existing entries; append new ones at the end.
var registry = []Arch{
	{0, "i386", CPUTypeX86, CPUSubtypeX8664All},
	{1, "x86_64", CPUTypeX8664, CPUSubtypeX8664All},
	{2, "x86_64h", CPUTypeX8664, CPUSubtypeX86_64H},
	{3, "armv7", CPUTypeArm, CPUSubtypeArmV7},
	{4, "armv7s", CPUTypeArm, CPUSubtypeArmV7S},
	{5, "armv7k", CPUTypeArm, CPUSubtypeArmV7K},
	{6, "arm64", CPUTypeArm64, CPUSubtypeArm64All},
	{7, "arm64v8", CPUTypeArm64, CPUSubtypeArm64V8},
	{8, "arm64e", CPUTypeArm64, CPUSubtypeArm64E},
	{9, "ppc", CPUTypePowerPC, CPUSubtypePowerPCAll},
	{10, "ppc64", CPUTypePowerPC64, CPUSubtypePowerPCAll},
}

// Registry returns the ordered architecture table.
func Registry() []Arch {
	return registry
}

// Lookup resolves a (cputype, cpusubtype) pair to its registry entry.
// The capability bits of cpusubtype are masked off before comparison.
// ok is false if no entry matches.
func Lookup(cpu CPU, sub CPUSubtype) (Arch, bool) {
	masked := sub & CpuSubtypeMask
	for _, a := range registry {
		if a.CPU == cpu && a.CPUSubtype == masked {
			return a, true
		}
	}
	return Arch{}, false
}

// LookupName resolves an architecture by its registry name.
func LookupName(name string) (Arch, bool) {
	for _, a := range registry {
		if a.Name == name {
			return a, true
		}
	}
	return Arch{}, false
}

// ArchSet is a bitset over registry indices; bit i is set iff the
// architecture at registry index i is a member. The current registry
// has fewer than 64 entries so a single machine word suffices.
type ArchSet uint64

// With returns the set with a added.
func (s ArchSet) With(a Arch) ArchSet {
	return s | (1 << uint(a.Index))
}

// Has reports whether a is a member of the set.
func (s ArchSet) Has(a Arch) bool {
	return s&(1<<uint(a.Index)) != 0
}

// HasIndex reports whether the architecture at registry index i is a
// member of the set.
func (s ArchSet) HasIndex(i int) bool {
	return s&(1<<uint(i)) != 0
}

// IsSubsetOf reports whether every member of s is also a member of other.
func (s ArchSet) IsSubsetOf(other ArchSet) bool {
	return s&^other == 0
}

// Empty reports whether the set has no members.
func (s ArchSet) Empty() bool {
	return s == 0
}

// Archs returns the set's members in registry order.
func (s ArchSet) Archs() []Arch {
	var out []Arch
	for _, a := range registry {
		if s.HasIndex(a.Index) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the set's member names in registry order.
func (s ArchSet) Names() []string {
	archs := s.Archs()
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = a.Name
	}
	return names
}

func (s ArchSet) String() string {
	return fmt.Sprintf("%v", s.Names())
}
