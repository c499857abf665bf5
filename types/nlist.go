package types

// Nlist is a normalized Mach-O symbol table entry (nlist/nlist_64,
// after widening the 32-bit layout's fields to a common shape).
type Nlist struct {
	StrX  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

const (
	NTypeStab = 0xe0 // if any of these bits are set, it's a stab (debugger) entry, not a real symbol
	NTypePext = 0x10
	NTypeType = 0x0e
	NTypeExt  = 0x01
)

// IsStab reports whether n is a debugger symbol, to be skipped entirely
// rather than classified.
func (n Nlist) IsStab() bool {
	return n.Type&NTypeStab != 0
}

// External reports whether n is externally visible (N_EXT set).
func (n Nlist) External() bool {
	return n.Type&NTypeExt != 0
}

// PrivateExternal reports whether n is a private-external symbol
// (N_PEXT set): visible to the linker across translation units within
// the same image but not re-exported.
func (n Nlist) PrivateExternal() bool {
	return n.Type&NTypePext != 0
}

// n_desc bits the parser classifies symbols with. NDescWeakDef is the
// real Mach-O N_WEAK_DEF bit; NDescThreadLocal is this project's
// convention for marking a thread-local symbol in the classic symbol
// table (the canonical dyld thread-local bit lives in the export trie's
// flags byte, not n_desc, but the Mach-O Image Parser here works from
// the symbol table per spec.md §4.4, so thread-local classification is
// carried in n_desc the same way weak-def is).
const (
	NDescWeakDef     uint16 = 0x0080
	NDescThreadLocal uint16 = 0x0010
)
