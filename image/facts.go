// Package image holds Image Facts, the per-architecture record the
// Mach-O Image Parser produces (spec.md §3) and the Stub Merger
// consumes. An Image Facts record is owned exclusively by the merge
// that consumes it; nothing else retains a reference to one once
// merged.
package image

import "github.com/leptos-null/tbd/types"

// SymbolKind classifies a symbol table entry, per spec.md §3/§4.4.
type SymbolKind int

const (
	SymbolNormal SymbolKind = iota
	SymbolWeakDef
	SymbolThreadLocal
	SymbolObjCClass
	SymbolObjCMetaclass
	SymbolObjCEHType
	SymbolObjCIvar
)

// Privacy is whether a symbol is externally visible.
type Privacy int

const (
	PrivacyExternal Privacy = iota
	PrivacyPrivate
)

// Symbol is one resolved symbol table entry.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Privacy Privacy
}

// Facts is everything the Mach-O Image Parser extracts from one thin
// Mach-O (spec.md §3 "Image Facts (per architecture)").
type Facts struct {
	Arch types.Arch

	FileType    types.FileType
	InstallName string
	UUID        types.UUID
	HasUUID     bool

	CurrentVersion    types.Version
	CompatVersion     types.Version

	ObjCImageInfoFlags uint32
	HasObjCImageInfo   bool

	// ParentUmbrella is the LC_SUB_FRAMEWORK name, the one sub-framework/
	// sub-umbrella/sub-client/sub-library field with an "at most one"
	// rule rather than list semantics, per spec.md §4.4.
	ParentUmbrella string

	Reexports  []string
	SubClients []string
	// SubUmbrellas records LC_SUB_UMBRELLA names for shape validation;
	// no tbd dialect key projects this list, so the Stub Merger and Tbd
	// Writer never read it.
	SubUmbrellas []string

	Platform    types.Platform
	HasPlatform bool

	FlatNamespace        bool
	NotAppExtensionSafe  bool

	Symbols []Symbol
}

// ObjCConstraint derives the objc runtime constraint from this image's
// image-info flags and platform, or ObjCConstraintNone if the image
// carried no __objc_imageinfo section.
func (f *Facts) ObjCConstraint() types.ObjCConstraint {
	if !f.HasObjCImageInfo {
		return types.ObjCConstraintNone
	}
	return types.ObjCConstraintFromImageInfo(f.ObjCImageInfoFlags, f.Platform)
}

// SwiftVersion returns the packed swift ABI version, or 0 if this image
// carried no __objc_imageinfo section.
func (f *Facts) SwiftVersion() uint8 {
	if !f.HasObjCImageInfo {
		return 0
	}
	return types.SwiftABIVersion(f.ObjCImageInfoFlags)
}
