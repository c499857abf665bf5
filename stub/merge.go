package stub

import (
	"github.com/leptos-null/tbd/image"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// Merge reduces an ordered sequence of per-architecture Image Facts
// into a single Model, enforcing the cross-architecture consistency
// rules of spec.md §4.5 and §3's invariants. The order of facts
// determines the first-appearance order recorded in every list field.
func Merge(facts []*image.Facts) (*Model, error) {
	if len(facts) == 0 {
		return nil, tbderr.New(tbderr.KindNoProvidedArchitectures, "no Image Facts to merge")
	}

	m := &Model{UUIDs: make(map[int]types.UUID)}
	uuidOwner := make(map[types.UUID]types.Arch)

	reexports := newOrderedSet()
	clients := newOrderedSet()
	normal := newOrderedSet()
	weak := newOrderedSet()
	threadLocal := newOrderedSet()
	objcClasses := newOrderedSet()
	objcEHTypes := newOrderedSet()
	objcIvars := newOrderedSet()

	var seeded bool
	for _, f := range facts {
		one := types.ArchSet(0).With(f.Arch)
		m.Archs |= one

		if !seeded {
			m.Platform = f.Platform
			m.InstallName = f.InstallName
			m.CurrentVersion = f.CurrentVersion
			m.CompatibilityVersion = f.CompatVersion
			m.ParentUmbrella = f.ParentUmbrella
			m.FlatNamespace = f.FlatNamespace
			m.NotAppExtensionSafe = f.NotAppExtensionSafe
			m.SwiftVersion = f.SwiftVersion()
			m.ObjCConstraint = f.ObjCConstraint()
			seeded = true
		} else {
			mismatch := m.Platform != f.Platform ||
				m.InstallName != f.InstallName ||
				m.CurrentVersion != f.CurrentVersion ||
				m.CompatibilityVersion != f.CompatVersion ||
				m.ParentUmbrella != f.ParentUmbrella ||
				m.FlatNamespace != f.FlatNamespace ||
				m.NotAppExtensionSafe != f.NotAppExtensionSafe ||
				m.SwiftVersion != f.SwiftVersion() ||
				m.ObjCConstraint != f.ObjCConstraint()
			if mismatch {
				return nil, tbderr.Newf(tbderr.KindContradictaryContainerInfo,
					"%s disagrees with prior architectures on a per-library field", f.Arch.Name)
			}
		}

		if !f.HasUUID {
			return nil, tbderr.Newf(tbderr.KindHasNoUUID, "%s has no LC_UUID", f.Arch.Name)
		}
		if owner, ok := uuidOwner[f.UUID]; ok {
			return nil, tbderr.Newf(tbderr.KindUUIDNotUnique, "%s and %s share UUID %s", owner.Name, f.Arch.Name, f.UUID)
		}
		uuidOwner[f.UUID] = f.Arch
		m.UUIDs[f.Arch.Index] = f.UUID

		for _, name := range f.Reexports {
			reexports.add(name, one)
		}
		for _, name := range f.SubClients {
			clients.add(name, one)
		}
		for _, sym := range f.Symbols {
			set := chooseSet(sym.Kind, normal, weak, threadLocal, objcClasses, objcEHTypes, objcIvars)
			set.add(sym.Name, one)
		}
	}

	if m.InstallName == "" {
		return nil, tbderr.New(tbderr.KindEmptyInstallationName, "merged stub has no install name")
	}

	m.Reexports = reexports.entries()
	m.AllowableClients = clients.entries()
	m.NormalSymbols = normal.entries()
	m.WeakDefinedSymbols = weak.entries()
	m.ThreadLocalSymbols = threadLocal.entries()
	m.ObjCClasses = objcClasses.entries()
	m.ObjCEHTypes = objcEHTypes.entries()
	m.ObjCIvars = objcIvars.entries()

	return m, nil
}

func chooseSet(kind image.SymbolKind, normal, weak, threadLocal, objcClasses, objcEHTypes, objcIvars *orderedSet) *orderedSet {
	switch kind {
	case image.SymbolWeakDef:
		return weak
	case image.SymbolThreadLocal:
		return threadLocal
	case image.SymbolObjCClass, image.SymbolObjCMetaclass:
		return objcClasses
	case image.SymbolObjCEHType:
		return objcEHTypes
	case image.SymbolObjCIvar:
		return objcIvars
	default:
		return normal
	}
}
