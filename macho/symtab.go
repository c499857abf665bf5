package macho

import (
	"bytes"
	"strings"

	"github.com/leptos-null/tbd/image"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

const (
	objcClassPrefix     = "_OBJC_CLASS_$"
	objcMetaclassPrefix = "_OBJC_METACLASS_$"
	objcEHTypePrefix    = "_OBJC_EHTYPE_$"
	objcIvarPrefix      = "_OBJC_IVAR_$"
	objcClassNameLegacy = ".objc_class_name"
)

func (st *state) parseSymtab() error {
	sc := st.symtabCmd
	size := st.src.Size()

	strSize := int64(sc.StrSize)
	if int64(sc.StrOff)+strSize > size {
		return tbderr.New(tbderr.KindFailedToIterateSymbols, "string table exceeds file size")
	}
	strtab := make([]byte, strSize)
	if err := st.src.ReadAt(strtab, int64(sc.StrOff)); err != nil {
		return tbderr.Wrap(tbderr.KindFailedToIterateSymbols, err, "read string table")
	}

	entrySize := int64(12)
	if st.is64 {
		entrySize = 16
	}
	symSize := int64(sc.NSyms) * entrySize
	if int64(sc.SymOff)+symSize > size {
		return tbderr.New(tbderr.KindFailedToIterateSymbols, "symbol table exceeds file size")
	}
	symdat := make([]byte, symSize)
	if err := st.src.ReadAt(symdat, int64(sc.SymOff)); err != nil {
		return tbderr.Wrap(tbderr.KindFailedToIterateSymbols, err, "read symbol table")
	}

	lo, hi := uint32(0), sc.NSyms
	if st.dysymtabCmd != nil {
		lo = st.dysymtabCmd.IExtDefSym
		hi = lo + st.dysymtabCmd.NExtDefSym
		if hi > sc.NSyms {
			return tbderr.New(tbderr.KindFailedToIterateSymbols, "dysymtab external range exceeds symtab")
		}
		if st.opts.AllowPrivateNormalSymbols || st.opts.AllowPrivateExternalSymbols || st.opts.AllowPrivateObjCSymbols {
			lo, hi = 0, sc.NSyms
		}
	}

	bo := st.byteOrder
	for i := lo; i < hi; i++ {
		off := int64(i) * entrySize
		entry := symdat[off : off+entrySize]

		n := types.Nlist{
			StrX: bo.Uint32(entry[0:4]),
			Type: entry[4],
			Sect: entry[5],
			Desc: bo.Uint16(entry[6:8]),
		}
		if st.is64 {
			n.Value = bo.Uint64(entry[8:16])
		} else {
			n.Value = uint64(bo.Uint32(entry[8:12]))
		}

		if n.IsStab() {
			continue
		}
		if n.StrX >= uint32(len(strtab)) {
			return tbderr.New(tbderr.KindFailedToIterateSymbols, "symbol name offset outside string table")
		}
		term := bytes.IndexByte(strtab[n.StrX:], 0)
		if term < 0 {
			return tbderr.New(tbderr.KindFailedToIterateSymbols, "symbol name is not NUL-terminated")
		}
		name := string(strtab[n.StrX : n.StrX+uint32(term)])

		sym := classify(name, n)
		if !st.keep(sym, n) {
			continue
		}
		st.facts.Symbols = append(st.facts.Symbols, sym)
	}
	return nil
}

// classify derives a symbol's kind from its name prefix, falling back
// to n_desc bits, per spec.md §4.4 step 5.
func classify(name string, n types.Nlist) image.Symbol {
	privacy := image.PrivacyExternal
	if !n.External() {
		privacy = image.PrivacyPrivate
	}

	switch {
	case strings.HasPrefix(name, objcClassPrefix) || strings.HasPrefix(name, objcClassNameLegacy):
		return image.Symbol{Name: name, Kind: image.SymbolObjCClass, Privacy: privacy}
	case strings.HasPrefix(name, objcMetaclassPrefix):
		return image.Symbol{Name: name, Kind: image.SymbolObjCMetaclass, Privacy: privacy}
	case strings.HasPrefix(name, objcEHTypePrefix):
		return image.Symbol{Name: name, Kind: image.SymbolObjCEHType, Privacy: privacy}
	case strings.HasPrefix(name, objcIvarPrefix):
		return image.Symbol{Name: name, Kind: image.SymbolObjCIvar, Privacy: privacy}
	}

	switch {
	case n.Desc&types.NDescWeakDef != 0:
		return image.Symbol{Name: name, Kind: image.SymbolWeakDef, Privacy: privacy}
	case n.Desc&types.NDescThreadLocal != 0:
		return image.Symbol{Name: name, Kind: image.SymbolThreadLocal, Privacy: privacy}
	default:
		return image.Symbol{Name: name, Kind: image.SymbolNormal, Privacy: privacy}
	}
}

// keep applies the "allow-private-*" options: external symbols are
// always kept; private ones are dropped unless the option matching
// their classification is enabled, per spec.md §4.4 step 5.
func (st *state) keep(sym image.Symbol, n types.Nlist) bool {
	if sym.Privacy == image.PrivacyExternal {
		return true
	}
	if n.PrivateExternal() && st.opts.AllowPrivateExternalSymbols {
		return true
	}
	isObjC := sym.Kind == image.SymbolObjCClass || sym.Kind == image.SymbolObjCMetaclass ||
		sym.Kind == image.SymbolObjCEHType || sym.Kind == image.SymbolObjCIvar
	if isObjC {
		return st.opts.AllowPrivateObjCSymbols
	}
	if n.PrivateExternal() {
		return st.opts.AllowPrivateExternalSymbols
	}
	return st.opts.AllowPrivateNormalSymbols
}

func (st *state) readObjCImageInfo() error {
	sec, ok := st.findSection("__DATA", "__objc_imageinfo")
	if !ok {
		sec, ok = st.findSection("__DATA_CONST", "__objc_imageinfo")
	}
	if !ok {
		return nil
	}
	if sec.size < 8 {
		return tbderr.New(tbderr.KindInvalidSegment, "__objc_imageinfo section too small")
	}
	buf := make([]byte, 8)
	if err := st.src.ReadAt(buf, sec.offset); err != nil {
		return tbderr.Wrap(tbderr.KindIORead, err, "read __objc_imageinfo")
	}
	st.facts.ObjCImageInfoFlags = st.byteOrder.Uint32(buf[4:8])
	st.facts.HasObjCImageInfo = true
	return nil
}
