// Package macho implements the Mach-O Image Parser of spec.md §4.4: it
// parses one thin Mach-O from a Byte Source into an Image Facts record.
package macho

import (
	"bytes"
	"encoding/binary"

	"github.com/leptos-null/tbd/image"
	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// state carries the working parse across the load-command walk; it is
// reduced to an image.Facts at the end and then discarded.
type state struct {
	src       source.Source
	byteOrder binary.ByteOrder
	is64      bool
	arch      types.Arch

	facts image.Facts

	haveIDDylib      bool
	haveParent       bool
	haveUUID         bool
	haveSymtab       bool
	havePlatform     bool
	secondPlatformLC types.Platform // tracks a second, possibly-zippered platform

	symtabCmd   *types.SymtabCommand
	dysymtabCmd *types.DysymtabCommand

	segments []segment
	opts     Options

	hdrSize    int64
	ncmds      uint32
	sizeofcmds uint32
}

type segment struct {
	name             string
	fileOff, fileSz  int64
	vmAddr, vmSz     int64
	sections         []section
}

type section struct {
	name, segName string
	addr          int64
	size          int64
	offset        int64
}

// Parse reads one thin Mach-O from s and produces its Image Facts.
func Parse(s source.Source, opts Options) (*image.Facts, error) {
	st := &state{src: s, opts: opts}

	if err := st.readHeader(); err != nil {
		return nil, err
	}
	if !st.facts.FileType.IsLibrary() {
		return nil, tbderr.Newf(tbderr.KindNotALibrary, "filetype %#x is not a dylib/dylib-stub", st.facts.FileType)
	}
	if err := st.walkLoadCommands(); err != nil {
		return nil, err
	}
	if st.symtabCmd != nil {
		if err := st.parseSymtab(); err != nil {
			return nil, err
		}
	}
	if err := st.resolvePlatform(); err != nil {
		return nil, err
	}
	if err := st.readObjCImageInfo(); err != nil {
		return nil, err
	}
	if st.facts.InstallName == "" {
		return nil, tbderr.New(tbderr.KindEmptyInstallationName, "no LC_ID_DYLIB")
	}

	facts := st.facts
	return &facts, nil
}

const (
	headerFixedSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 // magic,cpu,subtype,filetype,ncmds,sizeofcmds,flags
)

func (st *state) readHeader() error {
	var magicBuf [4]byte
	if err := st.src.ReadAt(magicBuf[:], 0); err != nil {
		return tbderr.Wrap(tbderr.KindIORead, err, "read magic")
	}
	be := binary.BigEndian.Uint32(magicBuf[:])
	le := binary.LittleEndian.Uint32(magicBuf[:])

	switch types.Magic(be) {
	case types.MagicThin32:
		st.byteOrder, st.is64 = binary.BigEndian, false
	case types.MagicThin64:
		st.byteOrder, st.is64 = binary.BigEndian, true
	default:
		switch types.Magic(le) {
		case types.MagicThin32:
			st.byteOrder, st.is64 = binary.LittleEndian, false
		case types.MagicThin64:
			st.byteOrder, st.is64 = binary.LittleEndian, true
		default:
			return tbderr.Newf(tbderr.KindNotAMachO, "magic %#08x is not a thin Mach-O", be)
		}
	}

	hdrSize := headerFixedSize
	if st.is64 {
		hdrSize += 4 // reserved field
	}
	buf := make([]byte, hdrSize)
	if err := st.src.ReadAt(buf, 0); err != nil {
		return tbderr.Wrap(tbderr.KindIORead, err, "read header")
	}
	bo := st.byteOrder
	cpu := types.CPU(bo.Uint32(buf[4:8]))
	sub := types.CPUSubtype(bo.Uint32(buf[8:12]))
	ftype := types.FileType(bo.Uint32(buf[12:16]))
	ncmds := bo.Uint32(buf[16:20])
	sizeofcmds := bo.Uint32(buf[20:24])
	flags := types.HeaderFlag(bo.Uint32(buf[24:28]))

	arch, ok := types.Lookup(cpu, sub)
	if !ok {
		return tbderr.Newf(tbderr.KindInvalidCPUType, "cputype %#x subtype %#x", cpu, sub)
	}
	if st.opts.ExpectedArch != nil && st.opts.ExpectedArch.Index != arch.Index {
		return tbderr.Newf(tbderr.KindInvalidCPUType, "header reports %s, expected %s", arch.Name, st.opts.ExpectedArch.Name)
	}

	if int64(sizeofcmds) > st.src.Size()-int64(hdrSize) {
		return tbderr.New(tbderr.KindInvalidLoadCommand, "sizeofcmds exceeds file size")
	}

	st.arch = arch
	st.facts.Arch = arch
	st.facts.FileType = ftype
	st.facts.FlatNamespace = flags.FlatNamespace()
	st.facts.NotAppExtensionSafe = flags.NotAppExtensionSafe()

	st.hdrSize, st.ncmds, st.sizeofcmds = int64(hdrSize), ncmds, sizeofcmds
	return nil
}

func (st *state) walkLoadCommands() error {
	dat := make([]byte, st.sizeofcmds)
	if err := st.src.ReadAt(dat, st.hdrSize); err != nil {
		return tbderr.Wrap(tbderr.KindIORead, err, "read load command region")
	}

	align := uint32(4)
	if st.is64 {
		align = 8
	}

	remaining := dat
	for i := uint32(0); i < st.ncmds; i++ {
		if len(remaining) < 8 {
			return tbderr.Newf(tbderr.KindInvalidLoadCommand, "command %d: command region too small", i)
		}
		cmd := types.LoadCmd(st.byteOrder.Uint32(remaining[0:4]))
		cmdsize := st.byteOrder.Uint32(remaining[4:8])
		if cmdsize < 8 || cmdsize%align != 0 || int(cmdsize) > len(remaining) {
			return tbderr.Newf(tbderr.KindInvalidLoadCommand, "command %d: invalid cmdsize %d", i, cmdsize)
		}
		payload := remaining[:cmdsize]
		remaining = remaining[cmdsize:]

		if err := st.handleLoadCommand(cmd, payload); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) handleLoadCommand(cmd types.LoadCmd, payload []byte) error {
	bo := st.byteOrder
	body := payload[8:]

	switch cmd {
	case types.LcIdDylib:
		return st.handleDylibID(body)
	case types.LcReexportDylib:
		name, err := st.readLCString(body, 0)
		if err != nil {
			return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_REEXPORT_DYLIB name")
		}
		st.facts.Reexports = append(st.facts.Reexports, name)
	case types.LcSubFramework:
		name, err := st.readLCString(body, 0)
		if err != nil {
			return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_SUB_FRAMEWORK name")
		}
		if st.haveParent {
			if name != st.facts.ParentUmbrella {
				return tbderr.New(tbderr.KindContradictaryLoadCommandInfo, "second LC_SUB_FRAMEWORK disagrees with the first")
			}
			break
		}
		st.facts.ParentUmbrella = name
		st.haveParent = true
	case types.LcSubUmbrella:
		name, err := st.readLCString(body, 0)
		if err != nil {
			return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_SUB_UMBRELLA name")
		}
		st.facts.SubUmbrellas = append(st.facts.SubUmbrellas, name)
	case types.LcSubClient:
		name, err := st.readLCString(body, 0)
		if err != nil {
			return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_SUB_CLIENT name")
		}
		st.facts.SubClients = append(st.facts.SubClients, name)
	case types.LcSubLibrary:
		// sub-library refines a single reexport target by leaf name;
		// this parser has no finer-grained destination for it and the
		// writer never emits it, so it is validated for shape and
		// otherwise ignored, matching spec.md's "others are skipped".
		if _, err := st.readLCString(body, 0); err != nil {
			return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_SUB_LIBRARY name")
		}
	case types.LcUUID:
		if len(body) < 16 {
			return tbderr.New(tbderr.KindInvalidLoadCommand, "LC_UUID payload too small")
		}
		var u types.UUID
		copy(u[:], body[:16])
		if st.haveUUID && u != st.facts.UUID {
			return tbderr.New(tbderr.KindContradictaryLoadCommandInfo, "conflicting LC_UUID")
		}
		st.facts.UUID = u
		st.facts.HasUUID = true
		st.haveUUID = true
	case types.LcBuildVersion:
		if len(body) < 16 {
			return tbderr.New(tbderr.KindInvalidLoadCommand, "LC_BUILD_VERSION payload too small")
		}
		plat := types.Platform(bo.Uint32(body[0:4]))
		return st.recordPlatform(plat)
	case types.LcVersionMinMacOSX:
		return st.recordPlatform(types.PlatformMacOS)
	case types.LcVersionMinIPhoneOS:
		return st.recordPlatform(types.PlatformIOS)
	case types.LcVersionMinTvOS:
		return st.recordPlatform(types.PlatformTvOS)
	case types.LcVersionMinWatchOS:
		return st.recordPlatform(types.PlatformWatchOS)
	case types.LcSymtab:
		if st.haveSymtab {
			return tbderr.New(tbderr.KindContradictaryLoadCommandInfo, "second LC_SYMTAB")
		}
		if len(body) < 16 {
			return tbderr.New(tbderr.KindInvalidLoadCommand, "LC_SYMTAB payload too small")
		}
		st.symtabCmd = &types.SymtabCommand{
			SymOff:  bo.Uint32(body[0:4]),
			NSyms:   bo.Uint32(body[4:8]),
			StrOff:  bo.Uint32(body[8:12]),
			StrSize: bo.Uint32(body[12:16]),
		}
		st.haveSymtab = true
	case types.LcDysymtab:
		if len(body) < 72 {
			return tbderr.New(tbderr.KindInvalidLoadCommand, "LC_DYSYMTAB payload too small")
		}
		st.dysymtabCmd = &types.DysymtabCommand{
			IExtDefSym: bo.Uint32(body[8:12]),
			NExtDefSym: bo.Uint32(body[12:16]),
		}
	case types.LcSegment:
		return st.handleSegment32(body)
	case types.LcSegment64:
		return st.handleSegment64(body)
	case types.LcRoutines, types.LcRoutines64:
		// read but ignored, per spec.md §6.
	default:
		// skip after validating cmdsize fit, already done by the walk.
	}
	return nil
}

func (st *state) handleDylibID(body []byte) error {
	if len(body) < 16 {
		return tbderr.New(tbderr.KindInvalidLoadCommand, "LC_ID_DYLIB payload too small")
	}
	name, err := st.readLCString(body, 0)
	if err != nil {
		return tbderr.Wrap(tbderr.KindInvalidLoadCommand, err, "LC_ID_DYLIB name")
	}
	bo := st.byteOrder
	current := types.Version(bo.Uint32(body[8:12]))
	compat := types.Version(bo.Uint32(body[12:16]))

	if st.haveIDDylib {
		if name != st.facts.InstallName || current != st.facts.CurrentVersion || compat != st.facts.CompatVersion {
			return tbderr.New(tbderr.KindContradictaryLoadCommandInfo, "second LC_ID_DYLIB disagrees with the first")
		}
		return nil
	}
	st.facts.InstallName = name
	st.facts.CurrentVersion = current
	st.facts.CompatVersion = compat
	st.haveIDDylib = true
	return nil
}

func (st *state) recordPlatform(p types.Platform) error {
	if !st.havePlatform {
		st.facts.Platform = p
		st.havePlatform = true
		return nil
	}
	if st.facts.Platform == p {
		return nil
	}
	if st.facts.Platform.ZipperedWith(p) {
		// zippered pair: keep the first-seen as the recorded platform
		// and remember the second one only in secondPlatformLC.
		st.secondPlatformLC = p
		return nil
	}
	return tbderr.Newf(tbderr.KindMultiplePlatforms, "%s and %s", st.facts.Platform, p)
}

func (st *state) resolvePlatform() error {
	if st.havePlatform {
		st.facts.HasPlatform = true
		return nil
	}
	if st.opts.PlatformOverride != types.PlatformUnknown {
		st.facts.Platform = st.opts.PlatformOverride
		st.facts.HasPlatform = true
		return nil
	}
	return tbderr.New(tbderr.KindPlatformNotFound, "no LC_BUILD_VERSION or version-min command")
}

// readLCString reads a NUL-terminated string stored at the uint32
// offset found at body[off:off+4], the layout every *_command's
// lc_str union field uses: the offset is relative to the start of the
// load command (payload, including the 8-byte common header), not to
// body.
func (st *state) readLCString(body []byte, off int) (string, error) {
	if off+4 > len(body) {
		return "", tbderr.New(tbderr.KindInvalidLoadCommand, "string offset field out of range")
	}
	strOff := st.byteOrder.Uint32(body[off : off+4])
	// body excludes the 8-byte common header that cmdStrOffsets are
	// measured from, so rebase.
	rel := int(strOff) - 8
	if rel < 0 || rel >= len(body) {
		return "", tbderr.New(tbderr.KindInvalidLoadCommand, "string offset outside load command")
	}
	term := bytes.IndexByte(body[rel:], 0)
	if term < 0 {
		return "", tbderr.New(tbderr.KindInvalidLoadCommand, "string is not NUL-terminated")
	}
	return string(body[rel : rel+term]), nil
}
