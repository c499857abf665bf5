package types

// LoadCmd is a Mach-O load command id. Only the ids the Mach-O Image
// Parser consumes (spec.md §6) get names here; anything else is still
// validated for cmdsize and skipped.
type LoadCmd uint32

const (
	lcRequiresDyld LoadCmd = 0x80000000

	LcSegment            LoadCmd = 0x1
	LcSymtab             LoadCmd = 0x2
	LcDysymtab           LoadCmd = 0xb
	LcLoadDylib          LoadCmd = 0xc
	LcIdDylib            LoadCmd = 0xd
	LcRoutines           LoadCmd = 0x11
	LcSubFramework       LoadCmd = 0x12
	LcSubUmbrella        LoadCmd = 0x13
	LcSubClient          LoadCmd = 0x14
	LcSubLibrary         LoadCmd = 0x15
	LcLoadWeakDylib      LoadCmd = 0x18 | lcRequiresDyld
	LcSegment64          LoadCmd = 0x19
	LcRoutines64         LoadCmd = 0x1a
	LcUUID               LoadCmd = 0x1b
	LcReexportDylib      LoadCmd = 0x1f | lcRequiresDyld
	LcVersionMinMacOSX   LoadCmd = 0x24
	LcVersionMinIPhoneOS LoadCmd = 0x25
	LcLoadUpwardDylib    LoadCmd = 0x23 | lcRequiresDyld
	LcVersionMinTvOS     LoadCmd = 0x2f
	LcVersionMinWatchOS  LoadCmd = 0x30
	LcBuildVersion       LoadCmd = 0x32
)

// LoadCommand is the common 8-byte header every load command opens
// with: the command id and the total size (including this header) of
// the command's payload.
type LoadCommand struct {
	Cmd     LoadCmd
	CmdSize uint32
}

// DylibInfo is the (name offset, timestamp, current/compat version)
// payload shared by LC_ID_DYLIB, LC_LOAD_DYLIB, LC_LOAD_WEAK_DYLIB,
// LC_REEXPORT_DYLIB and LC_LOAD_UPWARD_DYLIB.
type DylibInfo struct {
	NameOffset     uint32
	Timestamp      uint32
	CurrentVersion Version
	CompatVersion  Version
}

// SymtabCommand is LC_SYMTAB's payload: the symbol and string table
// location within the file.
type SymtabCommand struct {
	SymOff  uint32
	NSyms   uint32
	StrOff  uint32
	StrSize uint32
}

// DysymtabCommand is LC_DYSYMTAB's payload. Only the externally-defined
// symbol range is consumed by the parser; the rest of the fields exist
// on the wire and are read past but not retained.
type DysymtabCommand struct {
	ILocalSym      uint32
	NLocalSym      uint32
	IExtDefSym     uint32
	NExtDefSym     uint32
	IUndefSym      uint32
	NUndefSym      uint32
	TocOffset      uint32
	NToc           uint32
	ModTabOffset   uint32
	NModTab        uint32
	ExtRefSymOff   uint32
	NExtRefSyms    uint32
	IndirectSymOff uint32
	NIndirectSyms  uint32
	ExtRelOff      uint32
	NExtRel        uint32
	LocRelOff      uint32
	NLocRel        uint32
}

// Segment32 and Segment64 are the fixed portion of LC_SEGMENT /
// LC_SEGMENT_64, used only for file/vm-range overlap validation and to
// locate __DATA,__objc_imageinfo.
type Segment32 struct {
	Name    [16]byte
	VMAddr  uint32
	VMSize  uint32
	FileOff uint32
	FileSz  uint32
	MaxProt int32
	InitProt int32
	NSects  uint32
	Flags   uint32
}

type Segment64 struct {
	Name    [16]byte
	VMAddr  uint64
	VMSize  uint64
	FileOff uint64
	FileSz  uint64
	MaxProt int32
	InitProt int32
	NSects  uint32
	Flags   uint32
}

type Section32 struct {
	Name     [16]byte
	SegName  [16]byte
	Addr     uint32
	Size     uint32
	Offset   uint32
	Align    uint32
	RelOff   uint32
	NReloc   uint32
	Flags    uint32
	Reserved1 uint32
	Reserved2 uint32
}

type Section64 struct {
	Name     [16]byte
	SegName  [16]byte
	Addr     uint64
	Size     uint64
	Offset   uint32
	Align    uint32
	RelOff   uint32
	NReloc   uint32
	Flags    uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

// BuildVersionCommand is LC_BUILD_VERSION's fixed portion (the trailing
// tool-version array is skipped; this parser never needs it).
type BuildVersionCommand struct {
	Platform  Platform
	MinOS     Version
	SDK       Version
	NTools    uint32
}

// VersionMinCommand is the legacy per-platform payload for
// LC_VERSION_MIN_MACOSX/IPHONEOS/TVOS/WATCHOS.
type VersionMinCommand struct {
	Version Version
	SDK     Version
}
