package types

// Magic is a Mach-O or fat container magic number, as it appears in the
// first four bytes of the file, before byte-order is known.
type Magic uint32

const (
	MagicFat32  Magic = 0xcafebabe
	MagicFat64  Magic = 0xcafebabf
	MagicThin32 Magic = 0xfeedface
	MagicThin64 Magic = 0xfeedfacf
	// MagicThin32Swapped and MagicThin64Swapped are MagicThin32/64 as
	// they read when the file's actual byte order is the opposite of
	// the host reading the first four bytes big-endian.
	MagicThin32Swapped Magic = 0xcefaedfe
	MagicThin64Swapped Magic = 0xcffaedfe
)

// Kind classifies the container format found at the start of a Byte
// Source, before any load-command or header parsing occurs.
type Kind int

const (
	KindUnknown Kind = iota
	KindFat32
	KindFat64
	KindThin32
	KindThin32Swapped
	KindThin64
	KindThin64Swapped
	KindDyldSharedCache
)

func (k Kind) String() string {
	switch k {
	case KindFat32:
		return "fat32"
	case KindFat64:
		return "fat64"
	case KindThin32:
		return "thin32"
	case KindThin32Swapped:
		return "thin32-swapped"
	case KindThin64:
		return "thin64"
	case KindThin64Swapped:
		return "thin64-swapped"
	case KindDyldSharedCache:
		return "dsc"
	default:
		return "unknown"
	}
}

// DyldCacheMagicPrefix is the ASCII tag that opens every dyld
// shared-cache header, followed by an architecture suffix such as
// "arm64" or "x86_64", space-padded to 16 bytes total.
const DyldCacheMagicPrefix = "dyld_v1"
