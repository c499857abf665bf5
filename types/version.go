package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Version is a Mach-O 32-bit packed version number: 16 bits of major,
// 8 of minor, 8 of patch (xxxx.yy.zz).
type Version uint32

func (v Version) Major() uint16 { return uint16(v >> 16) }
func (v Version) Minor() uint8  { return uint8(v >> 8) }
func (v Version) Patch() uint8  { return uint8(v) }

// String renders major.minor.patch, eliding trailing zero components
// below the major (1.0.0 -> "1", 1.2.0 -> "1.2", 1.2.3 -> "1.2.3"), the
// form the tbd dialects use for current-version/compatibility-version.
func (v Version) String() string {
	if v.Patch() != 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	}
	if v.Minor() != 0 {
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return fmt.Sprintf("%d", v.Major())
}

// UUID is a 16-byte Mach-O LC_UUID payload.
type UUID [16]byte

// String renders u in the upper-case dashed form the tbd dialects use
// for uuids entries, via google/uuid's standard grouping.
func (u UUID) String() string {
	return strings.ToUpper(uuid.UUID(u).String())
}

// Platform is a Mach-O LC_BUILD_VERSION / version-min platform number.
type Platform uint32

const (
	PlatformUnknown     Platform = 0
	PlatformMacOS       Platform = 1
	PlatformIOS         Platform = 2
	PlatformTvOS        Platform = 3
	PlatformWatchOS     Platform = 4
	PlatformBridgeOS    Platform = 5
	PlatformMacCatalyst Platform = 6
	PlatformIOSSimulator   Platform = 7
	PlatformTvOSSimulator  Platform = 8
	PlatformWatchOSSimulator Platform = 9
	PlatformDriverKit   Platform = 10
)

var platformNames = map[Platform]string{
	PlatformMacOS:            "macosx",
	PlatformIOS:              "ios",
	PlatformTvOS:             "tvos",
	PlatformWatchOS:          "watchos",
	PlatformBridgeOS:         "bridgeos",
	PlatformMacCatalyst:      "maccatalyst",
	PlatformIOSSimulator:     "ios-simulator",
	PlatformTvOSSimulator:    "tvos-simulator",
	PlatformWatchOSSimulator: "watchos-simulator",
	PlatformDriverKit:        "driverkit",
}

func (p Platform) String() string {
	if s, ok := platformNames[p]; ok {
		return s
	}
	return "unknown"
}

// PlatformByName resolves a platform from its tbd/CLI name, as used by
// --platform and the --list-platform table.
func PlatformByName(name string) (Platform, bool) {
	for p, s := range platformNames {
		if s == name {
			return p, true
		}
	}
	return PlatformUnknown, false
}

// AllPlatforms returns every named platform, stable-ordered by
// numeric value, for --list-platform.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformMacOS, PlatformIOS, PlatformTvOS, PlatformWatchOS,
		PlatformBridgeOS, PlatformMacCatalyst, PlatformIOSSimulator,
		PlatformTvOSSimulator, PlatformWatchOSSimulator, PlatformDriverKit,
	}
}

// ZipperedWith reports whether p and other are the one supported
// "zippered" pair (macOS and Mac Catalyst binaries sharing a single
// slice), per spec.md §3's platform invariant.
func (p Platform) ZipperedWith(other Platform) bool {
	return (p == PlatformMacOS && other == PlatformMacCatalyst) ||
		(p == PlatformMacCatalyst && other == PlatformMacOS)
}
