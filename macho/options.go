package macho

import "github.com/leptos-null/tbd/types"

// Options configures one invocation of Parse. The zero value parses
// strictly to the external-symbol default spec.md §4.4 describes.
type Options struct {
	// ExpectedArch, when non-nil, must match the architecture the
	// header reports; a mismatch is an invalid-cputype error. When
	// nil, Parse determines the architecture from the header alone.
	ExpectedArch *types.Arch

	// AllowPrivateNormalSymbols retains private (non-external, non
	// objc) normal/weak/thread-local symbols that would otherwise be
	// dropped by the external-only default.
	AllowPrivateNormalSymbols bool
	// AllowPrivateExternalSymbols retains private-external (N_PEXT)
	// symbols of any classification.
	AllowPrivateExternalSymbols bool
	// AllowPrivateObjCSymbols retains private objc class/metaclass/
	// ehtype/ivar symbols.
	AllowPrivateObjCSymbols bool

	// PlatformOverride, when non-zero, is used in place of a platform
	// the parser failed to determine, letting a caller resolve a
	// recoverable platform-not-found/multiple-platforms error without
	// re-reading the file (spec.md §9 "Recoverable platform errors").
	PlatformOverride types.Platform
}
