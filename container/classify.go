// Package container implements the Container Classifier of spec.md
// §4.2: it reads the leading bytes of a Byte Source and decides whether
// it holds a fat Mach-O, a thin Mach-O, or a dyld shared-cache.
package container

import (
	"encoding/binary"

	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// Classify reads the first 16 bytes of s and returns the container
// Kind, per the decision table in spec.md §6.
func Classify(s source.Source) (types.Kind, error) {
	if s.Size() < 16 {
		return types.KindUnknown, tbderr.New(tbderr.KindNotAMachO, "source shorter than 16 bytes")
	}
	var head [16]byte
	if err := s.ReadAt(head[:], 0); err != nil {
		return types.KindUnknown, tbderr.Wrap(tbderr.KindIORead, err, "read container magic")
	}

	if string(head[:7]) == types.DyldCacheMagicPrefix {
		return types.KindDyldSharedCache, nil
	}

	magicBE := binary.BigEndian.Uint32(head[:4])
	switch types.Magic(magicBE) {
	case types.MagicFat32:
		return types.KindFat32, nil
	case types.MagicFat64:
		return types.KindFat64, nil
	case types.MagicThin32:
		return types.KindThin32, nil
	case types.MagicThin32Swapped:
		return types.KindThin32Swapped, nil
	case types.MagicThin64:
		return types.KindThin64, nil
	case types.MagicThin64Swapped:
		return types.KindThin64Swapped, nil
	}
	return types.KindUnknown, tbderr.Newf(tbderr.KindNotAMachO, "unrecognized magic %#08x", magicBE)
}
