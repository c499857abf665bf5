// Package fat implements the Fat Dispatcher of spec.md §4.3: it reads a
// fat Mach-O header and yields a Byte Source for each contained thin
// Mach-O slice.
package fat

import (
	"encoding/binary"

	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// Slice is one entry of a fat Mach-O: the resolved architecture and a
// Byte Source covering exactly its thin Mach-O.
type Slice struct {
	Arch   types.Arch
	Source source.Source
}

const (
	fatHeaderSize = 8       // magic + nfat_arch, the portion common to both widths
	arch32Size    = 5 * 4   // cputype, cpusubtype, offset, size, align
	arch64Size    = 2*4 + 2*8 + 2*4 // cputype, cpusubtype, offset, size, align, reserved (64-bit offsets/sizes)

	maxFatArchCount = 4095
)

// Dispatch reads the fat header from s (which must start at the fat
// magic) and returns one Slice per contained architecture, in on-disk
// order. kind selects the 32- or 64-bit fat_arch layout.
func Dispatch(s source.Source, kind types.Kind) ([]Slice, error) {
	head := make([]byte, fatHeaderSize)
	if err := s.ReadAt(head, 0); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "read fat header")
	}
	// The fat header is always big-endian regardless of host or
	// contained-slice endianness.
	count := binary.BigEndian.Uint32(head[4:8])
	if count < 1 || count > maxFatArchCount {
		return nil, tbderr.Newf(tbderr.KindInvalidLoadCommand, "fat arch count %d out of range", count)
	}

	entrySize := arch32Size
	if kind == types.KindFat64 {
		entrySize = arch64Size
	}

	type rawRange struct {
		offset, size int64
	}
	var ranges []rawRange
	slices := make([]Slice, 0, count)

	off := int64(fatHeaderSize)
	for i := uint32(0); i < count; i++ {
		entry := make([]byte, entrySize)
		if err := s.ReadAt(entry, off); err != nil {
			return nil, tbderr.Wrapf(tbderr.KindIORead, err, "read fat_arch %d", i)
		}
		off += int64(entrySize)

		cputype := types.CPU(binary.BigEndian.Uint32(entry[0:4]))
		cpusubtype := types.CPUSubtype(binary.BigEndian.Uint32(entry[4:8]))

		var sliceOff, sliceSize int64
		var align uint32
		if kind == types.KindFat64 {
			sliceOff = int64(binary.BigEndian.Uint64(entry[8:16]))
			sliceSize = int64(binary.BigEndian.Uint64(entry[16:24]))
			align = binary.BigEndian.Uint32(entry[24:28])
		} else {
			sliceOff = int64(binary.BigEndian.Uint32(entry[8:12]))
			sliceSize = int64(binary.BigEndian.Uint32(entry[12:16]))
			align = binary.BigEndian.Uint32(entry[16:20])
		}

		if align > 31 {
			return nil, tbderr.Newf(tbderr.KindInvalidLoadCommand, "fat_arch %d align %d out of range", i, align)
		}
		if sliceOff < 0 || sliceSize < 0 || sliceOff+sliceSize > s.Size() {
			return nil, tbderr.Newf(tbderr.KindOutOfRange, "fat_arch %d range [%d,%d) exceeds container", i, sliceOff, sliceOff+sliceSize)
		}
		if align > 0 && sliceOff%(1<<align) != 0 {
			return nil, tbderr.Newf(tbderr.KindInvalidLoadCommand, "fat_arch %d offset %d not aligned to 2^%d", i, sliceOff, align)
		}
		for _, r := range ranges {
			if sliceOff < r.offset+r.size && r.offset < sliceOff+sliceSize {
				return nil, tbderr.Newf(tbderr.KindContradictaryContainerInfo, "fat_arch %d overlaps a previous slice", i)
			}
		}
		ranges = append(ranges, rawRange{sliceOff, sliceSize})

		arch, ok := types.Lookup(cputype, cpusubtype)
		if !ok {
			return nil, tbderr.Newf(tbderr.KindInvalidCPUType, "fat_arch %d: cputype %#x subtype %#x", i, cputype, cpusubtype)
		}
		for _, sl := range slices {
			if sl.Arch.Index == arch.Index {
				return nil, tbderr.Newf(tbderr.KindContradictaryContainerInfo, "duplicate architecture %s in fat container", arch.Name)
			}
		}

		sub, err := s.Slice(sliceOff, sliceSize)
		if err != nil {
			return nil, tbderr.Wrapf(tbderr.KindOutOfRange, err, "slice fat_arch %d", i)
		}
		slices = append(slices, Slice{Arch: arch, Source: sub})
	}
	return slices, nil
}
