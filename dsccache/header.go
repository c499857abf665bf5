// Package dsccache implements the DSC Image Iterator and Filter/
// Selection Layer of spec.md §4.7/§4.8: it parses a dyld shared-cache
// container, translates each contained image's address into a file
// offset, and decides which images a caller's filters select.
package dsccache

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/tbderr"
)

const (
	magicPrefix   = "dyld_v1"
	magicSize     = 16
	maxMappings   = 16
	headerMinSize = 0x60
	// uuidOffset is where the cache UUID sits in dyld_cache_header,
	// right after localSymbolsOffset/localSymbolsSize.
	uuidOffset = 0x50
)

// Header is the parsed dyld shared-cache header, per spec.md §4.7.
type Header struct {
	ArchTag         string
	MappingOffset   uint32
	MappingCount    uint32
	ImagesOffset    uint32
	ImagesCount     uint32
	SlideInfoOffset uint32
	// UUID identifies this cache file, the same 16-byte value ipsw's
	// pkg/dyld.CacheHeader carries at the equivalent offset.
	UUID uuid.UUID
}

// Mapping is one dyld_cache_mapping_info entry: a contiguous
// virtual-address region backed by a same-sized file range.
type Mapping struct {
	Address    uint64
	Size       uint64
	FileOffset uint64
}

// ImageEntry is one dyld_cache_image_info entry.
type ImageEntry struct {
	Address        uint64
	ModTime        uint64
	Inode          uint64
	PathFileOffset uint32
}

// Cache is a parsed dyld shared-cache container ready for image
// iteration.
type Cache struct {
	Header   Header
	Mappings []Mapping
	Images   []ImageEntry
	src      source.Source
}

// Open parses s as a dyld shared-cache, validating the header, mapping
// table, and image table per spec.md §4.7.
func Open(s source.Source) (*Cache, error) {
	if s.Size() < headerMinSize {
		return nil, tbderr.New(tbderr.KindNotASharedCache, "file too small for a dyld shared-cache header")
	}
	magicBuf := make([]byte, magicSize)
	if err := s.ReadAt(magicBuf, 0); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "read cache magic")
	}
	tag := trimTrailingNul(magicBuf)
	if len(tag) < len(magicPrefix) || tag[:len(magicPrefix)] != magicPrefix {
		return nil, tbderr.New(tbderr.KindNotASharedCache, "magic is not \"dyld_v1\"-prefixed")
	}
	archTag := ""
	if len(tag) > len(magicPrefix) {
		archTag = trimLeadingSpace(tag[len(magicPrefix):])
	}

	hdrBuf := make([]byte, headerMinSize)
	if err := s.ReadAt(hdrBuf, 0); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "read cache header")
	}
	bo := binary.LittleEndian
	h := Header{
		ArchTag:         archTag,
		MappingOffset:   bo.Uint32(hdrBuf[0x10:0x14]),
		MappingCount:    bo.Uint32(hdrBuf[0x14:0x18]),
		ImagesOffset:    bo.Uint32(hdrBuf[0x18:0x1c]),
		ImagesCount:     bo.Uint32(hdrBuf[0x1c:0x20]),
		SlideInfoOffset: bo.Uint32(hdrBuf[0x20:0x24]),
	}
	copy(h.UUID[:], hdrBuf[uuidOffset:uuidOffset+16])

	if h.MappingCount == 0 || h.MappingCount > maxMappings {
		return nil, tbderr.Newf(tbderr.KindNotASharedCache, "mapping count %d out of range", h.MappingCount)
	}

	mappings, err := readMappings(s, h)
	if err != nil {
		return nil, err
	}
	images, err := readImages(s, h)
	if err != nil {
		return nil, err
	}

	return &Cache{Header: h, Mappings: mappings, Images: images, src: s}, nil
}

const mappingEntrySize = 8 + 8 + 8 + 4 + 4

func readMappings(s source.Source, h Header) ([]Mapping, error) {
	size := int64(h.MappingCount) * mappingEntrySize
	if int64(h.MappingOffset)+size > s.Size() {
		return nil, tbderr.New(tbderr.KindOutOfRange, "mapping table exceeds file size")
	}
	buf := make([]byte, size)
	if err := s.ReadAt(buf, int64(h.MappingOffset)); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "read mapping table")
	}
	bo := binary.LittleEndian
	out := make([]Mapping, h.MappingCount)
	for i := range out {
		off := i * mappingEntrySize
		m := Mapping{
			Address:    bo.Uint64(buf[off : off+8]),
			Size:       bo.Uint64(buf[off+8 : off+16]),
			FileOffset: bo.Uint64(buf[off+16 : off+24]),
		}
		if int64(m.FileOffset)+int64(m.Size) > s.Size() {
			return nil, tbderr.Newf(tbderr.KindOutOfRange, "mapping %d file range exceeds file size", i)
		}
		for j := 0; j < i; j++ {
			if rangesOverlap(m.Address, m.Size, out[j].Address, out[j].Size) {
				return nil, tbderr.Newf(tbderr.KindContradictaryContainerInfo, "mapping %d overlaps mapping %d", i, j)
			}
		}
		out[i] = m
	}
	return out, nil
}

const imageEntrySize = 8 + 8 + 8 + 4 + 4

func readImages(s source.Source, h Header) ([]ImageEntry, error) {
	size := int64(h.ImagesCount) * imageEntrySize
	if int64(h.ImagesOffset)+size > s.Size() {
		return nil, tbderr.New(tbderr.KindOutOfRange, "image table exceeds file size")
	}
	buf := make([]byte, size)
	if err := s.ReadAt(buf, int64(h.ImagesOffset)); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "read image table")
	}
	bo := binary.LittleEndian
	out := make([]ImageEntry, h.ImagesCount)
	seen := make(map[string]bool, h.ImagesCount)
	for i := range out {
		off := i * imageEntrySize
		e := ImageEntry{
			Address:        bo.Uint64(buf[off : off+8]),
			ModTime:        bo.Uint64(buf[off+8 : off+16]),
			Inode:          bo.Uint64(buf[off+16 : off+24]),
			PathFileOffset: bo.Uint32(buf[off+24 : off+28]),
		}
		if int64(e.PathFileOffset) >= s.Size() {
			return nil, tbderr.Newf(tbderr.KindOutOfRange, "image %d path offset exceeds file size", i)
		}
		out[i] = e
	}
	for i, e := range out {
		p, err := readCString(s, int64(e.PathFileOffset))
		if err != nil {
			return nil, tbderr.Wrapf(tbderr.KindOutOfRange, err, "image %d path", i)
		}
		key := p
		if seen[key] {
			return nil, tbderr.Newf(tbderr.KindContradictaryContainerInfo, "duplicate image path %q", p)
		}
		seen[key] = true
	}
	return out, nil
}

func rangesOverlap(off1, sz1, off2, sz2 uint64) bool {
	return off1 < off2+sz2 && off2 < off1+sz1
}

func readCString(s source.Source, off int64) (string, error) {
	const chunk = 256
	var out []byte
	for {
		buf := make([]byte, chunk)
		n := int64(len(buf))
		if off+n > s.Size() {
			n = s.Size() - off
		}
		if n <= 0 {
			return "", tbderr.New(tbderr.KindOutOfRange, "unterminated string ran off end of file")
		}
		if err := s.ReadAt(buf[:n], off); err != nil {
			return "", err
		}
		for i := int64(0); i < n; i++ {
			if buf[i] == 0 {
				return string(append(out, buf[:i]...)), nil
			}
		}
		out = append(out, buf[:n]...)
		off += n
	}
}

func trimTrailingNul(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return s[i:]
}
