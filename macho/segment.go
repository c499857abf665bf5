package macho

import (
	"bytes"

	"github.com/leptos-null/tbd/tbderr"
)

func cstring16(b [16]byte) string {
	n := bytes.IndexByte(b[:], 0)
	if n < 0 {
		return string(b[:])
	}
	return string(b[:n])
}

// addSegment validates that seg's file and vm ranges do not overlap any
// segment already seen in this image, per spec.md §4.4 step 4's segment
// validation, then records it.
func (st *state) addSegment(seg segment) error {
	for _, prev := range st.segments {
		if rangesOverlap(seg.fileOff, seg.fileSz, prev.fileOff, prev.fileSz) {
			return tbderr.Newf(tbderr.KindInvalidSegment, "segment %q file range overlaps %q", seg.name, prev.name)
		}
		if seg.vmSz > 0 && prev.vmSz > 0 && rangesOverlap(seg.vmAddr, seg.vmSz, prev.vmAddr, prev.vmSz) {
			return tbderr.Newf(tbderr.KindInvalidSegment, "segment %q vm range overlaps %q", seg.name, prev.name)
		}
	}
	if seg.fileOff < 0 || seg.fileSz < 0 || seg.fileOff+seg.fileSz > st.src.Size() {
		return tbderr.Newf(tbderr.KindInvalidSegment, "segment %q file range exceeds container", seg.name)
	}
	st.segments = append(st.segments, seg)
	return nil
}

func rangesOverlap(off1, sz1, off2, sz2 int64) bool {
	return off1 < off2+sz2 && off2 < off1+sz1
}

func (st *state) handleSegment32(body []byte) error {
	if len(body) < 16+4*8 {
		return tbderr.New(tbderr.KindInvalidSegment, "LC_SEGMENT payload too small")
	}
	bo := st.byteOrder
	var nameBuf [16]byte
	copy(nameBuf[:], body[0:16])
	name := cstring16(nameBuf)

	vmAddr := int64(bo.Uint32(body[16:20]))
	vmSize := int64(bo.Uint32(body[20:24]))
	fileOff := int64(bo.Uint32(body[24:28]))
	fileSz := int64(bo.Uint32(body[28:32]))
	nsects := bo.Uint32(body[40:44])

	seg := segment{name: name, fileOff: fileOff, fileSz: fileSz, vmAddr: vmAddr, vmSz: vmSize}

	const sectionFixed = 16 + 16 + 4*9 // addr,size,offset,align,reloff,nreloc,flags,reserved1,reserved2
	off := 48
	for i := uint32(0); i < nsects; i++ {
		if off+sectionFixed > len(body) {
			return tbderr.Newf(tbderr.KindInvalidSegment, "segment %q: section %d truncated", name, i)
		}
		var sName, sSeg [16]byte
		copy(sName[:], body[off:off+16])
		copy(sSeg[:], body[off+16:off+32])
		addr := int64(bo.Uint32(body[off+32 : off+36]))
		size := int64(bo.Uint32(body[off+36 : off+40]))
		fileOffset := int64(bo.Uint32(body[off+40 : off+44]))
		seg.sections = append(seg.sections, section{
			name: cstring16(sName), segName: cstring16(sSeg),
			addr: addr, size: size, offset: fileOffset,
		})
		off += sectionFixed
	}
	return st.addSegment(seg)
}

func (st *state) handleSegment64(body []byte) error {
	if len(body) < 16+8*4+4*4 {
		return tbderr.New(tbderr.KindInvalidSegment, "LC_SEGMENT_64 payload too small")
	}
	bo := st.byteOrder
	var nameBuf [16]byte
	copy(nameBuf[:], body[0:16])
	name := cstring16(nameBuf)

	vmAddr := int64(bo.Uint64(body[16:24]))
	vmSize := int64(bo.Uint64(body[24:32]))
	fileOff := int64(bo.Uint64(body[32:40]))
	fileSz := int64(bo.Uint64(body[40:48]))
	nsects := bo.Uint32(body[56:60])

	seg := segment{name: name, fileOff: fileOff, fileSz: fileSz, vmAddr: vmAddr, vmSz: vmSize}

	const sectionFixed = 16 + 16 + 8 + 8 + 4*8 // offset,align,reloff,nreloc,flags,reserved1,reserved2,reserved3
	off := 64
	for i := uint32(0); i < nsects; i++ {
		if off+sectionFixed > len(body) {
			return tbderr.Newf(tbderr.KindInvalidSegment, "segment %q: section %d truncated", name, i)
		}
		var sName, sSeg [16]byte
		copy(sName[:], body[off:off+16])
		copy(sSeg[:], body[off+16:off+32])
		addr := int64(bo.Uint64(body[off+32 : off+40]))
		size := int64(bo.Uint64(body[off+40 : off+48]))
		fileOffset := int64(bo.Uint32(body[off+48 : off+52]))
		seg.sections = append(seg.sections, section{
			name: cstring16(sName), segName: cstring16(sSeg),
			addr: addr, size: size, offset: fileOffset,
		})
		off += sectionFixed
	}
	return st.addSegment(seg)
}

// findSection returns the section named seg/sect across every segment
// seen so far, or ok=false if absent.
func (st *state) findSection(seg, sect string) (section, bool) {
	for _, s := range st.segments {
		if s.name != seg {
			continue
		}
		for _, sec := range s.sections {
			if sec.name == sect {
				return sec, true
			}
		}
	}
	return section{}, false
}
