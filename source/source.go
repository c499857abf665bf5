// Package source implements the Byte Source abstraction of spec.md
// §4.1: a random-access reader over a file, a subrange of a file, or an
// in-memory buffer, independently seekable and safe to hand to a single
// parser at a time.
package source

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/leptos-null/tbd/tbderr"
)

// Source is the Byte Source interface every classifier, dispatcher and
// parser in this module reads through. Implementations never expose a
// seek position; every read is addressed by absolute offset within the
// Source (offset 0 is always the start of whatever region the Source
// covers, even when it is a Slice of something larger).
type Source interface {
	// Size returns the number of bytes covered by this Source.
	Size() int64
	// ReadAt reads len(buf) bytes starting at off. A read that would
	// extend past Size() fails with tbderr.KindOutOfRange without
	// partially filling buf.
	ReadAt(buf []byte, off int64) error
	// Slice returns a new Source covering [off, off+length) of this
	// one. The returned Source shares the parent's underlying storage;
	// it does not copy.
	Slice(off, length int64) (Source, error)
	// Close releases any resources (file handle, mapping) this Source
	// owns outright. Slices of another Source are no-ops: only the
	// Source that opened the underlying handle owns it.
	Close() error
}

// mmapSource is a file opened read-only and memory-mapped, per
// spec.md §5 ("Memory-mapped regions are read-only and are unmapped
// when the Byte Source is dropped.").
type mmapSource struct {
	ra   *mmap.ReaderAt
	base int64
	size int64
}

// OpenFile memory-maps name read-only and returns a Source covering the
// whole file.
func OpenFile(name string) (Source, error) {
	ra, err := mmap.Open(name)
	if err != nil {
		return nil, tbderr.Wrapf(tbderr.KindIORead, err, "open %s", name)
	}
	return &mmapSource{ra: ra, base: 0, size: int64(ra.Len())}, nil
}

func (m *mmapSource) Size() int64 { return m.size }

func (m *mmapSource) ReadAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > m.size {
		return tbderr.New(tbderr.KindOutOfRange, "read past end of mapped file")
	}
	n, err := m.ra.ReadAt(buf, m.base+off)
	if err != nil && err != io.EOF {
		return tbderr.Wrap(tbderr.KindIORead, err, "mmap read")
	}
	if n < len(buf) {
		return tbderr.New(tbderr.KindIOShort, "short read")
	}
	return nil
}

func (m *mmapSource) Slice(off, length int64) (Source, error) {
	if off < 0 || length < 0 || off+length > m.size {
		return nil, tbderr.New(tbderr.KindOutOfRange, "slice out of range")
	}
	return &mmapSlice{parent: m, base: m.base + off, size: length}, nil
}

func (m *mmapSource) Close() error {
	if err := m.ra.Close(); err != nil {
		return tbderr.Wrap(tbderr.KindIORead, err, "unmap")
	}
	return nil
}

// mmapSlice is a sub-range of an mmapSource. It does not own the
// mapping; Close is a no-op, matching "Slices of another Source are
// no-ops" above.
type mmapSlice struct {
	parent *mmapSource
	base   int64
	size   int64
}

func (s *mmapSlice) Size() int64 { return s.size }

func (s *mmapSlice) ReadAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > s.size {
		return tbderr.New(tbderr.KindOutOfRange, "read past end of slice")
	}
	n, err := s.parent.ra.ReadAt(buf, s.base+off)
	if err != nil && err != io.EOF {
		return tbderr.Wrap(tbderr.KindIORead, err, "mmap read")
	}
	if n < len(buf) {
		return tbderr.New(tbderr.KindIOShort, "short read")
	}
	return nil
}

func (s *mmapSlice) Slice(off, length int64) (Source, error) {
	if off < 0 || length < 0 || off+length > s.size {
		return nil, tbderr.New(tbderr.KindOutOfRange, "slice out of range")
	}
	return &mmapSlice{parent: s.parent, base: s.base + off, size: length}, nil
}

func (s *mmapSlice) Close() error { return nil }

// bufferSource is an in-memory Byte Source, used by tests and by any
// caller that already holds the bytes (e.g. an image extracted from a
// dyld shared-cache into a scratch buffer).
type bufferSource struct {
	buf []byte
}

// FromBytes wraps buf as a Source. buf is not copied; the caller must
// not mutate it for the lifetime of the returned Source.
func FromBytes(buf []byte) Source {
	return &bufferSource{buf: buf}
}

func (b *bufferSource) Size() int64 { return int64(len(b.buf)) }

func (b *bufferSource) ReadAt(buf []byte, off int64) error {
	if off < 0 || off+int64(len(buf)) > int64(len(b.buf)) {
		return tbderr.New(tbderr.KindOutOfRange, "read past end of buffer")
	}
	copy(buf, b.buf[off:off+int64(len(buf))])
	return nil
}

func (b *bufferSource) Slice(off, length int64) (Source, error) {
	if off < 0 || length < 0 || off+length > int64(len(b.buf)) {
		return nil, tbderr.New(tbderr.KindOutOfRange, "slice out of range")
	}
	return &bufferSource{buf: b.buf[off : off+length]}, nil
}

func (b *bufferSource) Close() error { return nil }

// ReadAll reads the whole Source into a freshly allocated slice. Used
// where a parser needs repeated random access to a region too small to
// bother re-reading piecewise (a load-command stream, a string table).
func ReadAll(s Source) ([]byte, error) {
	buf := make([]byte, s.Size())
	if err := s.ReadAt(buf, 0); err != nil {
		return nil, errors.Wrap(err, "read all")
	}
	return buf, nil
}
