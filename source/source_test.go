package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leptos-null/tbd/tbderr"
)

func TestBufferSourceReadAt(t *testing.T) {
	s := FromBytes([]byte("hello, world"))
	if s.Size() != 12 {
		t.Fatalf("Size() = %d, want 12", s.Size())
	}
	buf := make([]byte, 5)
	if err := s.ReadAt(buf, 7); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "world" {
		t.Errorf("ReadAt(7) = %q, want %q", buf, "world")
	}
}

func TestBufferSourceOutOfRange(t *testing.T) {
	s := FromBytes([]byte("short"))
	buf := make([]byte, 10)
	err := s.ReadAt(buf, 0)
	if err == nil {
		t.Fatal("ReadAt past end of buffer should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindOutOfRange {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindOutOfRange)
	}
}

func TestBufferSourceSlice(t *testing.T) {
	s := FromBytes([]byte("0123456789"))
	sl, err := s.Slice(3, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sl.Size() != 4 {
		t.Fatalf("slice Size() = %d, want 4", sl.Size())
	}
	buf := make([]byte, 4)
	if err := sl.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt on slice: %v", err)
	}
	if string(buf) != "3456" {
		t.Errorf("slice contents = %q, want %q", buf, "3456")
	}

	if _, err := s.Slice(8, 10); err == nil {
		t.Fatal("Slice extending past the source should fail")
	}
}

func TestBufferSourceClose(t *testing.T) {
	s := FromBytes([]byte("x"))
	if err := s.Close(); err != nil {
		t.Errorf("Close() on a buffer source = %v, want nil", err)
	}
}

func TestOpenFileAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.bin")
	want := []byte("mapped contents for the byte source test")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	if s.Size() != int64(len(want)) {
		t.Fatalf("Size() = %d, want %d", s.Size(), len(want))
	}
	got, err := ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("ReadAll() = %q, want %q", got, want)
	}
}

func TestOpenFileSliceIsIndependentlyClosable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	sl, err := s.Slice(2, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	// a slice does not own the mapping; closing it must not unmap the parent.
	if err := sl.Close(); err != nil {
		t.Fatalf("slice Close: %v", err)
	}
	buf := make([]byte, 3)
	if err := s.ReadAt(buf, 2); err != nil {
		t.Fatalf("parent ReadAt after slice Close: %v", err)
	}
	if string(buf) != "234" {
		t.Errorf("parent contents after slice Close = %q, want %q", buf, "234")
	}
}
