package container

import (
	"encoding/binary"
	"testing"

	"github.com/leptos-null/tbd/source"
	"github.com/leptos-null/tbd/types"
)

func pad16(b []byte) []byte {
	out := make([]byte, 16)
	copy(out, b)
	return out
}

func TestClassifyThin64(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(types.MagicThin64))
	s := source.FromBytes(pad16(buf))
	kind, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if kind != types.KindThin64 {
		t.Errorf("Classify() = %v, want %v", kind, types.KindThin64)
	}
}

func TestClassifyFat32(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(types.MagicFat32))
	s := source.FromBytes(pad16(buf))
	kind, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if kind != types.KindFat32 {
		t.Errorf("Classify() = %v, want %v", kind, types.KindFat32)
	}
}

func TestClassifyDyldSharedCache(t *testing.T) {
	head := make([]byte, 16)
	copy(head, "dyld_v1  arm64")
	s := source.FromBytes(head)
	kind, err := Classify(s)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if kind != types.KindDyldSharedCache {
		t.Errorf("Classify() = %v, want %v", kind, types.KindDyldSharedCache)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	s := source.FromBytes(make([]byte, 16))
	if _, err := Classify(s); err == nil {
		t.Fatal("Classify of sixteen zero bytes should fail")
	}
}

func TestClassifyTooShort(t *testing.T) {
	s := source.FromBytes([]byte{0, 1, 2})
	if _, err := Classify(s); err == nil {
		t.Fatal("Classify of a too-short source should fail")
	}
}
