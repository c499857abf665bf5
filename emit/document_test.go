package emit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestRoundTripDecodesWrittenDocument exercises spec.md §8 property 1
// (round-trip) at the document level: everything Write put on the
// page comes back out through ParseDocument with the same values.
func TestRoundTripDecodesWrittenDocument(t *testing.T) {
	m := simpleModel(t)
	var b strings.Builder
	if err := Write(&b, m, DialectV2); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := ParseDocument(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Tag != "!tapi-tbd-v2" {
		t.Errorf("Tag = %q, want !tapi-tbd-v2", doc.Tag)
	}
	if got := doc.StringList("archs"); len(got) != 1 || got[0] != "x86_64" {
		t.Errorf("archs = %v, want [x86_64]", got)
	}
	if got := doc.String("install-name"); got != m.InstallName {
		t.Errorf("install-name = %q, want %q", got, m.InstallName)
	}
	if got := doc.String("platform"); got != "macosx" {
		t.Errorf("platform = %q, want macosx", got)
	}

	exports := doc.Exports()
	if len(exports) != 1 {
		t.Fatalf("exports = %d blocks, want 1", len(exports))
	}
	symbols, ok := exports[0]["symbols"].([]any)
	if !ok || len(symbols) != 1 || symbols[0] != "_foo" {
		t.Errorf("exports[0].symbols = %v, want [_foo]", exports[0]["symbols"])
	}
}

func TestWriteVerifiedMatchesWrite(t *testing.T) {
	m := simpleModel(t)

	var plain, verified strings.Builder
	if err := Write(&plain, m, DialectV2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := WriteVerified(&verified, m, DialectV2); err != nil {
		t.Fatalf("WriteVerified: %v", err)
	}
	if plain.String() != verified.String() {
		t.Errorf("WriteVerified output differs from Write:\nWrite:\n%s\nWriteVerified:\n%s", plain.String(), verified.String())
	}
}

// TestWriteIsDeterministic asserts spec.md §8 property 5: two Write
// calls over the same Model parse back to identical documents.
func TestWriteIsDeterministic(t *testing.T) {
	m := simpleModel(t)

	var b1, b2 strings.Builder
	if err := Write(&b1, m, DialectV3); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := Write(&b2, m, DialectV3); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if b1.String() != b2.String() {
		t.Fatalf("Write output differs between runs:\n%s\n---\n%s", b1.String(), b2.String())
	}

	doc1, err := ParseDocument(strings.NewReader(b1.String()))
	if err != nil {
		t.Fatalf("ParseDocument 1: %v", err)
	}
	doc2, err := ParseDocument(strings.NewReader(b2.String()))
	if err != nil {
		t.Fatalf("ParseDocument 2: %v", err)
	}
	if diff := cmp.Diff(doc1.Root, doc2.Root); diff != "" {
		t.Errorf("decoded documents differ (-first +second):\n%s", diff)
	}
}
