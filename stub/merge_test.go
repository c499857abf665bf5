package stub

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leptos-null/tbd/image"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

func mustArch(t *testing.T, name string) types.Arch {
	t.Helper()
	a, ok := types.LookupName(name)
	if !ok {
		t.Fatalf("unknown arch %q", name)
	}
	return a
}

func baseFacts(t *testing.T, archName string, uuid byte) *image.Facts {
	t.Helper()
	f := &image.Facts{
		Arch:           mustArch(t, archName),
		InstallName:    "/usr/lib/libFoo.dylib",
		CurrentVersion: types.Version(0x00010000),
		Platform:       types.PlatformMacOS,
		HasUUID:        true,
	}
	for i := range f.UUID {
		f.UUID[i] = uuid
	}
	return f
}

func TestMergeSingleArch(t *testing.T) {
	f := baseFacts(t, "x86_64", 0xaa)
	f.Reexports = []string{"/usr/lib/libBar.dylib"}
	f.Symbols = []image.Symbol{{Name: "_foo", Kind: image.SymbolNormal, Privacy: image.PrivacyExternal}}

	m, err := Merge([]*image.Facts{f})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if m.InstallName != "/usr/lib/libFoo.dylib" {
		t.Errorf("InstallName = %q", m.InstallName)
	}
	x86 := mustArch(t, "x86_64")
	if !m.Archs.Has(x86) {
		t.Error("merged model missing x86_64 in Archs")
	}
	if len(m.Reexports) != 1 || m.Reexports[0].Value != "/usr/lib/libBar.dylib" {
		t.Fatalf("Reexports = %+v", m.Reexports)
	}
	if !m.Reexports[0].Archs.Has(x86) {
		t.Error("reexport entry missing x86_64 in its arch bitset")
	}
	if u, ok := m.UUIDs[x86.Index]; !ok || u != f.UUID {
		t.Errorf("UUIDs[%d] = %v, ok=%v, want %v", x86.Index, u, ok, f.UUID)
	}
}

func TestMergeTwoArchsAccumulate(t *testing.T) {
	f1 := baseFacts(t, "x86_64", 0xaa)
	f1.Symbols = []image.Symbol{{Name: "_shared", Kind: image.SymbolNormal, Privacy: image.PrivacyExternal}}

	f2 := baseFacts(t, "arm64", 0xbb)
	f2.Symbols = []image.Symbol{
		{Name: "_shared", Kind: image.SymbolNormal, Privacy: image.PrivacyExternal},
		{Name: "_arm_only", Kind: image.SymbolNormal, Privacy: image.PrivacyExternal},
	}

	m, err := Merge([]*image.Facts{f1, f2})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(m.NormalSymbols) != 2 {
		t.Fatalf("NormalSymbols = %+v, want 2 entries", m.NormalSymbols)
	}

	x86 := mustArch(t, "x86_64")
	arm64 := mustArch(t, "arm64")
	both := types.ArchSet(0).With(x86).With(arm64)

	for _, e := range m.NormalSymbols {
		switch e.Value {
		case "_shared":
			if e.Archs != both {
				t.Errorf("_shared archs = %v, want both x86_64 and arm64", e.Archs.Names())
			}
		case "_arm_only":
			if e.Archs != types.ArchSet(0).With(arm64) {
				t.Errorf("_arm_only archs = %v, want arm64 only", e.Archs.Names())
			}
		default:
			t.Errorf("unexpected symbol %q", e.Value)
		}
	}
}

func TestMergeScalarMismatch(t *testing.T) {
	f1 := baseFacts(t, "x86_64", 0xaa)
	f2 := baseFacts(t, "arm64", 0xbb)
	f2.InstallName = "/usr/lib/libOther.dylib"

	_, err := Merge([]*image.Facts{f1, f2})
	if err == nil {
		t.Fatal("Merge with disagreeing install names should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindContradictaryContainerInfo {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindContradictaryContainerInfo)
	}
}

func TestMergeMissingUUID(t *testing.T) {
	f := baseFacts(t, "x86_64", 0xaa)
	f.HasUUID = false

	_, err := Merge([]*image.Facts{f})
	if err == nil {
		t.Fatal("Merge of a Facts lacking a UUID should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindHasNoUUID {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindHasNoUUID)
	}
}

func TestMergeDuplicateUUID(t *testing.T) {
	f1 := baseFacts(t, "x86_64", 0xaa)
	f2 := baseFacts(t, "arm64", 0xaa) // same UUID bytes as f1

	_, err := Merge([]*image.Facts{f1, f2})
	if err == nil {
		t.Fatal("Merge of two architectures sharing a UUID should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindUUIDNotUnique {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindUUIDNotUnique)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if _, err := Merge(nil); err == nil {
		t.Fatal("Merge of no Facts should fail")
	}
}

// TestMergeIdempotent asserts spec.md §8 property 2: merging the same
// Image Facts twice, independently, yields structurally equal Stub
// Models.
func TestMergeIdempotent(t *testing.T) {
	f := baseFacts(t, "x86_64", 0xaa)
	f.Reexports = []string{"/usr/lib/libBar.dylib"}
	f.ParentUmbrella = "UIKit"
	f.Symbols = []image.Symbol{
		{Name: "_foo", Kind: image.SymbolNormal, Privacy: image.PrivacyExternal},
		{Name: "_weak", Kind: image.SymbolWeakDef, Privacy: image.PrivacyExternal},
	}

	m1, err := Merge([]*image.Facts{f})
	if err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	m2, err := Merge([]*image.Facts{f})
	if err != nil {
		t.Fatalf("second Merge: %v", err)
	}
	if diff := cmp.Diff(m1, m2); diff != "" {
		t.Errorf("merge is not idempotent (-first +second):\n%s", diff)
	}
}

func TestMergeEmptyInstallName(t *testing.T) {
	f := baseFacts(t, "x86_64", 0xaa)
	f.InstallName = ""

	_, err := Merge([]*image.Facts{f})
	if err == nil {
		t.Fatal("Merge of a Facts with an empty install name should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindEmptyInstallationName {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindEmptyInstallationName)
	}
}
