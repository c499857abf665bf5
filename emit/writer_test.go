package emit

import (
	"strings"
	"testing"

	"github.com/leptos-null/tbd/stub"
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

func simpleModel(t *testing.T) *stub.Model {
	t.Helper()
	x86 := mustArch(t, "x86_64")
	archs := types.ArchSet(0).With(x86)
	return &stub.Model{
		Archs:                archs,
		Platform:             types.PlatformMacOS,
		InstallName:          "/usr/lib/libFoo.dylib",
		CurrentVersion:       types.Version(0x00010000),
		CompatibilityVersion: types.Version(0x00010000),
		UUIDs:                map[int]types.UUID{x86.Index: {0xaa}},
		NormalSymbols:        []stub.Entry{{Value: "_foo", Archs: archs}},
	}
}

func TestWriteV2Basics(t *testing.T) {
	m := simpleModel(t)
	var b strings.Builder
	if err := Write(&b, m, DialectV2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"--- !tapi-tbd-v2\n",
		"archs: [ x86_64 ]\n",
		"platform: macosx\n",
		"install-name: /usr/lib/libFoo.dylib\n",
		"current-version: 1\n",
		"compatibility-version: 1\n",
		"exports:\n",
		"_foo",
		"...\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q; got:\n%s", want, out)
		}
	}
}

func TestWriteV1HasNoUUIDsOrAllowableClients(t *testing.T) {
	m := simpleModel(t)
	m.AllowableClients = []stub.Entry{{Value: "ClientApp", Archs: m.Archs}}

	var b strings.Builder
	if err := Write(&b, m, DialectV1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := b.String()
	if strings.Contains(out, "uuids:") {
		t.Error("v1 output should not contain a uuids key")
	}
	if strings.Contains(out, "allowable-clients:") {
		t.Error("v1 output should not contain allowable-clients")
	}
}

func TestWriteV2HasUUIDsSingleQuoted(t *testing.T) {
	m := simpleModel(t)
	var b strings.Builder
	if err := Write(&b, m, DialectV2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "uuids: [ 'x86_64:") {
		t.Errorf("output missing single-quoted uuid entry; got:\n%s", out)
	}
}

func TestWriteNoExportsFails(t *testing.T) {
	m := simpleModel(t)
	m.NormalSymbols = nil

	var b strings.Builder
	err := Write(&b, m, DialectV2)
	if err == nil {
		t.Fatal("Write of a model with no symbols or reexports should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindNoSymbolsOrReexports {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindNoSymbolsOrReexports)
	}
}

func TestWriteEntryArchNotSubsetFails(t *testing.T) {
	m := simpleModel(t)
	arm64 := mustArch(t, "arm64")
	m.NormalSymbols = append(m.NormalSymbols, stub.Entry{
		Value: "_bad", Archs: types.ArchSet(0).With(arm64),
	})

	var b strings.Builder
	err := Write(&b, m, DialectV2)
	if err == nil {
		t.Fatal("Write with an entry's arch set exceeding the model's archs should fail")
	}
	kind, ok := tbderr.Of(err)
	if !ok || kind != tbderr.KindContradictaryContainerInfo {
		t.Errorf("error kind = %v, want %v", kind, tbderr.KindContradictaryContainerInfo)
	}
}

func TestWriteWrapsLongLines(t *testing.T) {
	m := simpleModel(t)
	m.NormalSymbols = nil
	for i := 0; i < 30; i++ {
		m.NormalSymbols = append(m.NormalSymbols, stub.Entry{
			Value: strings.Repeat("a", 10) + string(rune('A'+i)),
			Archs: m.Archs,
		})
	}

	var b strings.Builder
	if err := Write(&b, m, DialectV2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, line := range strings.Split(b.String(), "\n") {
		if len(line) > lineWidth {
			t.Errorf("line exceeds %d columns: %q (%d)", lineWidth, line, len(line))
		}
	}
}

func TestDialectByName(t *testing.T) {
	d, ok := DialectByName("v3")
	if !ok || d != DialectV3 {
		t.Errorf("DialectByName(v3) = (%v, %v), want (%v, true)", d, ok, DialectV3)
	}
	if _, ok := DialectByName("v9"); ok {
		t.Error("DialectByName(v9) should fail")
	}
}
