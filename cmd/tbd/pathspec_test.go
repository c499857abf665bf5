package main

import (
	"testing"

	"github.com/leptos-null/tbd/emit"
)

func TestParseGroupsSinglePath(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/usr/lib/libFoo.dylib", "-o", "/tmp/out.tbd"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Path != "/usr/lib/libFoo.dylib" || g.Output != "/tmp/out.tbd" {
		t.Errorf("group = %+v", g)
	}
}

func TestParseGroupsMultiplePaths(t *testing.T) {
	groups, err := parseGroups([]string{
		"-p", "/a.dylib", "-o", "/a.tbd",
		"-p", "/b.dylib", "-o", "/b.tbd",
	})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Path != "/a.dylib" || groups[1].Path != "/b.dylib" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestParseGroupsRecurseBareDefaultsToOnce(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/lib", "-r"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if groups[0].Recurse != recurseOnce {
		t.Errorf("Recurse = %v, want recurseOnce", groups[0].Recurse)
	}
}

func TestParseGroupsRecurseInlineAll(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/lib", "--recurse=all"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if groups[0].Recurse != recurseAll {
		t.Errorf("Recurse = %v, want recurseAll", groups[0].Recurse)
	}
}

func TestParseGroupsRecurseInlineOnce(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/lib", "-r=once"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if groups[0].Recurse != recurseOnce {
		t.Errorf("Recurse = %v, want recurseOnce", groups[0].Recurse)
	}
}

func TestParseGroupsRecurseInlineUnrecognized(t *testing.T) {
	if _, err := parseGroups([]string{"-p", "/lib", "--recurse=sideways"}); err == nil {
		t.Fatal("parseGroups with an unrecognized recurse mode should fail")
	}
}

func TestParseGroupsArchsList(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/lib", "--archs", "x86_64", "arm64", "-o", "/out.tbd"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	want := []string{"x86_64", "arm64"}
	got := groups[0].ArchOverride
	if len(got) != len(want) {
		t.Fatalf("ArchOverride = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ArchOverride[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseGroupsVersionFlag(t *testing.T) {
	groups, err := parseGroups([]string{"-p", "/lib", "-v", "v3"})
	if err != nil {
		t.Fatalf("parseGroups: %v", err)
	}
	if groups[0].Dialect != emit.DialectV3 {
		t.Errorf("Dialect = %v, want %v", groups[0].Dialect, emit.DialectV3)
	}
}

func TestParseGroupsNoPathFails(t *testing.T) {
	if _, err := parseGroups([]string{"--maintain-directories"}); err == nil {
		t.Fatal("parseGroups with no -p should fail")
	}
}

func TestParseGroupsUnrecognizedFlag(t *testing.T) {
	if _, err := parseGroups([]string{"-p", "/lib", "--not-a-real-flag"}); err == nil {
		t.Fatal("parseGroups with an unrecognized flag should fail")
	}
}

func TestSplitInline(t *testing.T) {
	flag, value, has := splitInline("--recurse=all")
	if flag != "--recurse" || value != "all" || !has {
		t.Errorf("splitInline(--recurse=all) = (%q, %q, %v)", flag, value, has)
	}
	flag, _, has = splitInline("--recurse")
	if flag != "--recurse" || has {
		t.Errorf("splitInline(--recurse) = (%q, _, %v), want has=false", flag, has)
	}
}

func TestConsumeList(t *testing.T) {
	argv := []string{"--archs", "x86_64", "arm64", "-o", "/out.tbd"}
	i := 0
	list, err := consumeList(argv, &i)
	if err != nil {
		t.Fatalf("consumeList: %v", err)
	}
	if len(list) != 2 || list[0] != "x86_64" || list[1] != "arm64" {
		t.Fatalf("consumeList = %v, want [x86_64 arm64]", list)
	}
	if argv[i] != "arm64" {
		t.Errorf("cursor left at %q, want %q", argv[i], "arm64")
	}
}
