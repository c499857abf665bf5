package emit

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/leptos-null/tbd/stub"
	"github.com/leptos-null/tbd/tbderr"
	"github.com/leptos-null/tbd/types"
)

// WriteVerified serialises m like Write, then decodes its own output
// back through ParseDocument and checks the written archs list matches
// m.Archs.Names(), the cheap half of spec.md §8 property 1 a caller can
// afford to run on every real write rather than only in a test corpus.
func WriteVerified(w io.Writer, m *stub.Model, d Dialect) error {
	var b strings.Builder
	if err := Write(&b, m, d); err != nil {
		return err
	}
	doc, err := ParseDocument(strings.NewReader(b.String()))
	if err != nil {
		return tbderr.Wrap(tbderr.KindWriteFailed, err, "verify written tbd document")
	}
	want := m.Archs.Names()
	got := doc.StringList("archs")
	if len(want) != len(got) {
		return tbderr.Newf(tbderr.KindWriteFailed, "written archs list has %d entries, model has %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i] != name {
			return tbderr.Newf(tbderr.KindWriteFailed, "written archs[%d] = %q, want %q", i, got[i], name)
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return tbderr.Wrap(tbderr.KindWriteFailed, err, "write tbd output")
	}
	return nil
}

const lineWidth = 80

// specialChars are the bytes that force an entry to be emitted
// double-quoted, per spec.md §4.6.
const specialChars = `:{}[],&*#?|-<>=!%@\`

// Write serialises m to w in dialect d, per spec.md §4.6/§6.
func Write(w io.Writer, m *stub.Model, d Dialect) error {
	var b strings.Builder

	b.WriteString(d.header())
	b.WriteByte('\n')

	writeArchLine(&b, "archs", m.Archs)

	if d.hasUUIDs() {
		writeUUIDs(&b, m)
	}

	fmt.Fprintf(&b, "platform: %s\n", quote(m.Platform.String()))

	if d.hasFlags() {
		writeFlags(&b, m)
	}

	fmt.Fprintf(&b, "install-name: %s\n", quote(m.InstallName))
	fmt.Fprintf(&b, "current-version: %s\n", m.CurrentVersion)
	fmt.Fprintf(&b, "compatibility-version: %s\n", m.CompatibilityVersion)

	if m.SwiftVersion != 0 {
		fmt.Fprintf(&b, "swift-version: %d\n", m.SwiftVersion)
	}
	if m.ObjCConstraint != types.ObjCConstraintNone {
		fmt.Fprintf(&b, "objc-constraint: %s\n", m.ObjCConstraint)
	}
	if m.ParentUmbrella != "" {
		fmt.Fprintf(&b, "parent-umbrella: %s\n", quote(m.ParentUmbrella))
	}

	if err := writeExports(&b, m, d); err != nil {
		return err
	}
	b.WriteString("...\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return tbderr.Wrap(tbderr.KindWriteFailed, err, "write tbd output")
	}
	return nil
}

func writeArchLine(b *strings.Builder, key string, archs types.ArchSet) {
	fmt.Fprintf(b, "%s: [ %s ]\n", key, strings.Join(archs.Names(), ", "))
}

func writeUUIDs(b *strings.Builder, m *stub.Model) {
	b.WriteString("uuids: [")
	first := true
	for _, a := range m.Archs.Archs() {
		u, ok := m.UUIDs[a.Index]
		if !ok {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, " '%s: %s'", a.Name, u)
		first = false
	}
	b.WriteString(" ]\n")
}

func writeFlags(b *strings.Builder, m *stub.Model) {
	var flags []string
	if m.FlatNamespace {
		flags = append(flags, "flat_namespace")
	}
	if m.NotAppExtensionSafe {
		flags = append(flags, "not_app_extension_safe")
	}
	if len(flags) == 0 {
		return
	}
	fmt.Fprintf(b, "flags: [ %s ]\n", strings.Join(flags, ", "))
}

type bucket struct {
	key     string
	entries []stub.Entry
}

func buckets(m *stub.Model, d Dialect) []bucket {
	out := []bucket{{"re-exports", m.Reexports}}
	if d.hasAllowableClients() {
		out = append(out, bucket{"allowable-clients", m.AllowableClients})
	}
	out = append(out, bucket{"symbols", m.NormalSymbols})
	out = append(out, bucket{"objc-classes", m.ObjCClasses})
	if d.hasObjCEHTypes() {
		out = append(out, bucket{"objc-eh-types", m.ObjCEHTypes})
	}
	out = append(out, bucket{"objc-ivars", m.ObjCIvars})
	out = append(out, bucket{"weak-def-symbols", m.WeakDefinedSymbols})
	out = append(out, bucket{"thread-local-symbols", m.ThreadLocalSymbols})
	return out
}

// writeExports groups every bucket's entries by arch-subset into
// exports blocks ordered by first appearance of that subset, per
// spec.md §4.6/§6.
func writeExports(b *strings.Builder, m *stub.Model, d Dialect) error {
	bs := buckets(m, d)

	var order []types.ArchSet
	seen := make(map[types.ArchSet]bool)
	for _, bk := range bs {
		for _, e := range bk.entries {
			if !e.Archs.IsSubsetOf(m.Archs) {
				return tbderr.Newf(tbderr.KindContradictaryContainerInfo, "entry %q arch set exceeds model archs", e.Value)
			}
			if !seen[e.Archs] {
				seen[e.Archs] = true
				order = append(order, e.Archs)
			}
		}
	}

	if len(order) == 0 {
		return tbderr.New(tbderr.KindNoSymbolsOrReexports, "stub has no symbols or reexports to emit")
	}

	b.WriteString("exports:\n")
	for _, subset := range order {
		fmt.Fprintf(b, "  - archs: [ %s ]\n", strings.Join(subset.Names(), ", "))
		for _, bk := range bs {
			var values []string
			for _, e := range bk.entries {
				if e.Archs == subset {
					values = append(values, e.Value)
				}
			}
			if len(values) == 0 {
				continue
			}
			sort.Strings(values)
			writeWrapped(b, "    "+bk.key, values)
		}
	}
	return nil
}

// writeWrapped emits "prefix: [ v1, v2, ... ]", wrapping continuation
// entries onto further lines once the current line reaches 80 columns,
// indented to align under the first entry, per spec.md §4.6.
func writeWrapped(b *strings.Builder, prefix string, values []string) {
	head := prefix + ": [ "
	indent := strings.Repeat(" ", len(head))

	line := head
	for i, v := range values {
		tok := quote(v)
		if i < len(values)-1 {
			tok += ","
		} else {
			tok += " ]"
		}
		if line != head && line != indent && len(line)+1+len(tok) > lineWidth {
			b.WriteString(strings.TrimRight(line, " "))
			b.WriteByte('\n')
			line = indent
		}
		if line != head && line != indent {
			line += " "
		}
		line += tok
	}
	b.WriteString(line)
	b.WriteByte('\n')
}

func quote(s string) string {
	if !strings.ContainsAny(s, specialChars) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
