package emit

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/leptos-null/tbd/tbderr"
)

// Document is a generically-decoded tbd document: the same structural
// shape Write produces, parsed back without depending on stub.Model.
// It backs the round-trip check of spec.md §8 property 1 and gives a
// caller a way to inspect an emitted (or externally produced) tbd file
// without re-running the Mach-O parser.
type Document struct {
	// Tag is the document's "!tapi-tbd-vN" tag, the dialect marker
	// Write's header puts on the "---" line.
	Tag  string
	Root map[string]any
}

// ParseDocument decodes tbd YAML text from r into a Document, the
// reverse direction of Write. The exports list, arch lists, and
// scalar keys all come back as plain YAML values (strings, slices,
// nested maps); a caller wanting a stub.Model back has to re-derive
// one from these fields itself, the way the Mach-O parser's output
// would have produced them originally.
func ParseDocument(r io.Reader) (*Document, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "decode tbd document")
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) != 1 {
		return nil, tbderr.New(tbderr.KindIORead, "tbd document has no root mapping")
	}
	root := node.Content[0]

	var m map[string]any
	if err := root.Decode(&m); err != nil {
		return nil, tbderr.Wrap(tbderr.KindIORead, err, "decode tbd root mapping")
	}
	return &Document{Tag: root.Tag, Root: m}, nil
}

// StringList reads a top-level key expected to hold a YAML sequence
// of strings (archs, uuids), returning nil if the key is absent.
func (d *Document) StringList(key string) []string {
	v, ok := d.Root[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// String reads a top-level scalar string key, returning "" if absent
// or not a string.
func (d *Document) String(key string) string {
	s, _ := d.Root[key].(string)
	return s
}

// Exports reads the top-level "exports" sequence as a slice of its
// constituent maps, one per arch-subset block.
func (d *Document) Exports() []map[string]any {
	v, ok := d.Root["exports"]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
