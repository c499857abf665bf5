package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/leptos-null/tbd/emit"
	"github.com/leptos-null/tbd/macho"
	"github.com/leptos-null/tbd/types"
)

// recurseMode selects how -r/--recurse walks a directory -p argument.
type recurseMode int

const (
	recurseNone recurseMode = iota
	recurseOnce
	recurseAll
)

// pathOptions is one -p argument together with the per-path options
// that followed it, per spec.md §6's CLI surface.
type pathOptions struct {
	Path    string
	Output  string // "" means derive a sibling .tbd path; "stdout" means standard output
	Dialect emit.Dialect

	ArchOverride []string // --archs: replace the parsed architecture set entirely
	ArchFilter   []string // -a/--arch: restrict output to these architectures

	Platform types.Platform
	Recurse  recurseMode

	AllowPrivateNormalSymbols   bool
	AllowPrivateExternalSymbols bool
	AllowPrivateObjCSymbols     bool

	MaintainDirectories bool
	DontPrintWarnings   bool

	// DSCFilters selects which images a -p pointed at a dyld
	// shared-cache extracts, per spec.md §4.8. Nil means every image.
	DSCFilters []dscFilterArg
}

// dscFilterArg is one --number/--directory-filter/--filename-filter/
// --exact-path-filter argument, translated into a dsccache.Filter once
// the cache is open by runDSCFile (run.go); this file does not import
// dsccache.
type dscFilterArg struct {
	kind  string
	value string
	num   int
}

// globalDefaults seeds each pathOptions before its own flags are
// parsed. Global flags set before the first -p apply to every path
// that does not override them, per spec.md §6.
type globalDefaults struct {
	dialect                     emit.Dialect
	platform                    types.Platform
	allowPrivateNormalSymbols   bool
	allowPrivateExternalSymbols bool
	allowPrivateObjCSymbols     bool
	dontPrintWarnings           bool
}

// defaultGlobalDefaults seeds globalDefaults from whatever loadConfig
// (root.go) bound into viper from $HOME/.config/tbd/config.yaml or the
// TBD_* environment family, falling back to this tool's built-in
// defaults for anything unset, per spec.md §6's per-path option
// defaults.
func defaultGlobalDefaults() globalDefaults {
	g := globalDefaults{dialect: emit.DialectV2}
	if v := viper.GetString("version"); v != "" {
		if d, ok := emit.DialectByName(v); ok {
			g.dialect = d
		}
	}
	if v := viper.GetString("platform"); v != "" {
		if p, ok := types.PlatformByName(v); ok {
			g.platform = p
		}
	}
	g.allowPrivateNormalSymbols = viper.GetBool("allow-private-normal-symbols")
	g.allowPrivateExternalSymbols = viper.GetBool("allow-private-external-symbols")
	g.allowPrivateObjCSymbols = viper.GetBool("allow-private-objc-symbols")
	g.dontPrintWarnings = viper.GetBool("dont-print-warnings")
	return g
}

func newPathOptions(g globalDefaults) *pathOptions {
	return &pathOptions{
		Dialect:                     g.dialect,
		Platform:                    g.platform,
		AllowPrivateNormalSymbols:   g.allowPrivateNormalSymbols,
		AllowPrivateExternalSymbols: g.allowPrivateExternalSymbols,
		AllowPrivateObjCSymbols:     g.allowPrivateObjCSymbols,
		DontPrintWarnings:           g.dontPrintWarnings,
	}
}

// parseGroups walks argv (already stripped of the program name) into
// an ordered list of pathOptions, following the original tbd tool's
// grouped "-p <path> [options...] -o <output>" argument convention
// (spec.md §6). Options before the first -p become globalDefaults.
func parseGroups(argv []string) ([]*pathOptions, error) {
	var groups []*pathOptions
	g := defaultGlobalDefaults()

	cur := func() *pathOptions {
		if len(groups) == 0 {
			return nil
		}
		return groups[len(groups)-1]
	}

	i := 0
	next := func() (string, error) {
		if i+1 >= len(argv) {
			return "", fmt.Errorf("%s: missing argument", argv[i])
		}
		i++
		return argv[i], nil
	}

	for ; i < len(argv); i++ {
		tok := argv[i]
		flag, inline, hasInline := splitInline(tok)

		if flag == "-r" || flag == "--recurse" {
			mode := recurseOnce
			if hasInline {
				switch inline {
				case "all":
					mode = recurseAll
				case "once":
					mode = recurseOnce
				default:
					return nil, fmt.Errorf("--recurse: unrecognized mode %q", inline)
				}
			}
			if c := cur(); c != nil {
				c.Recurse = mode
			}
			continue
		}

		switch tok {
		case "-p", "--path":
			p, err := next()
			if err != nil {
				return nil, err
			}
			groups = append(groups, newPathOptions(g))
			cur().Path = p
		case "-o", "--output":
			v, err := next()
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.Output = v
			}
		case "-v", "--version":
			v, err := next()
			if err != nil {
				return nil, err
			}
			d, ok := emit.DialectByName(v)
			if !ok {
				return nil, fmt.Errorf("unrecognized tbd version %q", v)
			}
			if c := cur(); c != nil {
				c.Dialect = d
			} else {
				g.dialect = d
			}
		case "--platform":
			v, err := next()
			if err != nil {
				return nil, err
			}
			p, ok := types.PlatformByName(v)
			if !ok {
				return nil, fmt.Errorf("unrecognized platform %q", v)
			}
			if c := cur(); c != nil {
				c.Platform = p
			} else {
				g.platform = p
			}
		case "-a", "--arch":
			list, err := consumeList(argv, &i)
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.ArchFilter = list
			}
		case "--archs":
			list, err := consumeList(argv, &i)
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.ArchOverride = list
			}
		case "--maintain-directories":
			if c := cur(); c != nil {
				c.MaintainDirectories = true
			}
		case "--dont-print-warnings":
			if c := cur(); c != nil {
				c.DontPrintWarnings = true
			} else {
				g.dontPrintWarnings = true
			}
		case "--number":
			v, err := next()
			if err != nil {
				return nil, err
			}
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
				return nil, fmt.Errorf("--number: %q is not an integer", v)
			}
			if c := cur(); c != nil {
				c.DSCFilters = append(c.DSCFilters, dscFilterArg{kind: "number", num: n})
			}
		case "--directory-filter":
			v, err := next()
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.DSCFilters = append(c.DSCFilters, dscFilterArg{kind: "directory", value: v})
			}
		case "--filename-filter":
			v, err := next()
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.DSCFilters = append(c.DSCFilters, dscFilterArg{kind: "filename", value: v})
			}
		case "--exact-path-filter":
			v, err := next()
			if err != nil {
				return nil, err
			}
			if c := cur(); c != nil {
				c.DSCFilters = append(c.DSCFilters, dscFilterArg{kind: "path", value: v})
			}
		case "--allow-private-normal-symbols":
			setAllow(cur(), &g, func(p *pathOptions) { p.AllowPrivateNormalSymbols = true }, func() { g.allowPrivateNormalSymbols = true })
		case "--allow-private-external-symbols":
			setAllow(cur(), &g, func(p *pathOptions) { p.AllowPrivateExternalSymbols = true }, func() { g.allowPrivateExternalSymbols = true })
		case "--allow-private-objc-symbols":
			setAllow(cur(), &g, func(p *pathOptions) { p.AllowPrivateObjCSymbols = true }, func() { g.allowPrivateObjCSymbols = true })
		default:
			return nil, fmt.Errorf("unrecognized argument %q", tok)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no -p/--path arguments provided")
	}
	for _, c := range groups {
		if c.MaintainDirectories && c.Recurse == recurseNone {
			return nil, fmt.Errorf("%s: --maintain-directories requires -r/--recurse", c.Path)
		}
	}
	return groups, nil
}

func setAllow(c *pathOptions, g *globalDefaults, onPath func(*pathOptions), onGlobal func()) {
	if c != nil {
		onPath(c)
		return
	}
	onGlobal()
}

// splitInline splits a token like "--recurse=all" into its flag name
// and inline value. hasInline is false for a bare "--recurse" token.
func splitInline(tok string) (flag, value string, hasInline bool) {
	if i := strings.IndexByte(tok, '='); i >= 0 {
		return tok[:i], tok[i+1:], true
	}
	return tok, "", false
}

// consumeList reads tokens following a list-valued flag until the next
// "-"-prefixed token or end of argv, matching parse_architectures_list
// in the original tool.
func consumeList(argv []string, i *int) ([]string, error) {
	var out []string
	for *i+1 < len(argv) && !strings.HasPrefix(argv[*i+1], "-") {
		*i++
		out = append(out, argv[*i])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: expected at least one value", argv[*i])
	}
	return out, nil
}

func (o *pathOptions) parseOptions() macho.Options {
	opts := macho.Options{
		AllowPrivateNormalSymbols:   o.AllowPrivateNormalSymbols,
		AllowPrivateExternalSymbols: o.AllowPrivateExternalSymbols,
		AllowPrivateObjCSymbols:     o.AllowPrivateObjCSymbols,
		PlatformOverride:            o.Platform,
	}
	return opts
}
