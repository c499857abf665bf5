// Package emit implements the Tbd Writer of spec.md §4.6: it
// serialises a stub.Model to one of the three tbd text dialects.
package emit

// Dialect selects which tbd document variant Write produces.
type Dialect int

const (
	DialectV1 Dialect = iota + 1
	DialectV2
	DialectV3
)

func (d Dialect) header() string {
	switch d {
	case DialectV1:
		return "--- !tapi-tbd-v1"
	case DialectV2:
		return "--- !tapi-tbd-v2"
	case DialectV3:
		return "--- !tapi-tbd-v3"
	default:
		return "--- !tapi-tbd-v1"
	}
}

func (d Dialect) hasUUIDs() bool        { return d >= DialectV2 }
func (d Dialect) hasFlags() bool        { return d >= DialectV2 }
func (d Dialect) hasAllowableClients() bool { return d >= DialectV2 }
func (d Dialect) hasObjCEHTypes() bool  { return d >= DialectV3 }

// String renders the dialect's CLI/--version spelling.
func (d Dialect) String() string {
	switch d {
	case DialectV1:
		return "v1"
	case DialectV2:
		return "v2"
	case DialectV3:
		return "v3"
	default:
		return "unknown"
	}
}

// DialectByName resolves the --version flag's spelling.
func DialectByName(name string) (Dialect, bool) {
	switch name {
	case "v1":
		return DialectV1, true
	case "v2":
		return DialectV2, true
	case "v3":
		return DialectV3, true
	default:
		return 0, false
	}
}
