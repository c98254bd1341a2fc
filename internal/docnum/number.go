// Package docnum parses, formats, and compares document control numbers.
package docnum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// Categories maps the known document type letters to their descriptions.
var Categories = map[string]string{
	"A": "Acquisitions",
	"C": "Contractual or procurement",
	"D": "Drawings",
	"E": "Engineering documents",
	"F": "Forms and Templates",
	"G": "Presentations",
	"L": "Letters and Memos",
	"M": "Management or Policy",
	"P": "Publications",
	"Q": "Quality Assurance documents",
	"R": "Operations Change Requests",
	"S": "Serial numbers",
	"T": "Technical notes",
	"X": "Safety Incident Reports",
}

// hostPrefix is stripped from the front of full number strings if present.
const hostPrefix = "LIGO-"

// Number identifies a document revision: a category letter, a numeric
// designator (kept as a digit string to preserve leading zeros), and an
// optional version. A nil Version means "no specific version": depending on
// context it resolves to the latest archived or latest remote revision.
type Number struct {
	Category string `yaml:"category" json:"category"`
	Numeric  string `yaml:"numeric" json:"numeric"`
	Version  *int   `yaml:"version,omitempty" json:"version,omitempty"`
}

// IsCategory reports whether letter is a known document type designator.
func IsCategory(letter string) bool {
	_, ok := Categories[letter]
	return ok
}

// New builds a Number from its parts. version may be nil.
func New(category, numeric string, version *int) (Number, error) {
	n := Number{Category: category, Numeric: numeric, Version: version}
	if err := n.validate(); err != nil {
		return Number{}, err
	}
	return n, nil
}

// Parse parses a full document number string such as "T0123456",
// "P1500227-v3", "E1300945-x0", or any of these with a leading "LIGO-".
func Parse(text string) (Number, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, hostPrefix)

	if len(s) < 2 {
		return Number{}, fmt.Errorf("%w: %q too short", apperr.ErrMalformedNumber, text)
	}

	category := s[:1]
	rest := s[1:]

	var version *int
	if i := strings.Index(rest, "-"); i >= 0 {
		suffix := rest[i+1:]
		rest = rest[:i]

		v, err := parseVersionSuffix(suffix)
		if err != nil {
			return Number{}, fmt.Errorf("%w: %q has invalid version suffix %q", apperr.ErrMalformedNumber, text, suffix)
		}
		version = &v
	}

	n := Number{Category: category, Numeric: rest, Version: version}
	if err := n.validate(); err != nil {
		return Number{}, err
	}
	return n, nil
}

// parseVersionSuffix parses the part after the hyphen: "v3" or "x0".
func parseVersionSuffix(suffix string) (int, error) {
	if suffix == "x0" {
		return 0, nil
	}
	if len(suffix) < 2 || suffix[0] != 'v' {
		return 0, fmt.Errorf("bad suffix %q", suffix)
	}
	v, err := strconv.Atoi(suffix[1:])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad suffix %q", suffix)
	}
	return v, nil
}

func (n Number) validate() error {
	if !IsCategory(n.Category) {
		return fmt.Errorf("%w: unknown category %q", apperr.ErrMalformedNumber, n.Category)
	}
	if n.Numeric == "" {
		return fmt.Errorf("%w: empty numeric part", apperr.ErrMalformedNumber)
	}
	nonZero := false
	for _, r := range n.Numeric {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: numeric part %q is not a number", apperr.ErrMalformedNumber, n.Numeric)
		}
		if r != '0' {
			nonZero = true
		}
	}
	if !nonZero {
		return fmt.Errorf("%w: numeric part %q must be positive", apperr.ErrMalformedNumber, n.Numeric)
	}
	if n.Version != nil && *n.Version < 0 {
		return fmt.Errorf("%w: negative version %d", apperr.ErrMalformedNumber, *n.Version)
	}
	return nil
}

// HasVersion reports whether the number carries an explicit version.
func (n Number) HasVersion() bool {
	return n.Version != nil
}

// VersionSuffix returns the canonical suffix for the version: "" when no
// version is set, "-x0" for version zero, "-vN" otherwise.
func (n Number) VersionSuffix() string {
	switch {
	case n.Version == nil:
		return ""
	case *n.Version == 0:
		return "-x0"
	default:
		return fmt.Sprintf("-v%d", *n.Version)
	}
}

// Format renders the number, optionally with its version suffix.
func (n Number) Format(withVersion bool) string {
	if withVersion {
		return n.Category + n.Numeric + n.VersionSuffix()
	}
	return n.Category + n.Numeric
}

// String renders the canonical (versioned) form. Parse(n.String()) round-trips.
func (n Number) String() string {
	return n.Format(true)
}

// Key returns the unversioned identity string used for traversal
// deduplication and as the document directory name.
func (n Number) Key() string {
	return n.Format(false)
}

// Equal reports full identity: category, numeric, and version must all match
// (both absent counts as a match).
func (n Number) Equal(other Number) bool {
	if !n.SameDocument(other) {
		return false
	}
	if (n.Version == nil) != (other.Version == nil) {
		return false
	}
	return n.Version == nil || *n.Version == *other.Version
}

// SameDocument reports whether two numbers refer to the same document
// family, ignoring version.
func (n Number) SameDocument(other Number) bool {
	return n.Category == other.Category && n.Numeric == other.Numeric
}

// WithVersion returns a copy of the number carrying the given version.
func (n Number) WithVersion(version int) Number {
	v := version
	n.Version = &v
	return n
}

// WithoutVersion returns a copy of the number with the version removed.
func (n Number) WithoutVersion() Number {
	n.Version = nil
	return n
}

// Compare orders numbers by category, then numeric value, then version.
// An absent version sorts after every concrete version: "no version" means
// "latest" wherever ordering matters.
func Compare(a, b Number) int {
	if c := strings.Compare(a.Category, b.Category); c != 0 {
		return c
	}
	if c := compareNumeric(a.Numeric, b.Numeric); c != 0 {
		return c
	}
	switch {
	case a.Version == nil && b.Version == nil:
		return 0
	case a.Version == nil:
		return 1
	case b.Version == nil:
		return -1
	case *a.Version < *b.Version:
		return -1
	case *a.Version > *b.Version:
		return 1
	}
	return 0
}

// compareNumeric compares two digit strings by value. Leading zeros are
// insignificant for ordering but preserved for formatting.
func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	return strings.Compare(ta, tb)
}
