package docnum

import (
	"errors"
	"testing"

	"github.com/starford/othala/internal/apperr"
)

func intPtr(v int) *int { return &v }

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		category string
		numeric  string
		version  *int
	}{
		{"T0123456", "T", "0123456", nil},
		{"T0123456-v2", "T", "0123456", intPtr(2)},
		{"P1500227-v13", "P", "1500227", intPtr(13)},
		{"E1300945-x0", "E", "1300945", intPtr(0)},
		{"LIGO-T0123456-v2", "T", "0123456", intPtr(2)},
		{"  G1800123  ", "G", "1800123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if n.Category != tt.category || n.Numeric != tt.numeric {
				t.Errorf("Parse(%q) = %s%s, want %s%s", tt.in, n.Category, n.Numeric, tt.category, tt.numeric)
			}
			switch {
			case (n.Version == nil) != (tt.version == nil):
				t.Errorf("Parse(%q) version presence = %v, want %v", tt.in, n.Version, tt.version)
			case n.Version != nil && *n.Version != *tt.version:
				t.Errorf("Parse(%q) version = %d, want %d", tt.in, *n.Version, *tt.version)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"T",
		"Z0123456",    // unknown category
		"T01234a6",    // non-digit
		"T0000000",    // zero numeric
		"T0123456-w2", // bad suffix letter
		"T0123456-v",  // missing version digits
		"T0123456-x1", // x only names version zero
		"0123456",     // no category letter
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if !errors.Is(err, apperr.ErrMalformedNumber) {
				t.Errorf("Parse(%q) err = %v, want ErrMalformedNumber", in, err)
			}
		})
	}
}

func TestFormatRoundTrips(t *testing.T) {
	for _, in := range []string{"T0123456", "T0123456-v2", "E1300945-x0"} {
		n, err := Parse(in)
		if err != nil {
			t.Fatal(err)
		}
		if n.String() != in {
			t.Errorf("String() = %q, want %q", n.String(), in)
		}
		back, err := Parse(n.String())
		if err != nil || !back.Equal(n) {
			t.Errorf("round trip of %q failed: %v", in, err)
		}
	}
}

func TestFormatPreservesLeadingZeros(t *testing.T) {
	n, err := Parse("T0000123-v1")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Format(false); got != "T0000123" {
		t.Errorf("Format(false) = %q, want T0000123", got)
	}
	if got := n.Format(true); got != "T0000123-v1" {
		t.Errorf("Format(true) = %q, want T0000123-v1", got)
	}
}

func TestKeyIgnoresVersion(t *testing.T) {
	a, _ := Parse("T0123456-v2")
	b, _ := Parse("T0123456")
	if a.Key() != b.Key() {
		t.Errorf("Key mismatch: %q vs %q", a.Key(), b.Key())
	}
}

func TestEqualAndSameDocument(t *testing.T) {
	v2, _ := Parse("T0123456-v2")
	v3, _ := Parse("T0123456-v3")
	bare, _ := Parse("T0123456")
	other, _ := Parse("G0123456-v2")

	if !v2.SameDocument(v3) || !v2.SameDocument(bare) {
		t.Error("SameDocument should ignore version")
	}
	if v2.SameDocument(other) {
		t.Error("SameDocument should compare category")
	}
	if v2.Equal(v3) || v2.Equal(bare) {
		t.Error("Equal should compare versions")
	}
	if !v2.Equal(v2.WithoutVersion().WithVersion(2)) {
		t.Error("WithVersion/WithoutVersion should round trip")
	}
}

func TestCompare(t *testing.T) {
	parse := func(s string) Number {
		n, err := Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		return n
	}

	tests := []struct {
		a, b string
		want int
	}{
		{"T0000001-v1", "T0000001-v2", -1},
		{"T0000001-v2", "T0000001-v1", 1},
		{"T0000001-v1", "T0000001-v1", 0},
		{"G0000001-v1", "T0000001-v1", -1},
		{"T0000001-v1", "T0000002-v1", -1},
		// No version sorts after every concrete version: it means "latest".
		{"T0000001", "T0000001-v9", 1},
		{"T0000001-x0", "T0000001-v1", -1},
		// Leading zeros do not affect ordering.
		{"T0000010-v1", "T0000009-v1", 1},
	}
	for _, tt := range tests {
		if got := Compare(parse(tt.a), parse(tt.b)); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
