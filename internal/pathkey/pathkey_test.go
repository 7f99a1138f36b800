// Path descriptor parsing tests, including Unicode segments.
package pathkey

import (
	"errors"
	"testing"
)

// TestParseValidPath covers the canonical five-segment descriptor.
func TestParseValidPath(t *testing.T) {
	r := NewResolver(nil)
	k, err := r.Parse("fttx/Москва/Ленина/5/12")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Key{Category: "fttx", Locality: "Москва", Street: "Ленина", Building: "5", Unit: "12"}
	if k != want {
		t.Fatalf("got %+v, want %+v", k, want)
	}
	if k.Dir() != "fttx/Москва/Ленина/5/12" {
		t.Fatalf("Dir() = %q", k.Dir())
	}
}

// TestParseReplacesSpaces checks free-text segments become single names.
func TestParseReplacesSpaces(t *testing.T) {
	r := NewResolver(nil)
	k, err := r.Parse("to/Moscow/Lenina/5/basement and attic")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if k.Unit != "basement_and_attic" {
		t.Fatalf("Unit = %q", k.Unit)
	}
}

// TestParseIsDeterministic re-parses the same raw input.
func TestParseIsDeterministic(t *testing.T) {
	r := NewResolver(nil)
	a, err := r.Parse("fttx/City/Main st/7/2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := r.Parse("fttx/City/Main st/7/2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a != b || a.Dir() != b.Dir() {
		t.Fatalf("parse not deterministic: %+v vs %+v", a, b)
	}
}

// TestParseFailures exercises each validation error.
func TestParseFailures(t *testing.T) {
	r := NewResolver(nil)
	cases := []struct {
		raw  string
		want error
	}{
		{"", ErrMissingArguments},
		{"fttx/Moscow/Lenina", ErrMalformedPath},
		{"fttx/Moscow/Lenina/5/12/extra", ErrMalformedPath},
		{"xyz/A/B/1/2", ErrUnknownCategory},
		{"fttx/../etc/5/12", ErrIllegalCharacter},
		{`fttx/Mos*cow/Lenina/5/12`, ErrIllegalCharacter},
		{`fttx/Moscow/Le|nina/5/12`, ErrIllegalCharacter},
		{"fttx//Lenina/5/12", ErrIllegalCharacter},
	}
	for _, tc := range cases {
		if _, err := r.Parse(tc.raw); !errors.Is(err, tc.want) {
			t.Fatalf("Parse(%q) = %v, want %v", tc.raw, err, tc.want)
		}
	}
}

// TestCustomCategories verifies the allow-list is configurable.
func TestCustomCategories(t *testing.T) {
	r := NewResolver([]string{"gpon"})
	if _, err := r.Parse("gpon/A/B/1/2"); err != nil {
		t.Fatalf("Parse(gpon): %v", err)
	}
	if _, err := r.Parse("fttx/A/B/1/2"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("want ErrUnknownCategory, got %v", err)
	}
}
