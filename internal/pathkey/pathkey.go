// Package pathkey parses and validates hierarchical location descriptors.
// A descriptor names where uploaded photos belong:
// category/locality/street/building/unit.
package pathkey

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrMalformedPath    = errors.New("path must have exactly 5 segments: category/locality/street/building/unit")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrIllegalCharacter = errors.New("segment contains an illegal character")
	ErrMissingArguments = errors.New("no path given")
)

// forbidden are characters that may not appear in any segment. They are
// the characters unsafe in directory names on common filesystems.
const forbidden = `/\:*?"<>|`

// DefaultCategories is the built-in category allow-list.
var DefaultCategories = []string{"fttx", "to"}

// Key is a validated location identifier. Segments never contain
// forbidden characters, so joining them is filesystem-safe.
type Key struct {
	Category string
	Locality string
	Street   string
	Building string
	Unit     string
}

// Resolver validates raw descriptors against a category allow-list.
type Resolver struct {
	categories map[string]bool
}

// NewResolver builds a resolver. An empty list falls back to
// DefaultCategories.
func NewResolver(categories []string) *Resolver {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	m := make(map[string]bool, len(categories))
	for _, c := range categories {
		m[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &Resolver{categories: m}
}

// Categories lists the allow-list entries in sorted order.
func (r *Resolver) Categories() []string {
	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Parse splits a raw descriptor into a Key. Parsing is deterministic:
// the same input always yields the same Key and directory string.
func (r *Resolver) Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Key{}, ErrMissingArguments
	}
	parts := strings.Split(raw, "/")
	if len(parts) != 5 {
		return Key{}, ErrMalformedPath
	}
	for _, p := range parts {
		if err := checkSegment(p); err != nil {
			return Key{}, err
		}
	}
	k := Key{
		// Lowercased so FTTX/... and fttx/... share one directory.
		Category: strings.ToLower(normalize(parts[0])),
		Locality: normalize(parts[1]),
		Street:   normalize(parts[2]),
		Building: normalize(parts[3]),
		Unit:     normalize(parts[4]),
	}
	if !r.categories[k.Category] {
		return Key{}, ErrUnknownCategory
	}
	return k, nil
}

// Dir derives the storage directory for the key, relative to the photo
// root, with forward slashes regardless of platform.
func (k Key) Dir() string {
	return strings.Join([]string{k.Category, k.Locality, k.Street, k.Building, k.Unit}, "/")
}

func (k Key) String() string { return k.Dir() }

func checkSegment(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return ErrIllegalCharacter
	}
	if strings.ContainsAny(s, forbidden) {
		return ErrIllegalCharacter
	}
	return nil
}

// normalize trims whitespace and replaces interior spaces with
// underscores so free-text segments stay single directory names.
func normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}
