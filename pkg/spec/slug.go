package spec

import (
	"strings"
	"unicode"
)

// Slugify normalizes a human-entered name into its canonical slug form:
// lowercase, trimmed, with runs of whitespace and punctuation collapsed
// into single underscores. Slugify is idempotent: applying it to an
// already-normalized slug returns the slug unchanged.
func Slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// CanonicalID builds the stable "<kind>:<slug>" identifier.
func CanonicalID(kind Kind, slug string) string {
	return string(kind) + ":" + slug
}

// ParseID splits an identifier of the form "<kind>:<slug>". It returns
// ok=false when the input is not in canonical form, i.e. the kind is not
// recognised or the slug part is not already normalized.
func ParseID(id string) (Kind, string, bool) {
	kindPart, slug, found := strings.Cut(id, ":")
	if !found {
		return "", "", false
	}
	kind := Kind(kindPart)
	if !kind.Valid() {
		return "", "", false
	}
	if slug == "" || Slugify(slug) != slug {
		return "", "", false
	}
	return kind, slug, true
}
