// Package slug turns product names into URL path segments.
package slug

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Latin letters with diacritics that commonly appear in catalog names.
var fold = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"ç", "c", "č", "c",
	"è", "e", "é", "e", "ê", "e", "ë", "e",
	"ğ", "g",
	"ì", "i", "í", "i", "î", "i", "ï", "i", "ı", "i",
	"ñ", "n",
	"ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
	"ş", "s", "š", "s", "ß", "ss",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ý", "y", "ÿ", "y",
	"ž", "z",
)

// Generate lowercases name, folds accented letters to ASCII and joins the
// remaining alphanumeric runs with single hyphens.
//
//	"Crème Brûlée Mug" -> "creme-brulee-mug"
func Generate(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Unique appends the first eight hex digits of id so two products with the
// same name never share a slug. An empty base yields just the suffix.
func Unique(name string, id uuid.UUID) string {
	suffix := strings.ReplaceAll(id.String(), "-", "")[:8]
	base := Generate(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
