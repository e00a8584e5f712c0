package preprocessing

import (
	"strings"
	"unicode"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// SanitizeName removes every rune that is not a letter, digit or underscore.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// SanitizeNames sanitizes every name. A name that sanitizes to the empty
// string, or two names that collide, is a schema error.
func SanitizeNames(names []string) ([]string, error) {
	out := make([]string, len(names))
	seen := make(map[string]string, len(names))
	for i, name := range names {
		clean := SanitizeName(name)
		if clean == "" {
			return nil, errors.NewSchemaError(name, 0, "column name is empty after sanitization")
		}
		if prev, dup := seen[clean]; dup {
			return nil, errors.NewSchemaError(name, 0, "column name collides with '"+prev+"' after sanitization")
		}
		seen[clean] = name
		out[i] = clean
	}
	return out, nil
}
