// Package strcase converts Go identifiers between naming conventions,
// mirroring the struct field names produced by reflectx-based mappers
// and by journald's field-name conventions.
package strcase

import "strings"

// Snake converts a (typically camelCase or PascalCase) identifier to snake_case.
func Snake(s string) string {
	return delimit(s, '_', false)
}

// ScreamingSnake converts a (typically camelCase or PascalCase) identifier
// to SCREAMING_SNAKE_CASE.
func ScreamingSnake(s string) string {
	return delimit(s, '_', true)
}

func delimit(s string, sep rune, upper bool) string {
	var b strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevLower || (nextLower && runes[i-1] != sep) {
					b.WriteRune(sep)
				}
			}
			if upper {
				b.WriteRune(r)
			} else {
				b.WriteRune(r - 'A' + 'a')
			}
			continue
		}

		if upper && r >= 'a' && r <= 'z' {
			b.WriteRune(r - 'a' + 'A')
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}
