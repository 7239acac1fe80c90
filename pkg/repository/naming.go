package repository

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// snakeCase converts a type name such as "BlogPost" to "blog_post".
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) && runes[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// camelCase converts an association name such as "blog_post" to "BlogPost".
func camelCase(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// targetFor guesses the target type of an association from its name.
func targetFor(name string) string {
	return camelCase(inflection.Singular(name))
}

func singular(name string) string {
	return inflection.Singular(name)
}
