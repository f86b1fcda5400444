package pipeline

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultIdentifier is used when nothing usable can be derived from a target.
const DefaultIdentifier = "HomePage"

// Identifier derives the artifact class name for a target from its last
// non-empty path segment: "/forgot-password" becomes "ForgotPassword".
// A trailing slash falls back to the previous segment. Any rune that is not
// a letter or digit separates words.
func Identifier(target string) string {
	path := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(path, "/")
	var last string
	for i := len(segments) - 1; i >= 0 && i >= len(segments)-2; i-- {
		if segments[i] != "" {
			last = segments[i]
			break
		}
	}

	words := strings.FieldsFunc(last, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, word := range words {
		b.WriteString(capitalize(word))
	}
	if b.Len() == 0 {
		return DefaultIdentifier
	}
	id := b.String()
	if r, _ := utf8.DecodeRuneInString(id); unicode.IsDigit(r) {
		id = "Page" + id
	}
	return id
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(word string) string {
	if word == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
