package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

// whitespaceRun matches one or more consecutive whitespace characters.
var whitespaceRun = regexp.MustCompile(`\s+`)

// punctReplacer canonicalizes look-alike punctuation to one representative
// form: curly quotes to straight quotes, ellipsis variants to "...", dash
// variants to "-".
var punctReplacer = strings.NewReplacer(
	"“", `"`, // “
	"”", `"`, // ”
	"„", `"`, // „
	"‘", "'", // ‘
	"’", "'", // ’
	"…", "...", // …
	"⋯", "...", // ⋯
	"—", "-", // —
	"–", "-", // –
	"―", "-", // ―
	"−", "-", // −
)

// allowedPunct is the declared punctuation set that survives normalization.
// Everything else outside word characters and CJK scripts becomes a space.
var allowedPunct = map[rune]bool{
	'.': true, ',': true, '!': true, '?': true, ';': true, ':': true,
	'\'': true, '"': true, '(': true, ')': true, '[': true, ']': true,
	'-': true, '/': true, '%': true, '&': true, '+': true, '=': true,
	'。': true, '！': true, '？': true, '；': true, '：': true,
	'，': true, '、': true, '（': true, '）': true,
	'「': true, '」': true, '『': true, '』': true,
	'《': true, '》': true, '〈': true, '〉': true, '・': true,
}

// isCJK reports whether r belongs to a CJK script (Han ideographs plus the
// Japanese kana and Korean Hangul ranges).
func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// isWordRune reports whether r is a word character: any Unicode letter,
// digit, or underscore.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// isLatinOrDigit reports whether r is a non-CJK letter or a digit. Used for
// the CJK/Latin boundary spacing pass.
func isLatinOrDigit(r rune) bool {
	return (unicode.IsLetter(r) && !isCJK(r)) || unicode.IsDigit(r)
}

// Normalize cleans raw document text for chunking and embedding.
//
// Operations, in order:
//  1. Collapse whitespace runs to single spaces.
//  2. Canonicalize look-alike punctuation (quotes, ellipsis, dashes).
//  3. Replace characters outside the allowed alphabet with a space.
//  4. Insert a single space between adjacent CJK and Latin/digit runs so
//     tokens do not fuse during embedding ("深度learning" -> "深度 learning").
//  5. Final whitespace collapse and trim.
//
// Normalize is side-effect-free, deterministic, and idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := whitespaceRun.ReplaceAllString(text, " ")
	s = punctReplacer.Replace(s)
	s = dropDisallowed(s)
	s = spaceScriptBoundaries(s)
	s = whitespaceRun.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// dropDisallowed replaces every rune outside the allowed alphabet with a
// space. The allowed alphabet is word characters (including CJK, which are
// Unicode letters) and the declared punctuation set.
func dropDisallowed(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == ' ' || isWordRune(r) || allowedPunct[r]:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return b.String()
}

// spaceScriptBoundaries inserts a single space wherever a CJK rune directly
// touches a Latin letter or digit, in either direction.
func spaceScriptBoundaries(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	var prev rune
	for i, r := range s {
		if i > 0 &&
			((isCJK(prev) && isLatinOrDigit(r)) || (isLatinOrDigit(prev) && isCJK(r))) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}

	return b.String()
}
