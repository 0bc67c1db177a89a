// Package htmlsanitize turns untrusted markup from the processing backend
// (error pages, proxy responses) into text that is safe to show a user.
package htmlsanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips every tag, unescapes entities and collapses whitespace
// runs to single spaces.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	// Block-level closers become line breaks so paragraphs stay apart.
	for _, tag := range []string{"</p>", "</div>", "<br>", "<br/>", "<br />", "</h1>", "</h2>", "</h3>", "</li>"} {
		s = strings.ReplaceAll(s, tag, tag+"\n")
	}
	out := html.UnescapeString(strict.Sanitize(s))

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Excerpt returns PlainText(s) cut to at most max runes, marking a cut with "…".
func Excerpt(s string, max int) string {
	text := PlainText(s)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:max])) + "…"
}
