package xmlfrag

import "regexp"

// Extract locates the first substring of content matching
// <tag ...>...</tag> with dot-matches-newline semantics and returns it
// literally. ok is false when no such fragment is present.
func Extract(content, tag string) (fragment string, ok bool) {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>.*?</` + regexp.QuoteMeta(tag) + `>`)
	match := re.FindString(content)
	if match == "" {
		return "", false
	}
	return match, true
}
