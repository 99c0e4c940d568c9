package util

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText collapses whitespace (including NBSP) and normalises to NFC so the
// same title scraped twice compares equal.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(strings.TrimSpace(s))
}

// ResolveURL resolves href against base. Empty, javascript: or unparsable
// hrefs return "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || b.Scheme == "" {
		return h.String()
	}
	return b.ResolveReference(h).String()
}

// Plural formats a count the way job boards label departments ("1 Job", "4 Jobs").
func Plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
