package scraper

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// headRe spans from the first opening <head> tag, attributes
	// allowed, to the last </head>. A missing head region means the
	// document gets the URL-path fallback instead of whatever
	// <title>-looking tag sits in the body.
	headRe = regexp.MustCompile(`(?is)<head(\s[^>]*)?>.*</head>`)

	// titleRe is non-greedy so the first title element wins.
	titleRe = regexp.MustCompile(`(?is)<title(\s[^>]*)?>(.*?)</title>`)
)

// Title extracts a human-readable title from raw HTML.
//
// The search is limited to the <head> region; when no head or no title
// element exists, the last path segment of sourceURL is used instead.
// The captured text is entity-unescaped, trimmed and normalized to
// Unicode NFKD so visually equivalent titles compare equal.
func Title(body []byte, sourceURL string) string {
	content := strings.ToValidUTF8(string(body), string(utf8.RuneError))

	head := headRe.FindString(content)
	if head == "" {
		return fallbackTitle(sourceURL)
	}

	m := titleRe.FindStringSubmatch(head)
	if m == nil {
		return fallbackTitle(sourceURL)
	}

	return norm.NFKD.String(strings.TrimSpace(html.UnescapeString(m[2])))
}

// fallbackTitle returns the last non-empty path segment of the URL,
// or "" when the path is empty. Direct links to files end up titled
// with the filename.
func fallbackTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	p := strings.Trim(u.Path, "/")
	if p == "" {
		return ""
	}

	segments := strings.Split(p, "/")

	return segments[len(segments)-1]
}
