package providers

import (
	"regexp"
	"strings"
)

// midPatterns are the known listing URL shapes, most specific first. The first
// pattern that matches decides the MID.
var midPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/entry/place/(\d+)`),
	regexp.MustCompile(`place\.naver\.com/[a-z]+/(\d+)`),
	regexp.MustCompile(`[?&](?:placeId|pinId|id)=(\d+)`),
	regexp.MustCompile(`/place/(\d+)`),
}

var urlInText = regexp.MustCompile(`https?://[^\s"'<>]+`)

// ExtractURL returns the first http(s) link embedded in free text, or the
// trimmed text itself when it contains no scheme.
func ExtractURL(text string) string {
	if m := urlInText.FindString(text); m != "" {
		return m
	}
	return strings.TrimSpace(text)
}

// MatchMID runs the local pattern list against text.
func MatchMID(text string) (string, bool) {
	for _, p := range midPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}
