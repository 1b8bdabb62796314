package engine

import (
	"net/url"
	"strings"
)

// URL resolver: turns an arbitrary YouTube URL into a canonical video ID.
// Pure string/URL parsing, no network access.

// youtubeHosts is the hostname allow-list. Covers the bare and www-prefixed
// main domain, the mobile subdomain, the short-link domain, and the
// country-code variants YouTube still serves redirects from.
var youtubeHosts = map[string]bool{
	"youtube.com":        true,
	"www.youtube.com":    true,
	"m.youtube.com":      true,
	"youtu.be":           true,
	"www.youtu.be":       true,
	"youtube.co.uk":      true,
	"www.youtube.co.uk":  true,
	"youtube.de":         true,
	"www.youtube.de":     true,
	"youtube.fr":         true,
	"www.youtube.fr":     true,
	"youtube.es":         true,
	"www.youtube.es":     true,
	"youtube.it":         true,
	"www.youtube.it":     true,
	"youtube.nl":         true,
	"www.youtube.nl":     true,
	"youtube.pl":         true,
	"www.youtube.pl":     true,
	"youtube.com.br":     true,
	"www.youtube.com.br": true,
	"youtube.co.jp":      true,
	"www.youtube.co.jp":  true,
	"youtube.co.in":      true,
	"www.youtube.co.in":  true,
	"youtube.ru":         true,
	"www.youtube.ru":     true,
}

// ExtractVideoID parses rawURL and returns the canonical video identifier.
// Returns "", false when the host is not a known YouTube domain or no path
// rule matches. The ID is returned exactly as it appears in the URL and is
// never mutated afterwards.
func ExtractVideoID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !youtubeHosts[host] {
		return "", false
	}

	segments := splitPath(u.Path)

	// youtu.be/<id>
	if host == "youtu.be" || host == "www.youtu.be" {
		if len(segments) >= 1 {
			return segments[0], true
		}
		return "", false
	}

	// /watch?v=<id> — first value wins if the parameter repeats.
	if len(segments) >= 1 && segments[0] == "watch" {
		if v := u.Query().Get("v"); v != "" {
			return v, true
		}
		return "", false
	}

	// /live/<id>, /embed/<id>, /shorts/<id>
	if len(segments) >= 2 {
		switch segments[0] {
		case "live", "embed", "shorts":
			return segments[1], true
		}
	}

	// Root path with ?v=<id>.
	if len(segments) == 0 {
		if v := u.Query().Get("v"); v != "" {
			return v, true
		}
	}

	return "", false
}

// IsValidURL reports whether a video identifier can be extracted from rawURL.
func IsValidURL(rawURL string) bool {
	_, ok := ExtractVideoID(rawURL)
	return ok
}

// NormalizeURL rewrites any recognized YouTube URL to the canonical
// https://www.youtube.com/watch?v=<id> form. Unrecognized input is a hard
// InvalidURL error rather than being passed through unchanged.
func NormalizeURL(rawURL string) (string, error) {
	id, ok := ExtractVideoID(rawURL)
	if !ok {
		return "", Errorf(KindInvalidURL, "not a recognized YouTube video URL: %s", rawURL)
	}
	return "https://www.youtube.com/watch?v=" + id, nil
}

// isYouTubeHost reports whether rawURL points at a known YouTube domain,
// regardless of whether a video ID is extractable. Used to tell "not a YouTube
// URL" apart from "YouTube URL without a video ID".
func isYouTubeHost(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// splitPath returns the non-empty segments of a URL path.
func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
