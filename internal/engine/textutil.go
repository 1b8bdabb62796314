package engine

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "TranscriptFetch/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// CaptionSegment is one timed unit of caption text as produced by the upstream
// source. Segments arrive ordered; timing is not carried — the engine only
// serves joined plain text.
type CaptionSegment struct {
	Text string
}

// JoinSegments concatenates non-empty segment texts with single spaces.
func JoinSegments(segments []CaptionSegment) string {
	var sb strings.Builder
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

var newlineRunsRe = regexp.MustCompile(`\n+`)

// Sanitize collapses every run of newlines to a single newline and trims
// leading/trailing whitespace. Applied to transcript text before caching or
// returning it.
func Sanitize(s string) string {
	return strings.TrimSpace(newlineRunsRe.ReplaceAllString(s, "\n"))
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// CleanHTML strips HTML tags and trims whitespace. Caption XML occasionally
// carries markup like <i> or <b> inside line text.
func CleanHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
