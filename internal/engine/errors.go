package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind partitions every failure the engine can surface into a closed taxonomy.
// The outer transport may map these to its own codes; the engine itself only
// guarantees a human-readable message per failure.
type Kind string

const (
	KindInvalidURL       Kind = "invalid_url"           // not recognized as a YouTube video URL
	KindVideoNotFound    Kind = "video_not_found"       // recognized host, no extractable video ID
	KindVideoUnavailable Kind = "video_unavailable"     // no captions / transcripts disabled
	KindInvalidVideo     Kind = "invalid_video"         // private, deleted or nonexistent video
	KindRateLimited      Kind = "rate_limited"          // upstream throttling
	KindNetwork          Kind = "network_error"         // transient transport failure, retries exhausted
	KindNoLanguage       Kind = "no_language_available" // auto-detect exhausted all candidates
	KindUnknown          Kind = "unknown"
)

// Error is a classified engine failure. Message is always suitable for showing
// to the caller as-is.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped upstream cause, may be nil
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind, keeping its message and cause.
func WrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// KindOf returns the taxonomy kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// classifyTable maps upstream error-message fragments onto taxonomy kinds.
// The upstream scraper only signals failure through message text, so this table
// is the de facto wire contract with it; keep it in one place and ordered —
// first matching row wins.
var classifyTable = []struct {
	fragments []string
	kind      Kind
}{
	{[]string{"too many requests", "429", "403", "rate limit"}, KindRateLimited},
	{[]string{"no transcript", "no captions", "no caption tracks", "captions disabled", "subtitles are disabled", "transcripts disabled"}, KindVideoUnavailable},
	{[]string{"unavailable", "private", "invalid video id", "video is not available", "removed", "login_required"}, KindInvalidVideo},
	{[]string{"timed out", "timeout", "network", "connection reset", "connection refused", "no such host", "broken pipe", "unexpected eof"}, KindNetwork},
}

// Classify maps an opaque upstream error onto the taxonomy by inspecting its
// message text. Already-classified *Error values keep their kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	msg := strings.ToLower(err.Error())
	for _, row := range classifyTable {
		for _, frag := range row.fragments {
			if strings.Contains(msg, frag) {
				return row.kind
			}
		}
	}
	return KindUnknown
}

// languageFragments mark failures that are specific to the requested caption
// track rather than the video as a whole. Such failures are worth an English
// fallback (exact mode) or the next candidate (auto mode).
var languageFragments = []string{
	"language",
	"subtitle",
	"caption",
	"transcript",
	"not available",
	"no transcript found",
}

// IsLanguageRelated reports whether err indicates a language/track-specific
// failure, as opposed to the video itself being broken.
func IsLanguageRelated(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindInvalidVideo, KindRateLimited, KindNetwork:
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range languageFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
