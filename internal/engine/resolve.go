package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AutoLanguage is the sentinel requesting auto-detection across the configured
// candidate list. Never used as a cache key.
const AutoLanguage = "auto"

// fallbackLanguage is tried when an exact-language request fails for
// language-related reasons.
const fallbackLanguage = "en"

// TranscriptResult is the outcome of a successful resolution.
type TranscriptResult struct {
	VideoID  string `json:"video_id"`
	Language string `json:"language"` // concrete language the text is in
	Text     string `json:"text"`
	Note     string `json:"note,omitempty"` // fallback / auto-detect annotation
	Cached   bool   `json:"cached"`
}

// ResolveTranscript is the outward contract of the engine: raw URL in,
// transcript text out, or a classified error. An empty language defaults to
// auto-detection.
func ResolveTranscript(ctx context.Context, rawURL, language string) (*TranscriptResult, error) {
	IncrTranscriptRequests()

	videoID, ok := ExtractVideoID(rawURL)
	if !ok {
		if isYouTubeHost(rawURL) {
			return nil, Errorf(KindVideoNotFound, "no video ID found in URL: %s", rawURL)
		}
		return nil, Errorf(KindInvalidURL, "not a recognized YouTube video URL: %s", rawURL)
	}

	lang := strings.TrimSpace(language)
	if lang == "" || lang == AutoLanguage {
		return resolveAuto(ctx, videoID)
	}
	return resolveExact(ctx, videoID, lang)
}

// attemptOutcome is the result of resolving one concrete language through the
// cache → archive → retry-fetch sequence.
type attemptOutcome struct {
	text      string
	fromCache bool // text served from cache or archive, no upstream call made
	err       error
	errCached bool // err re-raised from a cached entry; writing it back would reset its TTL
}

// attemptLanguage resolves (videoID, lang) for one concrete language.
// Write-through of successes happens here; error caching is left to the
// caller, which knows whether the failure is terminal for the request.
func attemptLanguage(ctx context.Context, videoID, lang string) attemptOutcome {
	if text, cachedErr, ok := CacheGetTranscript(ctx, videoID, lang); ok {
		if cachedErr != "" {
			return attemptOutcome{err: reclassify(cachedErr), errCached: true}
		}
		return attemptOutcome{text: text, fromCache: true}
	}

	if text, ok := archiveLookup(ctx, videoID, lang); ok {
		IncrArchiveHits()
		CacheSetTranscript(ctx, videoID, lang, text)
		return attemptOutcome{text: text, fromCache: true}
	}

	text, err := FetchWithRetry(ctx, videoID, lang)
	if err != nil {
		return attemptOutcome{err: err}
	}
	CacheSetTranscript(ctx, videoID, lang, text)
	archiveStore(ctx, videoID, lang, text)
	return attemptOutcome{text: text}
}

// resolveExact handles a request for one specific language, with an English
// fallback when the failure is language-related.
func resolveExact(ctx context.Context, videoID, lang string) (*TranscriptResult, error) {
	out := attemptLanguage(ctx, videoID, lang)
	if out.err == nil {
		return &TranscriptResult{VideoID: videoID, Language: lang, Text: out.text, Cached: out.fromCache}, nil
	}

	// A cached error is terminal: the failure was already recorded within its
	// TTL window, so re-raise it without another round of upstream calls.
	if out.errCached {
		return nil, ensureClassified(out.err)
	}

	if IsLanguageRelated(out.err) && lang != fallbackLanguage {
		IncrEnglishFallbacks()
		slog.Info("transcript: language unavailable, trying English",
			slog.String("video_id", videoID),
			slog.String("language", lang),
			slog.Any("error", out.err))

		en := attemptLanguage(ctx, videoID, fallbackLanguage)
		if en.err == nil {
			return &TranscriptResult{
				VideoID:  videoID,
				Language: fallbackLanguage,
				Text:     en.text,
				Cached:   en.fromCache,
				Note:     fmt.Sprintf("%q transcript not available; showing English instead", lang),
			}, nil
		}

		CacheSetError(ctx, videoID, lang, out.err.Error())
		return nil, &Error{
			Kind:    Classify(out.err),
			Message: fmt.Sprintf("no %q transcript (%s); English fallback also failed (%s)", lang, out.err, en.err),
			Err:     out.err,
		}
	}

	CacheSetError(ctx, videoID, lang, out.err.Error())
	return nil, ensureClassified(out.err)
}

// resolveAuto walks the configured candidate-language list, English first.
// Language-related failures move to the next candidate; anything else (the
// video itself being broken) stops the scan immediately.
func resolveAuto(ctx context.Context, videoID string) (*TranscriptResult, error) {
	IncrAutoDetectScans()

	type langFailure struct {
		lang   string
		reason string
	}
	var failures []langFailure

	for _, lang := range cfg.AutoLanguages {
		out := attemptLanguage(ctx, videoID, lang)
		if out.err == nil {
			return &TranscriptResult{
				VideoID:  videoID,
				Language: lang,
				Text:     out.text,
				Cached:   out.fromCache,
				Note:     "auto-detected language: " + lang,
			}, nil
		}

		if !out.errCached {
			CacheSetError(ctx, videoID, lang, out.err.Error())
		}

		if !IsLanguageRelated(out.err) {
			// Trying further languages cannot help.
			return nil, ensureClassified(out.err)
		}

		failures = append(failures, langFailure{lang: lang, reason: out.err.Error()})
	}

	var sb strings.Builder
	for i, f := range failures {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", f.lang, f.reason)
	}
	return nil, Errorf(KindNoLanguage, "no transcript found in any candidate language for %s (%s)", videoID, sb.String())
}

// reclassify rebuilds a classified error from a cached error message.
func reclassify(message string) *Error {
	return &Error{Kind: Classify(errors.New(message)), Message: message}
}

// ensureClassified guarantees callers above the engine always see a *Error.
func ensureClassified(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return WrapError(Classify(err), err)
}
