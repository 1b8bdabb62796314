package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapFetcher serves scripted transcripts/errors per language and counts
// upstream calls. Languages with no entry fail like a missing caption track.
type mapFetcher struct {
	mu          sync.Mutex
	calls       map[string]int
	transcripts map[string]string
	errs        map[string]error
}

func newMapFetcher() *mapFetcher {
	return &mapFetcher{
		calls:       map[string]int{},
		transcripts: map[string]string{},
		errs:        map[string]error{},
	}
}

func (f *mapFetcher) FetchCaptions(_ context.Context, _, lang string) ([]CaptionSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[lang]++
	if err, ok := f.errs[lang]; ok {
		return nil, err
	}
	if text, ok := f.transcripts[lang]; ok {
		return []CaptionSegment{{Text: text}}, nil
	}
	return nil, fmt.Errorf("no transcript found for language %q", lang)
}

func (f *mapFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func setupResolveTest(t *testing.T, f *mapFetcher) {
	t.Helper()
	Init(Config{
		Fetcher:          f,
		RetryInitialWait: time.Millisecond,
		AutoLanguages:    []string{"en", "es", "fr"},
	})
	InitCache("", time.Minute, time.Minute, 100, 5*time.Minute)
}

func TestResolveExactLanguage(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["tr"] = "merhaba dünya"
	setupResolveTest(t, f)

	res, err := ResolveTranscript(context.Background(), canonical, "tr")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", res.VideoID)
	assert.Equal(t, "tr", res.Language)
	assert.Equal(t, "merhaba dünya", res.Text)
	assert.Empty(t, res.Note)
	assert.False(t, res.Cached)
}

func TestResolveSecondRequestServedFromCache(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["en"] = "hello"
	setupResolveTest(t, f)

	ctx := context.Background()
	first, err := ResolveTranscript(ctx, canonical, "en")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := ResolveTranscript(ctx, canonical, "en")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, f.totalCalls(), "cached request must not call upstream")
}

func TestResolveEnglishFallback(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["en"] = "english text"
	setupResolveTest(t, f)

	res, err := ResolveTranscript(context.Background(), canonical, "tr")
	require.NoError(t, err)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, "english text", res.Text)
	assert.Contains(t, res.Note, `"tr" transcript not available`)
	assert.Contains(t, res.Note, "English instead")
}

func TestResolveEnglishFallbackBothFail(t *testing.T) {
	f := newMapFetcher() // no languages available at all
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "tr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"tr"`)
	assert.Contains(t, err.Error(), "English fallback also failed")

	// The original failure is cached under the original language.
	_, cachedErr, ok := CacheGetTranscript(context.Background(), "dQw4w9WgXcQ", "tr")
	require.True(t, ok)
	assert.Contains(t, cachedErr, "no transcript found")
}

func TestResolveNoFallbackForEnglishRequest(t *testing.T) {
	f := newMapFetcher()
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "en")
	require.Error(t, err)
	assert.Equal(t, KindVideoUnavailable, KindOf(err))
	assert.Equal(t, 1, f.totalCalls(), "no fallback when English was the request")
}

func TestResolveNonLanguageFailureSkipsFallback(t *testing.T) {
	f := newMapFetcher()
	f.errs["tr"] = errors.New("captions unavailable: This video is private")
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "tr")
	require.Error(t, err)
	assert.Equal(t, KindInvalidVideo, KindOf(err))
	assert.Equal(t, 1, f.totalCalls(), "video-level failure must not trigger fallback")
}

func TestResolveCachedErrorReRaised(t *testing.T) {
	f := newMapFetcher()
	f.errs["en"] = errors.New("captions unavailable: Video unavailable")
	setupResolveTest(t, f)

	ctx := context.Background()
	_, err := ResolveTranscript(ctx, canonical, "en")
	require.Error(t, err)

	_, err = ResolveTranscript(ctx, canonical, "en")
	require.Error(t, err)
	assert.Equal(t, KindInvalidVideo, KindOf(err))
	assert.Equal(t, 1, f.totalCalls(), "cached error must not trigger a refetch")
}

func TestResolveCachedLanguageErrorSkipsFallback(t *testing.T) {
	f := newMapFetcher() // no languages available at all
	setupResolveTest(t, f)

	ctx := context.Background()
	_, err := ResolveTranscript(ctx, canonical, "tr")
	require.Error(t, err)
	require.Equal(t, 2, f.totalCalls(), "first request tries tr then the English fallback")

	// Within the error TTL the recorded failure is terminal; a repeat request
	// must not retry English upstream.
	_, err = ResolveTranscript(ctx, canonical, "tr")
	require.Error(t, err)
	assert.Equal(t, KindVideoUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "no transcript found")
	assert.Equal(t, 2, f.totalCalls(), "cached error must not trigger any upstream call")
}

func TestResolveAutoDetect(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["es"] = "hola mundo"
	setupResolveTest(t, f)

	res, err := ResolveTranscript(context.Background(), canonical, "auto")
	require.NoError(t, err)
	assert.Equal(t, "es", res.Language)
	assert.Equal(t, "hola mundo", res.Text)
	assert.Equal(t, "auto-detected language: es", res.Note)
	assert.Equal(t, 2, f.totalCalls(), "expected exactly en (miss) + es (hit)")
}

func TestResolveAutoDefaultsWhenLanguageEmpty(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["en"] = "hello"
	setupResolveTest(t, f)

	res, err := ResolveTranscript(context.Background(), canonical, "")
	require.NoError(t, err)
	assert.Equal(t, "auto-detected language: en", res.Note)
}

func TestResolveAutoStopsOnVideoLevelFailure(t *testing.T) {
	f := newMapFetcher()
	f.errs["en"] = errors.New("captions unavailable: Video unavailable")
	f.transcripts["es"] = "hola"
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "auto")
	require.Error(t, err)
	assert.Equal(t, KindInvalidVideo, KindOf(err))
	assert.Equal(t, 1, f.totalCalls(), "scan must stop at a video-level failure")
}

func TestResolveAutoExhausted(t *testing.T) {
	f := newMapFetcher()
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "auto")
	require.Error(t, err)
	assert.Equal(t, KindNoLanguage, KindOf(err))
	for _, lang := range []string{"en", "es", "fr"} {
		assert.Contains(t, err.Error(), lang+":")
	}
}

func TestResolveAutoNeverCachesUnderSentinel(t *testing.T) {
	f := newMapFetcher()
	f.transcripts["es"] = "hola"
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), canonical, "auto")
	require.NoError(t, err)

	if _, _, ok := CacheGetTranscript(context.Background(), "dQw4w9WgXcQ", AutoLanguage); ok {
		t.Error("entry cached under the auto sentinel")
	}
	text, _, ok := CacheGetTranscript(context.Background(), "dQw4w9WgXcQ", "es")
	require.True(t, ok, "success must be cached under the concrete language")
	assert.Equal(t, "hola", text)
}

func TestResolveRejectsBadURLs(t *testing.T) {
	f := newMapFetcher()
	setupResolveTest(t, f)

	_, err := ResolveTranscript(context.Background(), "https://vimeo.com/12345", "en")
	require.Error(t, err)
	assert.Equal(t, KindInvalidURL, KindOf(err))

	_, err = ResolveTranscript(context.Background(), "https://www.youtube.com/playlist?list=PL1", "en")
	require.Error(t, err)
	assert.Equal(t, KindVideoNotFound, KindOf(err))

	assert.Equal(t, 0, f.totalCalls())
}
