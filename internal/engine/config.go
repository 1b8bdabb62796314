package engine

import (
	"context"
	"net/http"
	"time"
)

// CaptionFetcher is the upstream caption-fetch capability. Implementations
// return ordered segments for one (video, language) pair or fail with an error
// whose message text carries the classification signal (see errors.go).
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID, language string) ([]CaptionSegment, error)
}

// Config holds all engine configuration, injected from main.
type Config struct {
	Fetcher          CaptionFetcher // upstream capability; nil = engine unusable
	AutoLanguages    []string       // auto-detect candidate order, English first
	RetryInitialWait time.Duration  // base backoff delay between fetch attempts
	FetchTimeout     time.Duration
	CacheMaxEntries  int
	CacheCleanup     time.Duration
	HTTPClient       *http.Client
	BrowserClient    *BrowserClient // nil = watch-page scraping uses HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (sources).
// Always points to the current cfg value.
var Cfg = &cfg

// DefaultAutoLanguages is the fallback candidate order for auto-detect mode,
// used when AUTO_LANGUAGES is not configured. English first, then major
// languages by rough transcript availability.
var DefaultAutoLanguages = []string{"en", "es", "fr", "de", "pt", "it", "ru", "ja", "ko", "zh", "ar", "hi", "tr"}

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if len(c.AutoLanguages) == 0 {
		c.AutoLanguages = DefaultAutoLanguages
	}
	if c.RetryInitialWait <= 0 {
		c.RetryInitialWait = time.Second
	}
	cfg = c
}
