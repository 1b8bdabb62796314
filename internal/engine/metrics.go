package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine. These are in-process
// and best-effort: concurrent increments race benignly and the numbers reset
// on restart. Durable per-day usage lives in analytics.go.
var metrics struct {
	TranscriptRequests atomic.Int64
	FetchAttempts      atomic.Int64
	FetchErrors        atomic.Int64
	EnglishFallbacks   atomic.Int64
	AutoDetectScans    atomic.Int64
	LanguageListings   atomic.Int64
	ArchiveHits        atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"fetch_attempts":      metrics.FetchAttempts.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"english_fallbacks":   metrics.EnglishFallbacks.Load(),
		"auto_detect_scans":   metrics.AutoDetectScans.Load(),
		"language_listings":   metrics.LanguageListings.Load(),
		"archive_hits":        metrics.ArchiveHits.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"transcript_requests",
		"fetch_attempts", "fetch_errors",
		"english_fallbacks", "auto_detect_scans",
		"language_listings", "archive_hits",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrFetchAttempts()      { metrics.FetchAttempts.Add(1) }
func IncrFetchErrors()        { metrics.FetchErrors.Add(1) }
func IncrEnglishFallbacks()   { metrics.EnglishFallbacks.Add(1) }
func IncrAutoDetectScans()    { metrics.AutoDetectScans.Add(1) }
func IncrLanguageListings()   { metrics.LanguageListings.Add(1) }
func IncrArchiveHits()        { metrics.ArchiveHits.Add(1) }
