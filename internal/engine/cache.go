package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transcript cache: 2-tier, L1 in-memory + L2 Redis. L1 is fast but lost on
// restart; L2 survives restarts. Redis being absent is a degraded mode, not an
// error — every operation falls back to miss/no-op.
//
// Entries carry their own TTL, fixed at write time: successes live long so
// they are reused aggressively, errors live short so transient upstream
// failures self-heal without hammering YouTube. A stored error is tagged with
// a reserved prefix so it can never be read back as transcript text.
var transcriptCache *tieredCache

// cachedErrPrefix tags stored error values. Transcript text is sanitized and
// trimmed before caching, so a legitimate transcript never starts with it.
const cachedErrPrefix = "err:"

// Cache TTL classes, overridable from main.
var (
	CacheSuccessTTL = 7 * 24 * time.Hour
	CacheErrorTTL   = 5 * time.Minute
)

// Cache metrics — atomic counters for thread-safe access.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// tieredCache implements L1 (memory) + L2 (Redis) caching.
type tieredCache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the 2-tier cache. Call after Init().
// redisURL can be empty to disable L2.
func InitCache(redisURL string, successTTL, errorTTL time.Duration, maxEntries int, cleanupInterval time.Duration) {
	if successTTL > 0 {
		CacheSuccessTTL = successTTL
	}
	if errorTTL > 0 {
		CacheErrorTTL = errorTTL
	}

	c := &tieredCache{maxEntries: maxEntries, cleanupInterval: cleanupInterval}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	transcriptCache = c
	slog.Info("cache: initialized",
		slog.Duration("success_ttl", CacheSuccessTTL),
		slog.Duration("error_ttl", CacheErrorTTL),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", maxEntries))

	// Start L1 cleanup goroutine
	go c.cleanupLoop()
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("tr:%x", hash[:12]) // 24-char hex prefix
}

// transcriptKey is the cache key for one (video, language) pair. Callers must
// never pass the "auto" sentinel — entries are keyed by the concrete language
// that succeeded or failed.
func transcriptKey(videoID, language string) string {
	return CacheKey("transcript", videoID, language)
}

// CacheGetTranscript looks up the cached value for (videoID, language).
// Returns (text, "", true) for a cached transcript, ("", message, true) for a
// cached error, and ok=false on miss or when the cache is not initialized.
func CacheGetTranscript(ctx context.Context, videoID, language string) (text, cachedErr string, ok bool) {
	raw, ok := cacheGet(ctx, transcriptKey(videoID, language))
	if !ok {
		return "", "", false
	}
	if msg, isErr := strings.CutPrefix(raw, cachedErrPrefix); isErr {
		return "", msg, true
	}
	return raw, "", true
}

// CacheSetTranscript stores a successful transcript under the long TTL class.
func CacheSetTranscript(ctx context.Context, videoID, language, text string) {
	cacheSet(ctx, transcriptKey(videoID, language), text, CacheSuccessTTL)
}

// CacheSetError stores a failure message under the short TTL class, tagged so
// it is never mistaken for transcript text on read.
func CacheSetError(ctx context.Context, videoID, language, message string) {
	cacheSet(ctx, transcriptKey(videoID, language), cachedErrPrefix+message, CacheErrorTTL)
}

// cacheGet tries L1, then L2. On L2 hit, populates L1 with the remaining TTL.
func cacheGet(ctx context.Context, key string) (string, bool) {
	if transcriptCache == nil {
		cacheMisses.Add(1)
		return "", false
	}

	// L1 check
	if val, ok := transcriptCache.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			cacheHits.Add(1)
			return string(entry.data), true
		}
		transcriptCache.l1.Delete(key) // expired
	}

	// L2 check
	if transcriptCache.rdb != nil {
		val, err := transcriptCache.rdb.Get(ctx, key).Result()
		if err == nil {
			ttl, ttlErr := transcriptCache.rdb.TTL(ctx, key).Result()
			if ttlErr != nil || ttl <= 0 {
				ttl = CacheErrorTTL // conservative when the remaining TTL is unknown
			}
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cacheHits.Add(1)
			transcriptCache.l1.Store(key, &cacheEntry{
				data:      []byte(val),
				expiresAt: time.Now().Add(ttl),
			})
			return val, true
		}
		if err != redis.Nil {
			slog.Warn("cache: L2 get failed", slog.Any("error", err))
		}
	}

	cacheMisses.Add(1)
	return "", false
}

// cacheSet stores value in both L1 and L2 with the given TTL. The TTL is fixed
// at write; re-writing a key replaces the entry and its expiry wholesale.
func cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if transcriptCache == nil {
		slog.Warn("cache: not initialized, dropping write", slog.String("key", key))
		return
	}

	// Evict if needed before adding
	transcriptCache.evictIfNeeded()

	transcriptCache.l1.Store(key, &cacheEntry{
		data:      []byte(value),
		expiresAt: time.Now().Add(ttl),
	})

	if transcriptCache.rdb != nil {
		if err := transcriptCache.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
			slog.Warn("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then oldest entries if still over limit.
func (c *tieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	// Count entries
	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})

	if count < c.maxEntries {
		return
	}

	// Phase 1: remove expired
	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	if count < c.maxEntries {
		return
	}

	// Phase 2: remove entries closest to expiry until under limit
	var oldest struct {
		key any
		at  time.Time
	}
	for count >= c.maxEntries {
		oldest.key = nil
		oldest.at = now.Add(CacheSuccessTTL * 2) // far future
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok {
				if entry.expiresAt.Before(oldest.at) {
					oldest.key = key
					oldest.at = entry.expiresAt
				}
			}
			return true
		})
		if oldest.key == nil {
			break
		}
		c.l1.Delete(oldest.key)
		count--
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *tieredCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
