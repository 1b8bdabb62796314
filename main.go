// youtube-transcript-mcp — YouTube transcript MCP server.
//
// Exposes three MCP tools: get_transcript, list_caption_languages,
// usage_stats. Given a YouTube video URL, get_transcript returns the video's
// caption transcript as plain text, with a two-tier cache (memory + Redis),
// bounded-retry fetching against YouTube, language fallback/auto-detection,
// and best-effort usage analytics.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/testusercar/youtube-transcript-mcp/internal/engine"
	"github.com/testusercar/youtube-transcript-mcp/internal/engine/sources"
	"github.com/testusercar/youtube-transcript-mcp/internal/transcriptserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8892")
)

func main() {
	fetcher := initEngine()

	slog.Info("starting youtube-transcript-mcp",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "youtube-transcript-mcp",
		Version: version,
	}, nil)

	transcriptserver.RegisterTools(server, fetcher)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "youtube-transcript-mcp",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() *sources.Fetcher {
	fetcher := sources.NewFetcher()

	c := engine.Config{
		Fetcher:          fetcher,
		AutoLanguages:    env.List("AUTO_LANGUAGES", "en,es,fr,de,pt,it,ru,ja,ko,zh,ar,hi,tr"),
		RetryInitialWait: env.Duration("RETRY_INITIAL_WAIT", time.Second),
		FetchTimeout:     env.Duration("FETCH_TIMEOUT", 15*time.Second),
		CacheMaxEntries:  env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanup:     env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	if env.Str("DISABLE_BROWSER_CLIENT", "") == "" {
		bc, err := engine.NewBrowserClient()
		if err != nil {
			slog.Warn("browser client init failed, scraping with plain HTTP", slog.Any("error", err))
		} else {
			c.BrowserClient = bc
			slog.Info("browser client initialized")
		}
	}

	engine.Init(c)

	sources.SetUpstreamRate(env.Float("UPSTREAM_RPS", 2), env.Int("UPSTREAM_BURST", 4))

	engine.InitCache(
		env.Str("REDIS_URL", ""),
		env.Duration("CACHE_SUCCESS_TTL", 7*24*time.Hour),
		env.Duration("CACHE_ERROR_TTL", 5*time.Minute),
		c.CacheMaxEntries,
		c.CacheCleanup,
	)

	engine.InitAnalytics(env.Str("ANALYTICS_DB_PATH", ""))

	// Transcript archive (PostgreSQL, optional)
	if dbURL := env.Str("DATABASE_URL", ""); dbURL != "" {
		archive, err := engine.ConnectArchive(context.Background(), dbURL)
		if err != nil {
			slog.Warn("archive init failed, running without archive", slog.Any("error", err))
		} else {
			engine.SetArchive(archive)
			slog.Info("archive initialized")
		}
	}

	return fetcher
}
