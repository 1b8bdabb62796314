// Package transcriptserver registers the MCP tools exposed by the server:
// get_transcript, list_caption_languages, usage_stats.
package transcriptserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/testusercar/youtube-transcript-mcp/internal/engine"
	"github.com/testusercar/youtube-transcript-mcp/internal/engine/sources"
)

// fetcher serves the list_caption_languages tool; transcript resolution goes
// through the engine, which carries its own fetcher via Config.
var fetcher *sources.Fetcher

// GetTranscriptInput is the input for get_transcript.
type GetTranscriptInput struct {
	URL      string `json:"url" jsonschema:"YouTube video URL (watch, youtu.be, live, embed or shorts form)"`
	Language string `json:"language,omitempty" jsonschema:"Caption language code (e.g. en, tr). Default: auto — tries a priority list of languages, English first"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"Truncate the transcript to this many characters (0 = no limit)"`
}

// GetTranscriptOutput is the output for get_transcript.
type GetTranscriptOutput struct {
	VideoID   string `json:"video_id"`
	Language  string `json:"language"`
	Text      string `json:"text"`
	Note      string `json:"note,omitempty"`
	Cached    bool   `json:"cached"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ListLanguagesInput is the input for list_caption_languages.
type ListLanguagesInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL"`
}

// ListLanguagesOutput is the output for list_caption_languages.
type ListLanguagesOutput struct {
	VideoID string              `json:"video_id"`
	Tracks  []sources.TrackInfo `json:"tracks"`
}

// UsageStatsInput is the input for usage_stats.
type UsageStatsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max per-day rows to return (default 100)"`
}

// UsageStatsOutput is the output for usage_stats.
type UsageStatsOutput struct {
	Counters map[string]int64  `json:"counters"`
	Usage    []engine.UsageRow `json:"usage,omitempty"`
}

// RegisterTools registers all transcript tools on the given MCP server.
func RegisterTools(server *mcp.Server, f *sources.Fetcher) {
	fetcher = f
	registerGetTranscript(server)
	registerListLanguages(server)
	registerUsageStats(server)
}

func registerGetTranscript(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Fetch the caption transcript of a YouTube video as plain text. Accepts any YouTube URL form (watch?v=, youtu.be/, /live/, /embed/, /shorts/). language defaults to auto-detection across a priority list; a specific language falls back to English when that language has no captions.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input GetTranscriptInput) (*mcp.CallToolResult, GetTranscriptOutput, error) {
		if input.URL == "" {
			return nil, GetTranscriptOutput{}, fmt.Errorf("url is required")
		}

		reqID := uuid.NewString()[:8]
		slog.Info("get_transcript",
			slog.String("req", reqID),
			slog.String("url", input.URL),
			slog.String("language", input.Language))

		go engine.RecordUsage(context.Background(), "get_transcript")

		result, err := engine.ResolveTranscript(ctx, input.URL, input.Language)
		if err != nil {
			slog.Warn("get_transcript failed",
				slog.String("req", reqID),
				slog.String("kind", string(engine.KindOf(err))),
				slog.Any("error", err))
			return nil, GetTranscriptOutput{}, err
		}

		out := GetTranscriptOutput{
			VideoID:  result.VideoID,
			Language: result.Language,
			Text:     result.Text,
			Note:     result.Note,
			Cached:   result.Cached,
		}
		if input.MaxChars > 0 && len([]rune(out.Text)) > input.MaxChars {
			out.Text = engine.TruncateRunes(out.Text, input.MaxChars, "…")
			out.Truncated = true
		}
		return nil, out, nil
	})
}

func registerListLanguages(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_caption_languages",
		Description: "List the caption tracks available for a YouTube video: language code, display name, and whether the track is auto-generated.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ListLanguagesInput) (*mcp.CallToolResult, ListLanguagesOutput, error) {
		if input.URL == "" {
			return nil, ListLanguagesOutput{}, fmt.Errorf("url is required")
		}

		videoID, ok := engine.ExtractVideoID(input.URL)
		if !ok {
			return nil, ListLanguagesOutput{}, engine.Errorf(engine.KindInvalidURL, "not a recognized YouTube video URL: %s", input.URL)
		}

		engine.IncrLanguageListings()
		go engine.RecordUsage(context.Background(), "list_caption_languages")

		tracks, err := fetcher.ListTracks(ctx, videoID)
		if err != nil {
			return nil, ListLanguagesOutput{}, err
		}
		return nil, ListLanguagesOutput{VideoID: videoID, Tracks: tracks}, nil
	})
}

func registerUsageStats(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "usage_stats",
		Description: "Operational counters (requests, fetches, cache hits/misses) plus per-day tool usage. Counters are best-effort and reset on restart; per-day usage persists locally.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input UsageStatsInput) (*mcp.CallToolResult, UsageStatsOutput, error) {
		out := UsageStatsOutput{Counters: engine.GetMetrics()}

		usage, err := engine.UsageSnapshot(ctx, input.Limit)
		if err != nil {
			// Analytics being down is a degraded mode, not a failure.
			slog.Warn("usage_stats: snapshot unavailable", slog.Any("error", err))
		} else {
			out.Usage = usage
		}
		return nil, out, nil
	})
}
