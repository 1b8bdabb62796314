package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/testusercar/youtube-transcript-mcp/internal/engine"
)

// Caption track discovery and fetching.
// Primary:  scrape watch page ytInitialPlayerResponse → caption track list (works from any IP)
// Fallback: ANDROID Innertube /player → captionTracks (works from non-blocked IPs)

// Fetcher implements engine.CaptionFetcher against YouTube.
type Fetcher struct{}

// NewFetcher returns the upstream YouTube caption fetcher.
func NewFetcher() *Fetcher { return &Fetcher{} }

// TrackInfo describes one available caption track.
type TrackInfo struct {
	LanguageCode  string `json:"language_code"`
	Name          string `json:"name"`
	AutoGenerated bool   `json:"auto_generated"`
}

// FetchCaptions fetches the ordered caption segments for one video in exactly
// the requested language. Missing tracks fail with a "no transcript found"
// message; the engine's fallback and auto-detect logic keys off that text.
func (f *Fetcher) FetchCaptions(ctx context.Context, videoID, language string) ([]engine.CaptionSegment, error) {
	tracks, err := f.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track, ok := pickTrack(tracks, language)
	if !ok {
		return nil, fmt.Errorf("no transcript found for language %q (available: %s)",
			language, availableCodes(tracks))
	}

	return fetchTimedText(ctx, track.BaseURL)
}

// ListTracks enumerates the caption tracks available for a video.
func (f *Fetcher) ListTracks(ctx context.Context, videoID string) ([]TrackInfo, error) {
	tracks, err := f.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	out := make([]TrackInfo, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, TrackInfo{
			LanguageCode:  t.LanguageCode,
			Name:          t.displayName(),
			AutoGenerated: t.Kind == "asr",
		})
	}
	return out, nil
}

// captionTracks discovers the track list, preferring the watch-page scrape and
// falling back to the ANDROID player endpoint.
func (f *Fetcher) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	tracks, err := tracksViaPageScrape(ctx, videoID)
	if err == nil {
		return tracks, nil
	}
	slog.Warn("youtube: page scrape failed, trying android player",
		slog.String("id", videoID), slog.Any("err", err))

	return tracksViaPlayer(ctx, videoID)
}

// pickTrack selects the track for the requested language: a manual track
// first, then an auto-generated ("asr") one, then a regional variant
// (e.g. "en" matching "en-US"). The language value is attempted as-is; there
// is no validation against a fixed set of codes.
func pickTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	for _, t := range tracks {
		if t.LanguageCode == language && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == language {
			return t, true
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, language+"-") {
			return t, true
		}
	}
	return captionTrack{}, false
}

func availableCodes(tracks []captionTrack) string {
	codes := make([]string, 0, len(tracks))
	for _, t := range tracks {
		codes = append(codes, t.LanguageCode)
	}
	return strings.Join(codes, ", ")
}

// tracksFromPlayerResp validates a player response and pulls out its tracks.
func tracksFromPlayerResp(resp innertubePlayerResp) ([]captionTrack, error) {
	if resp.Captions == nil {
		reason := ""
		if resp.PlayabilityStatus != nil {
			reason = resp.PlayabilityStatus.Reason
		}
		if reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", reason)
		}
		return nil, errors.New("no captions in player response")
	}
	tracks := resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	return tracks, nil
}

// tracksViaPlayer uses the ANDROID Innertube /player endpoint.
func tracksViaPlayer(ctx context.Context, videoID string) ([]captionTrack, error) {
	data, err := postPlayerAndroid(ctx, videoID)
	if err != nil {
		return nil, err
	}
	var playerResp innertubePlayerResp
	if err := json.Unmarshal(data, &playerResp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return tracksFromPlayerResp(playerResp)
}

// tracksViaPageScrape fetches the watch page HTML and extracts the caption
// track list from the embedded ytInitialPlayerResponse JSON.
func tracksViaPageScrape(ctx context.Context, videoID string) ([]captionTrack, error) {
	body, err := fetchWatchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	jsonData := playerResponseFromHTML(body)
	if jsonData == nil {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return tracksFromPlayerResp(playerResp)
}

// fetchWatchPage downloads the watch page, through the Chrome-fingerprint
// browser client when one is configured.
func fetchWatchPage(ctx context.Context, videoID string) ([]byte, error) {
	watchURL := ytWatchURL + videoID

	if err := waitUpstream(ctx); err != nil {
		return nil, err
	}

	if bc := engine.Cfg.BrowserClient; bc != nil {
		body, status, err := bc.Do(http.MethodGet, watchURL, engine.ChromeHeaders(), nil)
		if err != nil {
			return nil, fmt.Errorf("watch page: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("watch page: HTTP %d", status)
		}
		return body, nil
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}
	return body, nil
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON
// inside one of the watch page's <script> elements.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// playerResponseFromHTML walks the page's script elements and extracts the
// ytInitialPlayerResponse JSON object. Returns nil when absent.
func playerResponseFromHTML(page []byte) []byte {
	tok := html.NewTokenizer(strings.NewReader(string(page)))
	inScript := false
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := tok.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := tok.Text()
			idx := strings.Index(string(text), ytInitialPlayerResponseMarker)
			if idx < 0 {
				continue
			}
			if data := extractJSON(text[idx+len(ytInitialPlayerResponseMarker):]); data != nil {
				return data
			}
		}
	}
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL into
// ordered segments.
func fetchTimedText(ctx context.Context, baseURL string) ([]engine.CaptionSegment, error) {
	if err := waitUpstream(ctx); err != nil {
		return nil, err
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	return parseTimedText(body)
}

// parseTimedText converts timedtext XML into caption segments, stripping any
// inline markup.
func parseTimedText(body []byte) ([]engine.CaptionSegment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]engine.CaptionSegment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanHTML(line.Text)
		if text != "" {
			segments = append(segments, engine.CaptionSegment{Text: text})
		}
	}
	if len(segments) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return segments, nil
}
