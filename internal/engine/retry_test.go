package engine

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedFetcher fails calls times with err, then succeeds with segments.
type scriptedFetcher struct {
	err      error
	failures int
	segments []CaptionSegment
	calls    atomic.Int32
}

func (f *scriptedFetcher) FetchCaptions(_ context.Context, _, _ string) ([]CaptionSegment, error) {
	n := f.calls.Add(1)
	if int(n) <= f.failures {
		return nil, f.err
	}
	return f.segments, nil
}

func initTestEngine(f CaptionFetcher) {
	Init(Config{Fetcher: f, RetryInitialWait: time.Millisecond})
}

func TestFetchWithRetrySuccess(t *testing.T) {
	f := &scriptedFetcher{segments: []CaptionSegment{{Text: "hello"}, {Text: "world"}}}
	initTestEngine(f)

	got, err := FetchWithRetry(context.Background(), "vid1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
	if f.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", f.calls.Load())
	}
}

func TestFetchWithRetrySanitizes(t *testing.T) {
	f := &scriptedFetcher{segments: []CaptionSegment{{Text: "a\n\n\nb  \n"}}}
	initTestEngine(f)

	got, err := FetchWithRetry(context.Background(), "vid1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a\nb" {
		t.Errorf("got %q, want %q", got, "a\nb")
	}
}

func TestFetchWithRetryNoRetryOnPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"transcripts disabled", errors.New("no transcript found for language \"en\""), KindVideoUnavailable},
		{"video private", errors.New("captions unavailable: This video is private"), KindInvalidVideo},
		{"invalid id", errors.New("invalid video ID"), KindInvalidVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{err: tt.err, failures: 10}
			initTestEngine(f)

			_, err := FetchWithRetry(context.Background(), "vid1", "en")
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tt.want {
				t.Errorf("kind = %s, want %s", KindOf(err), tt.want)
			}
			if f.calls.Load() != 1 {
				t.Errorf("expected exactly 1 upstream call, got %d", f.calls.Load())
			}
		})
	}
}

func TestFetchWithRetryTransientExhausted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"network", errors.New("request timed out"), KindNetwork},
		{"rate limited", errors.New("HTTP 429: too many requests"), KindRateLimited},
		{"unclassified", errors.New("something odd happened"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{err: tt.err, failures: 10}
			initTestEngine(f)

			_, err := FetchWithRetry(context.Background(), "vid1", "en")
			if err == nil {
				t.Fatal("expected error after exhausting attempts")
			}
			if KindOf(err) != tt.want {
				t.Errorf("kind = %s, want %s", KindOf(err), tt.want)
			}
			if f.calls.Load() != maxFetchAttempts {
				t.Errorf("expected %d upstream calls, got %d", maxFetchAttempts, f.calls.Load())
			}
		})
	}
}

func TestFetchWithRetryRecoversAfterTransient(t *testing.T) {
	f := &scriptedFetcher{
		err:      errors.New("connection reset by peer"),
		failures: 2,
		segments: []CaptionSegment{{Text: "ok"}},
	}
	initTestEngine(f)

	got, err := FetchWithRetry(context.Background(), "vid1", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if f.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", f.calls.Load())
	}
}

func TestFetchWithRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &scriptedFetcher{err: errors.New("timed out"), failures: 10}
	initTestEngine(f)

	_, err := FetchWithRetry(ctx, "vid1", "en")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("kind = %s, want %s", KindOf(err), KindNetwork)
	}
}

func TestFetchWithRetryNoFetcher(t *testing.T) {
	Init(Config{})
	_, err := FetchWithRetry(context.Background(), "vid1", "en")
	if err == nil {
		t.Fatal("expected error without fetcher")
	}
	if KindOf(err) != KindUnknown {
		t.Errorf("kind = %s, want %s", KindOf(err), KindUnknown)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &httpStatusError{429}, true},
		{"http 502", &httpStatusError{502}, true},
		{"http 503", &httpStatusError{503}, true},
		{"regular error", errors.New("something"), false},
		{"timeout", &net.DNSError{IsTimeout: true}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryDoRetryThenSuccess(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	got, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &httpStatusError{503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryDoNonRetryable(t *testing.T) {
	rc := RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}
	calls := 0
	_, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		return "", errors.New("permanent error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-retryable), got %d", calls)
	}
}
