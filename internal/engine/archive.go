package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transcript archive: optional long-term Postgres store of successfully
// fetched transcripts, consulted after a cache miss and written after a
// successful fetch. Everything here is best-effort — archive failures are
// logged and never surface to the caller; with no DATABASE_URL configured the
// archive degrades to a permanent miss.

// Archive holds the pgx connection pool for transcript storage.
type Archive struct {
	pool *pgxpool.Pool
}

// Package-level singleton, set from main.go.
var archive *Archive

// SetArchive sets the package-level archive instance.
func SetArchive(a *Archive) { archive = a }

const archiveSchema = `CREATE TABLE IF NOT EXISTS transcripts (
	video_id   TEXT        NOT NULL,
	language   TEXT        NOT NULL,
	text       TEXT        NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (video_id, language)
)`

// ConnectArchive creates a pgx pool and ensures the schema exists.
func ConnectArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}

	slog.Info("archive: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return &Archive{pool: pool}, nil
}

func (a *Archive) Close() {
	a.pool.Close()
}

// archiveLookup fetches an archived transcript for (videoID, language).
// Misses and errors both report ok=false.
func archiveLookup(ctx context.Context, videoID, language string) (string, bool) {
	if archive == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var text string
	err := archive.pool.QueryRow(ctx,
		`SELECT text FROM transcripts WHERE video_id = $1 AND language = $2`,
		videoID, language,
	).Scan(&text)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("archive: lookup failed",
				slog.String("video_id", videoID),
				slog.String("language", language),
				slog.Any("error", err))
		}
		return "", false
	}
	return text, true
}

// archiveStore persists a fetched transcript. Fire-and-forget.
func archiveStore(ctx context.Context, videoID, language, text string) {
	if archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := archive.pool.Exec(ctx,
		`INSERT INTO transcripts (video_id, language, text, fetched_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (video_id, language) DO UPDATE SET text = EXCLUDED.text, fetched_at = now()`,
		videoID, language, text,
	)
	if err != nil {
		slog.Warn("archive: store failed",
			slog.String("video_id", videoID),
			slog.String("language", language),
			slog.Any("error", err))
	}
}
