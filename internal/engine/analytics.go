package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Usage analytics: per-day, per-tool request counts in a local SQLite file.
// Strictly best-effort — every failure is logged and swallowed, a request is
// never blocked or failed because its counter could not be bumped. Counts are
// lossy under concurrency by design; treat them as trends, not ledgers.

// UsageRow is one (day, tool) counter.
type UsageRow struct {
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	Tool  string `json:"tool"`
	Count int64  `json:"count"`
}

var (
	analyticsDB   *sql.DB
	analyticsOnce sync.Once
	analyticsErr  error
	analyticsPath string
)

// InitAnalytics sets the SQLite path. Empty keeps the default under $HOME.
// The database itself opens lazily on first use.
func InitAnalytics(path string) {
	analyticsPath = path
}

// openAnalyticsDB opens (or creates) the SQLite usage database.
func openAnalyticsDB() (*sql.DB, error) {
	analyticsOnce.Do(func() {
		path := analyticsPath
		if path == "" {
			dir := filepath.Join(os.Getenv("HOME"), ".youtube-transcript-mcp")
			if err := os.MkdirAll(dir, 0750); err != nil {
				analyticsErr = fmt.Errorf("analytics: mkdir %s: %w", dir, err)
				return
			}
			path = filepath.Join(dir, "usage.db")
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			analyticsErr = fmt.Errorf("analytics: open db: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // SQLite: single writer
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage (
			day   TEXT NOT NULL,
			tool  TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (day, tool)
		)`); err != nil {
			analyticsErr = fmt.Errorf("analytics: init schema: %w", err)
			return
		}
		analyticsDB = db
	})
	return analyticsDB, analyticsErr
}

// RecordUsage bumps today's counter for tool. Fire-and-forget.
func RecordUsage(ctx context.Context, tool string) {
	db, err := openAnalyticsDB()
	if err != nil {
		slog.Warn("analytics: unavailable", slog.Any("error", err))
		return
	}

	day := time.Now().UTC().Format("2006-01-02")
	_, err = db.ExecContext(ctx,
		`INSERT INTO usage (day, tool, count) VALUES (?, ?, 1)
		 ON CONFLICT(day, tool) DO UPDATE SET count = count + 1`,
		day, tool,
	)
	if err != nil {
		slog.Warn("analytics: increment failed", slog.String("tool", tool), slog.Any("error", err))
	}
}

// UsageSnapshot returns the most recent counters, newest day first.
func UsageSnapshot(ctx context.Context, limit int) ([]UsageRow, error) {
	db, err := openAnalyticsDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx,
		`SELECT day, tool, count FROM usage ORDER BY day DESC, tool ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: query: %w", err)
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var r UsageRow
		if err := rows.Scan(&r.Day, &r.Tool, &r.Count); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
