// Package sources implements the upstream YouTube caption-fetch capability.
//
// Split across two files by responsibility:
//
//	youtube_innertube.go — Innertube API types, constants, low-level HTTP
//	                       primitives, and the upstream rate limiter
//	youtube_captions.go  — caption track discovery (watch-page scrape +
//	                       ANDROID player fallback), track selection, and
//	                       timedtext XML fetching
//
// Failures are reported as plain errors whose message text is the signal the
// engine classifies on; keep the wording of the error strings stable.
package sources
