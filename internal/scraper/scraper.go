// Package scraper fetches bookmark metadata: it normalizes a raw URL,
// performs the GET, follows redirects and records fetch provenance.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pinmark/pinmark/internal/bookmark"
)

// ErrFetch wraps every network-layer failure: DNS, connect, TLS or
// timeout. An HTTP error status is not a fetch failure.
var ErrFetch = errors.New("fetch failed")

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0"

	// Cap response bodies so a pathological page cannot exhaust memory.
	maxBodySize = 10 * 1024 * 1024
)

type OptFn func(*Scraper)

// Scraper is the metadata fetcher. The zero value is not usable;
// construct it with New.
type Scraper struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// WithTimeout bounds the whole fetch, including redirects and body read.
func WithTimeout(d time.Duration) OptFn {
	return func(s *Scraper) {
		s.client.Timeout = d
	}
}

// WithUserAgent overrides the browser User-Agent sent on each request.
func WithUserAgent(ua string) OptFn {
	return func(s *Scraper) {
		s.userAgent = ua
	}
}

// WithClock injects the clock used to stamp checked_at.
func WithClock(now func() time.Time) OptFn {
	return func(s *Scraper) {
		s.now = now
	}
}

// New creates a Scraper with a tuned HTTP client.
func New(opts ...OptFn) *Scraper {
	s := &Scraper{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Fetch retrieves rawURL and builds a bookmark carrying the resolved
// URL, extracted title, final status code and the fetch timestamp.
//
// The returned bookmark has a fresh id and no tags; error statuses
// (404, 401, ...) are recorded as data. Only a network-layer failure
// returns an error, and then no bookmark is produced.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*bookmark.Bookmark, error) {
	target := normalizeURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrFetch, rawURL, err)
	}

	s.setHeaders(req)

	start := time.Now()

	res, err := s.client.Do(req)
	if err != nil {
		slog.Warn("request failed", "url", target, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%w: %q: %w", ErrFetch, rawURL, err)
	}

	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("closing response body", "url", target, "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		// A body cut short by the timeout is not valid content.
		return nil, fmt.Errorf("%w: reading body of %q: %w", ErrFetch, rawURL, err)
	}

	// res.Request points at the last request of the redirect chain.
	finalURL := res.Request.URL.String()

	slog.Info("fetched page",
		"url", finalURL,
		"status", res.StatusCode,
		"duration", time.Since(start))

	return &bookmark.Bookmark{
		ID:         uuid.NewString(),
		URL:        finalURL,
		Title:      Title(body, finalURL),
		StatusCode: res.StatusCode,
		CheckedAt:  s.now().Format(time.RFC3339Nano),
	}, nil
}

func (s *Scraper) setHeaders(r *http.Request) {
	// Some origins reject requests without a browser-looking agent.
	r.Header.Set("User-Agent", s.userAgent)
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// normalizeURL prepends http:// when the URL carries no scheme. Plain
// http, never https: many bookmarked hosts still redirect on their own.
func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	return "http://" + raw
}
