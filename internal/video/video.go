// Package video finds a reference video for a workflow step.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// Defaults for the lookup.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultQuerySuffix = " India 2024"
	SearchURL          = "https://www.youtube.com/results?search_query="
	maxResultBytes     = 2 << 20
)

// ErrNoVideo is returned when the search results contain no video id.
var ErrNoVideo = errors.New("no video found")

var videoIDPattern = regexp.MustCompile(`v=([a-zA-Z0-9_-]+)`)

// Video is a single search hit.
type Video struct {
	ID           string `json:"id"`
	WatchURL     string `json:"watch_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FromID builds the watch and thumbnail URLs for a video id.
func FromID(id string) Video {
	return Video{
		ID:           id,
		WatchURL:     "https://www.youtube.com/watch?v=" + id,
		ThumbnailURL: fmt.Sprintf("https://img.youtube.com/vi/%s/0.jpg", id),
	}
}

// ExtractID returns the first video id referenced in results.
func ExtractID(results string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(results)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Searcher runs a video search and returns the raw result text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// YouTubeSearcher scrapes the public YouTube results page.
type YouTubeSearcher struct {
	client  *http.Client
	baseURL string
}

// NewYouTubeSearcher creates a searcher using client, or http.DefaultClient when nil.
func NewYouTubeSearcher(client *http.Client) *YouTubeSearcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTubeSearcher{client: client, baseURL: SearchURL}
}

func (y *YouTubeSearcher) Search(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+url.QueryEscape(query), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en-IN,en;q=0.8")
	resp, err := y.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Opts holds configuration for a Lookup.
type Opts struct {
	Timeout     time.Duration
	QuerySuffix string
}

// Option configures a Lookup.
type Option func(*Opts)

// WithTimeout bounds how long a lookup may take.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithQuerySuffix overrides the text appended to every query.
func WithQuerySuffix(s string) Option {
	return func(o *Opts) {
		o.QuerySuffix = s
	}
}

// Lookup resolves a step's video query to a Video under a deadline.
type Lookup struct {
	searcher Searcher
	timeout  time.Duration
	suffix   string
}

func NewLookup(s Searcher, opts ...Option) *Lookup {
	cfg := Opts{Timeout: DefaultTimeout, QuerySuffix: DefaultQuerySuffix}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Lookup{searcher: s, timeout: cfg.Timeout, suffix: cfg.QuerySuffix}
}

type searchResult struct {
	text string
	err  error
}

// Find searches for query. Every failure, including the deadline, is a
// *models.CollaboratorError; callers render the rest of the step regardless.
func (l *Lookup) Find(ctx context.Context, query string) (Video, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// buffered so the search goroutine can always finish after a timeout
	done := make(chan searchResult, 1)
	go func() {
		text, err := l.searcher.Search(ctx, query+l.suffix)
		done <- searchResult{text: text, err: err}
	}()

	var res searchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		slog.Warn("Lookup.Find: search failed", "error", res.err, "query", query)
		return Video{}, &models.CollaboratorError{Collaborator: "video lookup", Err: res.err}
	}

	id, ok := ExtractID(res.text)
	if !ok {
		return Video{}, &models.CollaboratorError{Collaborator: "video lookup", Err: ErrNoVideo}
	}
	slog.Debug("Lookup.Find: found video", "query", query, "id", id)
	return FromID(id), nil
}
