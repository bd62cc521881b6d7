package feed

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/xhad/newsagent/internal/models"
	"github.com/xhad/newsagent/pkg/processor"
)

// FetchError means the feed could not be fetched or parsed. It aborts the run.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

type SourceConfig struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Processor *processor.Processor // optional cleanup applied to every item
}

// RSSSource fetches items from an RSS or Atom feed.
type RSSSource struct {
	config SourceConfig
	parser *gofeed.Parser
}

func NewWithConfig(config SourceConfig) (*RSSSource, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "newsagent/1.0"
	}

	parsedURL, err := url.ParseRequestURI(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid feed URL: missing host")
	}

	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent
	parser.Client = &http.Client{
		Timeout: config.Timeout,
	}

	return &RSSSource{
		config: config,
		parser: parser,
	}, nil
}

func New(feedURL string) *RSSSource {
	s, _ := NewWithConfig(SourceConfig{
		URL: feedURL,
	})
	return s
}

// Fetch downloads and parses the whole feed. Any failure is a *FetchError;
// no partial result is returned.
func (s *RSSSource) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	parsed, err := s.parser.ParseURLWithContext(s.config.URL, ctx)
	if err != nil {
		return nil, &FetchError{URL: s.config.URL, Err: err}
	}

	items := make([]models.NewsItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		item := convertItem(entry)
		if s.config.Processor != nil {
			item = s.config.Processor.Process(item)
		}
		items = append(items, item)
	}

	return items, nil
}

func convertItem(entry *gofeed.Item) models.NewsItem {
	title := entry.Title
	if title == "" {
		title = "No Title"
	}

	return models.NewsItem{
		ID:        itemID(entry),
		Title:     title,
		Link:      entry.Link,
		Published: entry.Published,
		Summary:   entry.Description,
	}
}

// itemID prefers the entry guid, then its link. Entries with neither get a
// hash of title and publication date so they still dedup across runs.
func itemID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	sum := sha256.Sum256([]byte(entry.Title + "|" + entry.Published))
	return fmt.Sprintf("%x", sum)[:16]
}
