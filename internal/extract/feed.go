package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/ivlev/article2video/internal/fetch"
)

// FeedLinks returns up to n article links from an RSS or Atom feed, in feed
// order, skipping items without a link.
func FeedLinks(ctx context.Context, f fetch.Fetcher, feedURL string, n int) ([]string, error) {
	data, err := f.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var links []string
	for _, item := range feed.Items {
		if n > 0 && len(links) >= n {
			break
		}
		if link := strings.TrimSpace(item.Link); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}
