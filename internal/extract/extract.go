// Package extract pulls the title, body text and candidate images out of an
// article page.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/fetch"
)

const defaultTitle = "Article"

// Article is what the pipeline needs from a page. Images are absolute URLs
// in first-seen order without duplicates.
type Article struct {
	URL    string
	Title  string
	Text   string
	Images []string
}

type Extractor struct {
	Fetcher fetch.Fetcher
}

// Extract fetches pageURL and parses it. Any error here is fatal for the run.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*Article, error) {
	html, err := e.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, failure.New(failure.ExtractionFailure, "fetch article", err)
	}
	a, err := Parse(html, pageURL)
	if err != nil {
		return nil, failure.New(failure.ExtractionFailure, "parse article", err)
	}
	return a, nil
}

// Parse extracts an Article from raw HTML. pageURL resolves relative links.
func Parse(html []byte, pageURL string) (*Article, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	a := &Article{URL: pageURL}
	a.Title = collapse(doc.Find("title").First().Text())

	article := doc.Find("article").First()
	a.Text = paragraphs(doc, article)

	if a.Title == "" || a.Text == "" {
		if r, err := readability.FromReader(bytes.NewReader(html), base); err == nil {
			if a.Title == "" {
				a.Title = collapse(r.Title)
			}
			if a.Text == "" {
				a.Text = collapse(r.TextContent)
			}
		}
	}
	if a.Text == "" {
		body := doc.Find("body")
		body.Find("script, style, noscript, template").Remove()
		a.Text = collapse(body.Text())
	}
	if a.Title == "" {
		a.Title = defaultTitle
	}
	if a.Text == "" {
		return nil, errors.New("page has no text")
	}

	scope := doc.Selection
	if article.Length() > 0 {
		scope = article
	}
	a.Images = images(doc, scope, base)
	return a, nil
}

// paragraphs joins <article> paragraphs, falling back to the schema.org body
// container. Paragraphs inside <aside> are skipped.
func paragraphs(doc *goquery.Document, article *goquery.Selection) string {
	ps := doc.Find("div[itemprop='articleBody'] p")
	if article.Length() > 0 {
		ps = article.Find("p")
	}

	var parts []string
	ps.Each(func(_ int, p *goquery.Selection) {
		if p.ParentsFiltered("aside").Length() > 0 {
			return
		}
		if t := collapse(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func images(doc *goquery.Document, scope *goquery.Selection, base *url.URL) []string {
	c := &collector{base: base, seen: make(map[string]bool)}
	yahoo := strings.Contains(strings.ToLower(base.Host), "yahoo.com")

	scope.Find("img").Each(func(_ int, img *goquery.Selection) {
		if yahoo && img.ParentsFiltered("header").Length() > 0 {
			return
		}
		src := firstAttr(img, "data-src", "data-original", "data-lazy-src", "src")
		if src == "" {
			src = lastCandidate(firstAttr(img, "data-srcset", "srcset"))
		}
		c.add(src)
	})
	scope.Find("source").Each(func(_ int, s *goquery.Selection) {
		c.add(lastCandidate(firstAttr(s, "srcset", "data-srcset")))
	})

	c.add(metaContent(doc, "property", "og:image", "og:image:secure_url"))
	c.add(metaContent(doc, "name", "twitter:image", "twitter:image:src"))
	return c.urls
}

type collector struct {
	base *url.URL
	seen map[string]bool
	urls []string
}

func (c *collector) add(raw string) {
	u, ok := resolve(c.base, raw)
	if !ok || c.seen[u] {
		return
	}
	c.seen[u] = true
	c.urls = append(c.urls, u)
}

// resolve turns an attribute value into an absolute http(s) URL.
// Protocol-relative URLs get https; data: and other schemes are dropped.
func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(s.AttrOr(n, "")); v != "" {
			return v
		}
	}
	return ""
}

// lastCandidate returns the URL of the last srcset entry, usually the largest.
func lastCandidate(srcset string) string {
	var last string
	for _, part := range strings.Split(srcset, ",") {
		if fields := strings.Fields(part); len(fields) > 0 {
			last = fields[0]
		}
	}
	return last
}

func metaContent(doc *goquery.Document, attr string, keys ...string) string {
	for _, k := range keys {
		sel := doc.Find(fmt.Sprintf("meta[%s=%q]", attr, k))
		for i := range sel.Nodes {
			if v := strings.TrimSpace(sel.Eq(i).AttrOr("content", "")); v != "" {
				return v
			}
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
