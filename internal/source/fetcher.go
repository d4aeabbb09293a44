// Package source resolves a campaign's source URL into plain text the
// prompt builder can embed. A URL may point at an RSS/Atom feed, an XML
// sitemap, or an ordinary page; each resolves to a bounded text digest.
package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

// maxDigestBytes bounds the text handed to the prompt builder
const maxDigestBytes = 12 * 1024

// maxFeedItems bounds how many feed or sitemap entries make the digest
const maxFeedItems = 15

// Fetcher resolves source URLs into prompt-ready text
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewFetcher creates a Fetcher
func NewFetcher(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		parser:     gofeed.NewParser(),
		limiter:    limiter,
		log:        log.WithComponent("source"),
	}
}

// Fetch downloads the URL and returns a text digest of its content. The
// URL may name several sources separated by commas or newlines; digests
// are concatenated in order.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	urls := splitURLs(rawURL)
	if len(urls) == 0 {
		return "", fmt.Errorf("no usable URL in %q", rawURL)
	}

	var parts []string
	for _, u := range urls {
		digest, err := f.fetchOne(ctx, u)
		if err != nil {
			// Partial source material still produces a useful
			// campaign; log and keep going.
			f.log.Warn().Err(err).Str("url", u).Msg("Failed to fetch source URL")
			continue
		}
		parts = append(parts, digest)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("none of the source URLs could be fetched")
	}

	combined := strings.Join(parts, "\n\n")
	if len(combined) > maxDigestBytes {
		combined = combined[:maxDigestBytes]
	}
	return combined, nil
}

func splitURLs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var urls []string
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx, ratelimit.LimiterFeeds); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "campaign-agent/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch of %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	if digest, ok := f.digestFeed(body); ok {
		return digest, nil
	}
	if digest, ok := digestSitemap(body); ok {
		return digest, nil
	}
	return digestHTML(body), nil
}

// digestFeed summarizes an RSS/Atom feed as "title: description" lines
func (f *Fetcher) digestFeed(body []byte) (string, bool) {
	feed, err := f.parser.ParseString(string(body))
	if err != nil || feed == nil || len(feed.Items) == 0 {
		return "", false
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "Feed: %s\n", feed.Title)
	}
	for i, item := range feed.Items {
		if i >= maxFeedItems {
			break
		}
		line := cleanText(item.Title)
		if desc := cleanText(item.Description); desc != "" {
			line += ": " + desc
		}
		b.WriteString("- " + line + "\n")
	}
	return b.String(), true
}

type sitemapIndex struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// digestSitemap lists the page locations of an XML sitemap
func digestSitemap(body []byte) (string, bool) {
	var sm sitemapIndex
	if err := xml.Unmarshal(body, &sm); err != nil || len(sm.URLs) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString("Sitemap pages:\n")
	for i, u := range sm.URLs {
		if i >= maxFeedItems {
			break
		}
		b.WriteString("- " + strings.TrimSpace(u.Loc) + "\n")
	}
	return b.String(), true
}

// digestHTML strips tags and collapses whitespace
func digestHTML(body []byte) string {
	text := string(body)

	// Drop script and style blocks before tag stripping
	for _, tag := range []string{"script", "style"} {
		for {
			open := strings.Index(text, "<"+tag)
			if open == -1 {
				break
			}
			close := strings.Index(text[open:], "</"+tag+">")
			if close == -1 {
				text = text[:open]
				break
			}
			text = text[:open] + text[open+close+len(tag)+3:]
		}
	}

	return cleanText(text)
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(result.String()), " "))
}
