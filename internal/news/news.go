// Package news collects Turkish economy headlines from RSS feeds and pulls
// the full text of the lead story for the report generator.
package news

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 20

// DefaultFeeds are Google News searches for the price and inflation beat.
var DefaultFeeds = []FeedConfig{
	{URL: "https://news.google.com/rss/search?q=enflasyon&hl=tr&gl=TR&ceid=TR:tr", Name: "Google News"},
	{URL: "https://news.google.com/rss/search?q=g%C4%B1da+fiyatlar%C4%B1+zam&hl=tr&gl=TR&ceid=TR:tr", Name: "Google News"},
}

// Headline is one collected feed entry.
type Headline struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"` // YYYY-MM-DD or empty
	Summary       string `json:"summary"`
}

// FeedConfig is a single feed to poll.
type FeedConfig struct {
	URL  string
	Name string
}

// Collector polls the configured feeds.
type Collector struct {
	Feeds  []FeedConfig
	HTTP   *http.Client
	Logger *log.Logger
}

// NewCollector creates a collector over the given feeds, defaulting to the
// economy searches when none are configured.
func NewCollector(feeds []FeedConfig, httpClient *http.Client, logger *log.Logger) *Collector {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Collector{Feeds: feeds, HTTP: httpClient, Logger: logger}
}

// Headlines polls every feed and returns up to limit entries published
// within daysBack days, newest first. Feed failures are logged and skipped.
func (c *Collector) Headlines(daysBack, limit int) []Headline {
	cutoff := time.Now().AddDate(0, 0, -daysBack)

	parser := gofeed.NewParser()
	parser.Client = c.HTTP

	var all []Headline
	for _, fc := range c.Feeds {
		name := fc.Name
		if name == "" {
			name = sourceNameFromURL(fc.URL)
		}
		entries, err := parseFeed(parser, fc.URL, name, cutoff)
		if err != nil {
			c.logf("WARN: failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
	}

	sortByDateDesc(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// LeadArticle fetches the full text of the first headline that yields a
// readable body. Returns the text and the headline it came from; empty text
// when nothing is fetchable.
func (c *Collector) LeadArticle(headlines []Headline) (string, Headline) {
	for _, h := range headlines {
		text, err := c.fetchReadable(h.URL)
		if err != nil {
			c.logf("WARN: failed to fetch %s: %v", h.URL, err)
			continue
		}
		if text != "" {
			return text, h
		}
	}
	return "", Headline{}
}

func parseFeed(parser *gofeed.Parser, feedURL, sourceName string, cutoff time.Time) ([]Headline, error) {
	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		return nil, err
	}

	var entries []Headline
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}
		h := parseItem(item, sourceName)
		if h == nil {
			continue
		}
		if isWithinWindow(h.PublishedDate, cutoff) {
			entries = append(entries, *h)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *Headline {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var summary string
	if item.Description != "" {
		summary = stripHTML(item.Description)
	} else if item.Content != "" {
		summary = stripHTML(item.Content)
	}

	return &Headline{
		Title:         title,
		URL:           itemURL,
		Source:        source,
		PublishedDate: publishedDate,
		Summary:       summary,
	}
}

func isWithinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

func sortByDateDesc(hs []Headline) {
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].PublishedDate > hs[j].PublishedDate
	})
}

func (c *Collector) fetchReadable(articleURL string) (string, error) {
	req, err := http.NewRequest("GET", articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "enfmon/1.0 (price monitor)")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

func (c *Collector) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func sourceNameFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "rss.", "feeds.", "news."} {
		host = strings.TrimPrefix(host, prefix)
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	if host == "" {
		return feedURL
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
