package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// GoogleNewsBaseURL is the default Google News host.
const GoogleNewsBaseURL = "https://news.google.com"

// maxSnippetRunes bounds snippets taken from article bodies.
const maxSnippetRunes = 300

// News searches the Google News RSS feed for company headlines.
type News struct {
	baseURL string
	cache   *Cache
	limiter *rate.Limiter
	parser  *gofeed.Parser
	log     logrus.FieldLogger

	enrich      bool
	articleText func(ctx context.Context, link string) (string, error)
}

// NewNews creates a news fetcher. When enrich is set, items whose feed
// description is empty get a snippet extracted from the article body.
func NewNews(opts Options, enrich bool) *News {
	parser := gofeed.NewParser()
	parser.Client = opts.client()
	parser.UserAgent = DefaultUserAgent

	return &News{
		baseURL:     GoogleNewsBaseURL,
		cache:       opts.cache(),
		limiter:     opts.limiter(),
		parser:      parser,
		log:         opts.logger().WithField("source", "news"),
		enrich:      enrich,
		articleText: readableText,
	}
}

// WithBaseURL points the fetcher at a different host. Used by tests.
func (n *News) WithBaseURL(u string) *News {
	n.baseURL = strings.TrimRight(u, "/")
	return n
}

// CompanyNews returns up to limit headlines mentioning the company, in feed
// order. A non-positive limit means DefaultNewsLimit. Any failure yields nil.
func (n *News) CompanyNews(ctx context.Context, company string, limit int) []models.NewsItem {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultNewsLimit
	}

	cacheKey := fmt.Sprintf("news:%s:%d", strings.ToLower(company), limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return append([]models.NewsItem(nil), cached.([]models.NewsItem)...)
	}

	items, err := n.fetchRSS(ctx, n.searchURL(company), limit)
	if err != nil {
		n.log.WithError(err).WithField("company", company).Warn("news search failed")
		return nil
	}

	n.cache.Set(cacheKey, items)
	return append([]models.NewsItem(nil), items...)
}

func (n *News) searchURL(company string) string {
	return fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", n.baseURL, url.QueryEscape(company))
}

// fetchRSS parses an RSS feed and returns at most limit items.
func (n *News) fetchRSS(ctx context.Context, feedURL string, limit int) ([]models.NewsItem, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS: %w", err)
	}

	items := make([]models.NewsItem, 0, min(limit, len(feed.Items)))
	for _, it := range feed.Items {
		if len(items) == limit {
			break
		}
		items = append(items, n.toNewsItem(ctx, it))
	}
	return items, nil
}

func (n *News) toNewsItem(ctx context.Context, it *gofeed.Item) models.NewsItem {
	title, source := splitHeadline(it.Title)
	if it.Author != nil && it.Author.Name != "" {
		source = it.Author.Name
	}

	item := models.NewsItem{
		Title:   title,
		Source:  source,
		URL:     it.Link,
		Snippet: cleanHTML(it.Description),
		Date:    it.Published,
	}
	if it.PublishedParsed != nil {
		item.Date = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	// Google News descriptions only repeat the headline and publisher.
	if title != "" && strings.HasPrefix(item.Snippet, title) {
		item.Snippet = ""
	}

	if n.enrich && item.Snippet == "" && item.URL != "" {
		text, err := n.articleText(ctx, item.URL)
		if err != nil {
			n.log.WithError(err).WithField("url", item.URL).Debug("snippet enrichment failed")
		} else {
			item.Snippet = truncateRunes(text, maxSnippetRunes)
		}
	}
	return item
}

// splitHeadline separates the trailing " - Publisher" Google News appends
// to every title.
func splitHeadline(s string) (title, source string) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, " - ")
	if i <= 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// readableText downloads an article and returns its main text.
func readableText(ctx context.Context, link string) (string, error) {
	deadline := 15 * time.Second
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < deadline {
			deadline = left
		}
	}
	article, err := readability.FromURL(link, deadline)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
