package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// WikipediaBaseURL is the default English Wikipedia host.
const WikipediaBaseURL = "https://en.wikipedia.org"

// Wikipedia fetches lead-section summaries through the MediaWiki action API.
type Wikipedia struct {
	baseURL string
	client  *http.Client
	cache   *Cache
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewWikipedia creates an encyclopedia fetcher.
func NewWikipedia(opts Options) *Wikipedia {
	return &Wikipedia{
		baseURL: WikipediaBaseURL,
		client:  opts.client(),
		cache:   opts.cache(),
		limiter: opts.limiter(),
		log:     opts.logger().WithField("source", "wikipedia"),
	}
}

// WithBaseURL points the fetcher at a different host. Used by tests.
func (w *Wikipedia) WithBaseURL(u string) *Wikipedia {
	w.baseURL = strings.TrimRight(u, "/")
	return w
}

type wikiExtractResponse struct {
	Query struct {
		Pages []wikiPage `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	Missing   bool   `json:"missing"`
	Invalid   bool   `json:"invalid"`
	PageProps struct {
		Disambiguation *string `json:"disambiguation"`
	} `json:"pageprops"`
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// Summary returns the first sentences of the article best matching query.
// The exact title is tried first, then the top search hits. Any failure
// yields NoWikiSummary.
func (w *Wikipedia) Summary(ctx context.Context, query string, sentences int) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return NoWikiSummary
	}
	if sentences <= 0 {
		sentences = DefaultWikiSentences
	}

	cacheKey := fmt.Sprintf("wiki:%s:%d", strings.ToLower(query), sentences)
	if cached, ok := w.cache.Get(cacheKey); ok {
		return cached.(string)
	}

	log := w.log.WithField("query", query)

	text, err := w.extract(ctx, query, sentences)
	if err != nil {
		log.WithError(err).Debug("exact title lookup failed, searching")
		text, err = w.searchAndExtract(ctx, query, sentences)
	}
	if err != nil {
		log.WithError(err).Warn("wikipedia lookup failed")
		return NoWikiSummary
	}

	w.cache.Set(cacheKey, text)
	return text
}

// extract fetches the plain-text intro of a page, limited to the given
// number of sentences.
func (w *Wikipedia) extract(ctx context.Context, title string, sentences int) (string, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"extracts|pageprops"},
		"ppprop":        {"disambiguation"},
		"exintro":       {"1"},
		"explaintext":   {"1"},
		"exsentences":   {strconv.Itoa(sentences)},
		"redirects":     {"1"},
		"format":        {"json"},
		"formatversion": {"2"},
		"titles":        {title},
	}

	var resp wikiExtractResponse
	if err := w.getJSON(ctx, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Pages) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoResults, title)
	}

	p := resp.Query.Pages[0]
	switch {
	case p.Missing || p.Invalid:
		return "", fmt.Errorf("%w: page %q missing", ErrNoResults, title)
	case p.PageProps.Disambiguation != nil:
		return "", fmt.Errorf("%w: %q is a disambiguation page", ErrNoResults, title)
	}

	text := strings.TrimSpace(p.Extract)
	if text == "" {
		return "", fmt.Errorf("%w: empty extract for %q", ErrNoResults, title)
	}
	return text, nil
}

func (w *Wikipedia) searchAndExtract(ctx context.Context, query string, sentences int) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"3"},
		"format":   {"json"},
	}

	var resp wikiSearchResponse
	if err := w.getJSON(ctx, params, &resp); err != nil {
		return "", err
	}

	lastErr := fmt.Errorf("%w: no search hits for %q", ErrNoResults, query)
	for _, hit := range resp.Query.Search {
		if strings.EqualFold(hit.Title, query) {
			continue
		}
		text, err := w.extract(ctx, hit.Title, sentences)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (w *Wikipedia) getJSON(ctx context.Context, params url.Values, out any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := doGet(ctx, w.client, w.baseURL+"/w/api.php?"+params.Encode(), map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return fmt.Errorf("wikipedia: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse wikipedia response: %w", err)
	}
	return nil
}
