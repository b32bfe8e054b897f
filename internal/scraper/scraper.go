package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Scraper fetches blog pages and normalizes their markup for archiving.
type Scraper struct {
	log       *slog.Logger
	client    *http.Client
	userAgent string
	attempts  int
	baseDelay time.Duration
}

// New creates a scraper. attempts is the total number of tries per URL;
// values below 1 are clamped to 1.
func New(log *slog.Logger, timeout time.Duration, attempts int) *Scraper {
	if attempts < 1 {
		attempts = 1
	}
	return &Scraper{
		log:       log,
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		attempts:  attempts,
		baseDelay: 2 * time.Second,
	}
}

// Fetch downloads the page at rawURL and returns its cleaned HTML.
// Transient failures are retried with exponential backoff; the context
// cancels both the requests and the waits between them.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (string, error) {
	const opn = "scraper.Fetch"

	if err := validateURL(rawURL); err != nil {
		return "", fmt.Errorf("%s: %w", opn, err)
	}

	var lastErr error
	delay := s.baseDelay

	for attempt := 1; attempt <= s.attempts; attempt++ {
		body, err := s.get(ctx, rawURL)
		if err == nil {
			return cleanHTML(body)
		}
		lastErr = err
		s.log.WarnContext(ctx, "fetch attempt failed",
			"op", opn, "url", rawURL, "attempt", attempt, "error", err)

		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", opn, ctx.Err())
		case <-time.After(delay):
		}
		if delay *= 2; delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}

	return "", fmt.Errorf("%s: all %d attempts failed for %s: %w", opn, s.attempts, rawURL, lastErr)
}

// get performs a single GET request and returns the raw page body.
func (s *Scraper) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	s.log.DebugContext(ctx, "Send request", "method", req.Method, "URL", req.URL)

	res, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code error: [%d] %s", res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("response is not parseable HTML: %w", err)
	}

	htmlStr, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render response document: %w", err)
	}

	return htmlStr, nil
}

// cleanHTML strips elements whose content churns between fetches without
// being article text: scripts, styles, iframes, noscript blocks and HTML
// comments. Keeping snapshots stable avoids phantom diffs.
func cleanHTML(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse page for cleanup: %w", err)
	}

	doc.Find("script, style, iframe, noscript").Remove()
	removeComments(doc)

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render cleaned page: %w", err)
	}

	return cleaned, nil
}

func removeComments(doc *goquery.Document) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		c := n.FirstChild
		for c != nil {
			next := c.NextSibling
			if c.Type == html.CommentNode {
				n.RemoveChild(c)
			} else {
				walk(c)
			}
			c = next
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
}

// validateURL accepts only absolute http(s) URLs.
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid URL %q: expected absolute http(s) URL", rawURL)
	}
	return nil
}

// Domain extracts the host of a URL for on-disk keying, with any leading
// "www." removed. An unparseable URL yields an empty string.
func Domain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
