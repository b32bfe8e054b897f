package extractor

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"blogpulse/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// articleSelectors are tried in priority order. Blogs rarely agree on
// markup, so after the semantic <article> tag we fall through common
// class-name conventions, from most to least specific. The first selector
// that yields at least one titled article wins; later ones are never mixed in.
var articleSelectors = []string{
	"article",
	".post",
	".entry",
	".blog-post",
	".blog-entry",
	`[class*="article"]`,
	`[class*="post"]`,
	`[class*="entry"]`,
	".card",
	".item",
	".news-item",
}

const (
	titleSelector   = "h1, h2, h3, h4, .title, .entry-title"
	dateSelector    = ".date, .time, .entry-date, .published, time, [datetime]"
	contentSelector = ".content, .entry-content, .description, .summary, p"
)

// Extractor turns one page snapshot into a list of article records.
type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract parses the markup and returns every article it can recognize.
// It never fails on malformed input; the worst case is an empty result.
// Every returned article has a non-empty title.
func (e *Extractor) Extract(markup string) []models.Article {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.log.Warn("markup cannot be parsed as HTML, skipping", "error", err)
		return nil
	}

	var articles []models.Article

	for _, selector := range articleSelectors {
		matched := doc.Find(selector)
		if matched.Length() == 0 {
			continue
		}

		matched.Each(func(_ int, s *goquery.Selection) {
			if art := e.fromContainer(s); art.Title != "" {
				articles = append(articles, art)
			}
		})

		if len(articles) > 0 {
			e.log.Debug("extracted articles via structural selector",
				"selector", selector, "count", len(articles))
			break
		}
	}

	// No structural container matched anything usable; fall back to scanning
	// headings that look like article titles.
	if len(articles) == 0 {
		doc.Find("h1, h2, h3").Each(func(_ int, h *goquery.Selection) {
			if !isLikelyArticleTitle(h) {
				return
			}
			if art := e.fromHeading(h); art.Title != "" {
				articles = append(articles, art)
			}
		})
		if len(articles) > 0 {
			e.log.Debug("extracted articles via heading fallback", "count", len(articles))
		}
	}

	return articles
}

// fromContainer extracts one article from a matched container element.
func (e *Extractor) fromContainer(s *goquery.Selection) models.Article {
	var art models.Article

	title := s.Find(titleSelector).First()
	if title.Length() > 0 {
		art.Title = strings.TrimSpace(title.Text())
		if href, ok := title.Find("a").First().Attr("href"); ok {
			art.URL = href
		}
	} else {
		// No title element; the first link with visible text stands in.
		s.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := strings.TrimSpace(a.Text())
			if text == "" {
				return true
			}
			art.Title = text
			if href, ok := a.Attr("href"); ok {
				art.URL = href
			}
			return false
		})
	}

	if date := s.Find(dateSelector).First(); date.Length() > 0 {
		if dt, ok := date.Attr("datetime"); ok {
			art.Date = dt
		} else {
			art.Date = strings.TrimSpace(date.Text())
		}
	}

	if content := s.Find(contentSelector).First(); content.Length() > 0 {
		art.Content = strings.TrimSpace(content.Text())
	} else if paragraphs := s.Find("p"); paragraphs.Length() > 0 {
		var parts []string
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(p.Text()))
		})
		art.Content = strings.Join(parts, "\n")
	}

	// Container holds no body text at all: take the first paragraph that
	// follows the title element anywhere later in the document.
	if art.Content == "" && title.Length() > 0 {
		if p := findNext(title.Get(0), isParagraph); p != nil {
			art.Content = strings.TrimSpace(nodeText(p))
		}
	}

	return art
}

// fromHeading extracts one article starting from a heading element, used
// when no structural selector matched.
func (e *Extractor) fromHeading(h *goquery.Selection) models.Article {
	art := models.Article{Title: strings.TrimSpace(h.Text())}

	if href, ok := h.Find("a").First().Attr("href"); ok {
		art.URL = href
	}

	if date := findNext(h.Get(0), isDateLike); date != nil {
		if dt := attrValue(date, "datetime"); dt != "" {
			art.Date = dt
		} else {
			art.Date = strings.TrimSpace(nodeText(date))
		}
	}

	// Body text is the run of sibling paragraphs directly after the heading,
	// up to the next heading.
	var parts []string
	for n := h.Get(0).NextSibling; n != nil; n = n.NextSibling {
		if n.Type != html.ElementNode {
			continue
		}
		if n.Data == "p" {
			parts = append(parts, strings.TrimSpace(nodeText(n)))
			continue
		}
		if isHeadingTag(n.Data) {
			break
		}
	}
	if len(parts) > 0 {
		art.Content = strings.Join(parts, "\n")
	}

	return art
}

// isLikelyArticleTitle rejects headings that are too short or too long to be
// a post title, then requires either a link inside the heading or at least
// one paragraph somewhere after it.
func isLikelyArticleTitle(h *goquery.Selection) bool {
	text := strings.TrimSpace(h.Text())
	length := utf8.RuneCountInString(text)
	if length < 10 || length > 200 {
		return false
	}
	if h.Find("a").Length() > 0 {
		return true
	}
	return findNext(h.Get(0), isParagraph) != nil
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4":
		return true
	}
	return false
}

func isParagraph(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "p"
}

// isDateLike recognizes <time> elements, anything carrying a machine
// datetime attribute, and elements with a date/published class.
func isDateLike(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "time" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "datetime" {
			return true
		}
		if a.Key == "class" {
			for _, cls := range strings.Fields(a.Val) {
				if cls == "date" || cls == "published" {
					return true
				}
			}
		}
	}
	return false
}

// findNext returns the first node in document order after n that satisfies
// match, descending into subtrees. CSS selectors cannot express "after this
// node", so this walks the parsed tree directly.
func findNext(n *html.Node, match func(*html.Node) bool) *html.Node {
	for cur := successor(n); cur != nil; cur = successor(cur) {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// successor is the document-order traversal step: first child, else next
// sibling, else the nearest ancestor's next sibling.
func successor(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// nodeText collects the concatenated text of a node's subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			sb.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
