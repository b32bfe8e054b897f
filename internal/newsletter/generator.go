package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"blogpulse/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxAttempts    = 3
	summaryLimit   = 300 // rune cap for article content quoted in prompts
)

// Generator composes the newsletter from a run's diff results. Sections are
// written by the OpenAI chat completions API; every failure degrades to a
// deterministic Markdown rendering, so generation itself never fails.
type Generator struct {
	log       *slog.Logger
	apiKey    string
	model     string
	baseURL   string
	client    *http.Client
	retryBase time.Duration
}

func NewGenerator(log *slog.Logger, apiKey, model string, timeout time.Duration) *Generator {
	if apiKey == "" {
		log.Warn("OpenAI API key not set, newsletters will use the fallback renderer")
	}
	return &Generator{
		log:       log,
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: timeout},
		retryBase: 4 * time.Second,
	}
}

// section is one category block of the newsletter.
type section struct {
	Category string
	Title    string
	Content  string
}

// Generate builds the complete newsletter Markdown for one run date.
func (g *Generator) Generate(ctx context.Context, diffs []*models.DiffResult, date string) string {
	if g.apiKey == "" {
		return g.fallbackNewsletter(diffs, date)
	}

	byCategory, categories := categorize(diffs)

	sections := make([]section, 0, len(categories))
	for _, category := range categories {
		sections = append(sections, g.generateSection(ctx, category, byCategory[category]))
	}

	return compile(sections, date)
}

// generateSection asks the model to write one category section, retrying
// transient API failures, and falls back to a plain listing when the API
// keeps failing.
func (g *Generator) generateSection(ctx context.Context, category string, diffs []*models.DiffResult) section {
	const opn = "newsletter.generateSection"

	prompt := buildPromptData(category, diffs)

	var lastErr error
	delay := g.retryBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := g.chatComplete(ctx, systemPrompt, userPrompt(prompt))
		if err == nil {
			return section{Category: category, Title: capitalize(category), Content: content}
		}
		lastErr = err
		g.log.WarnContext(ctx, "newsletter section generation attempt failed",
			"op", opn, "category", category, "attempt", attempt, "error", err)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(delay):
		}
		if ctx.Err() != nil {
			break
		}
		if delay *= 2; delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}

	g.log.ErrorContext(ctx, "falling back to plain section rendering",
		"op", opn, "category", category, "error", lastErr)

	return fallbackSection(category, diffs)
}

// ---------------------------------------------------------------------------
// OpenAI chat completions client
// ---------------------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatComplete sends one chat completion request and returns the generated
// text.
func (g *Generator) chatComplete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("chat completions status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err = json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response contains no choices")
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// ---------------------------------------------------------------------------
// Prompt assembly
// ---------------------------------------------------------------------------

const systemPrompt = `You are a newsletter writer for a tech blog aggregator. Your task is to write a section of the newsletter summarizing new and changed articles from various blogs. The summary should be informative and concise.

Follow these guidelines:
- Use an engaging but professional writing style
- Include key information about the articles
- Group related articles together
- Highlight the most important or interesting updates
- Format your response in Markdown
- Provide proper links to the articles`

type blogRef struct {
	Name string
	URL  string
}

type promptData struct {
	Category        string
	Blogs           []blogRef
	NewArticles     []models.Article
	ChangedArticles []models.ChangedArticle
}

func buildPromptData(category string, diffs []*models.DiffResult) promptData {
	data := promptData{Category: category}

	for _, diff := range diffs {
		data.Blogs = append(data.Blogs, blogRef{Name: blogName(diff), URL: blogURL(diff)})
		data.NewArticles = append(data.NewArticles, diff.NewArticles...)
		data.ChangedArticles = append(data.ChangedArticles, diff.ChangedArticles...)
	}

	return data
}

func userPrompt(data promptData) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write a newsletter section for the category: %s\n\n", data.Category)

	sb.WriteString("Blogs with updates:\n")
	for _, blog := range data.Blogs {
		fmt.Fprintf(&sb, "- %s (%s)\n", blog.Name, blog.URL)
	}

	if len(data.NewArticles) > 0 {
		sb.WriteString("\nNew Articles:\n")
		for _, art := range data.NewArticles {
			fmt.Fprintf(&sb, "- '%s'", art.Title)
			if art.URL != "" {
				fmt.Fprintf(&sb, " (URL: %s)", art.URL)
			}
			if art.Content != "" {
				fmt.Fprintf(&sb, "\n  Summary: %s\n", truncate(art.Content, summaryLimit))
			}
			sb.WriteString("\n")
		}
	}

	if len(data.ChangedArticles) > 0 {
		sb.WriteString("\nChanged Articles:\n")
		for _, art := range data.ChangedArticles {
			fmt.Fprintf(&sb, "- '%s'", art.Title)
			if art.URL != "" {
				fmt.Fprintf(&sb, " (URL: %s)", art.URL)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString(`
Generate a newsletter section summarizing these updates. The section should:
1. Have a catchy subtitle related to the category
2. Summarize the most important updates
3. Be written in Markdown format
4. Include proper links to articles
5. Be between 200-300 words
`)

	return sb.String()
}

// ---------------------------------------------------------------------------
// Deterministic fallback rendering
// ---------------------------------------------------------------------------

// fallbackNewsletter renders the whole newsletter without the LLM, grouped
// by blog instead of by category.
func (g *Generator) fallbackNewsletter(diffs []*models.DiffResult, date string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Tech Blog Newsletter\n## Issue: %s\n\n", displayDate(date))
	sb.WriteString("Welcome to this week's tech blog update! Here's what's new from the tech blogosphere.\n\n")

	for _, diff := range diffs {
		fmt.Fprintf(&sb, "## Updates from [%s](%s)\n\n", blogName(diff), blogURL(diff))

		if len(diff.NewArticles) > 0 {
			sb.WriteString("### New Articles\n\n")
			for _, art := range diff.NewArticles {
				writeArticleLine(&sb, art.Title, art.URL)
			}
			sb.WriteString("\n")
		}

		if len(diff.ChangedArticles) > 0 {
			sb.WriteString("### Updated Articles\n\n")
			for _, art := range diff.ChangedArticles {
				writeArticleLine(&sb, art.Title, art.URL)
			}
			sb.WriteString("\n")
		}

		sb.WriteString("---\n\n")
	}

	sb.WriteString(footer)

	return sb.String()
}

// fallbackSection renders one category section without the LLM.
func fallbackSection(category string, diffs []*models.DiffResult) section {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### Updates in %s\n\n", capitalize(category))

	for _, diff := range diffs {
		fmt.Fprintf(&sb, "#### [%s](%s)\n\n", blogName(diff), blogURL(diff))
		for _, art := range diff.NewArticles {
			writeArticleLine(&sb, art.Title, art.URL)
		}
		sb.WriteString("\n")
	}

	return section{Category: category, Title: capitalize(category), Content: sb.String()}
}

const footer = `
*This newsletter is auto-generated based on updates from tech blogs across the web.*

*To unsubscribe or provide feedback, please reply to this email.*
`

// compile joins the generated sections into the final newsletter document.
func compile(sections []section, date string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Tech Blog Newsletter\n## Issue: %s\n\n", displayDate(date))
	sb.WriteString("Welcome to this week's tech blog update! Here's what's new and noteworthy from the tech blogosphere.\n\n")

	for _, sec := range sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n---\n\n", sec.Title, sec.Content)
	}

	sb.WriteString(footer)

	return sb.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// categorize groups diffs by category and returns the sorted category names
// so that newsletter sections come out in a stable order.
func categorize(diffs []*models.DiffResult) (map[string][]*models.DiffResult, []string) {
	byCategory := make(map[string][]*models.DiffResult)
	for _, diff := range diffs {
		category := diff.Category
		if category == "" {
			category = "general"
		}
		byCategory[category] = append(byCategory[category], diff)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return byCategory, categories
}

func blogName(diff *models.DiffResult) string {
	if diff.BlogName != "" {
		return diff.BlogName
	}
	if diff.Domain != "" {
		return diff.Domain
	}
	return "Unknown"
}

func blogURL(diff *models.DiffResult) string {
	if diff.BlogURL != "" {
		return diff.BlogURL
	}
	return diff.URL
}

func writeArticleLine(sb *strings.Builder, title, url string) {
	if url != "" {
		fmt.Fprintf(sb, "- [%s](%s)\n", title, url)
	} else {
		fmt.Fprintf(sb, "- %s\n", title)
	}
}

func displayDate(date string) string {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return parsed.Format("January 2, 2006")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
