package tool

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const (
	defaultSearchURL     = "https://html.duckduckgo.com/html/"
	searchUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultSearchResults = 5
	maxSearchResults     = 10
	maxFetchBytes        = 2 << 20
	maxPageText          = 4000
	webTimeout           = 20 * time.Second
)

var (
	resultLinkPattern    = regexp.MustCompile(`(?s)<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetPattern = regexp.MustCompile(`(?s)<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
	tagPattern           = regexp.MustCompile(`(?s)<[^>]*>`)
	scriptStylePattern   = regexp.MustCompile(`(?s)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	whitespacePattern    = regexp.MustCompile(`[ \t\r\f]+`)
	blankLinesPattern    = regexp.MustCompile(`\n{3,}`)
)

// WebSearchTool queries the DuckDuckGo HTML endpoint and returns result
// titles, URLs, and snippets.
type WebSearchTool struct {
	client    *http.Client
	searchURL string
}

var _ Tool = (*WebSearchTool)(nil)

type WebSearchOption func(*WebSearchTool)

// WithSearchURL overrides the search endpoint (tests point it at httptest).
func WithSearchURL(u string) WebSearchOption {
	return func(t *WebSearchTool) {
		if strings.TrimSpace(u) != "" {
			t.searchURL = u
		}
	}
}

func WithWebClient(client *http.Client) WebSearchOption {
	return func(t *WebSearchTool) {
		if client != nil {
			t.client = client
		}
	}
}

func NewWebSearchTool(opts ...WebSearchOption) *WebSearchTool {
	t := &WebSearchTool{
		client:    &http.Client{Timeout: webTimeout},
		searchURL: defaultSearchURL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *WebSearchTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "web_search",
		Description: "Search the web and return a list of result titles, URLs, and snippets.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
			"num_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default 5, max 10).",
			},
		}, "query"),
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	limit := defaultSearchResults
	if v, ok := args["num_results"].(float64); ok && v > 0 {
		limit = int(v)
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	results := parseSearchResults(string(body), limit)
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.title, r.url)
		if r.snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

func parseSearchResults(page string, limit int) []searchResult {
	links := resultLinkPattern.FindAllStringSubmatch(page, -1)
	snippets := resultSnippetPattern.FindAllStringSubmatch(page, -1)

	results := make([]searchResult, 0, limit)
	for i, link := range links {
		if len(results) >= limit {
			break
		}
		target := resolveRedirect(html.UnescapeString(link[1]))
		title := strings.TrimSpace(stripTags(link[2]))
		if target == "" || title == "" {
			continue
		}
		r := searchResult{title: title, url: target}
		if i < len(snippets) {
			r.snippet = strings.TrimSpace(stripTags(snippets[i][1]))
		}
		results = append(results, r)
	}
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	return raw
}

func stripTags(fragment string) string {
	cleaned := scriptStylePattern.ReplaceAllString(fragment, " ")
	cleaned = tagPattern.ReplaceAllString(cleaned, " ")
	cleaned = html.UnescapeString(cleaned)
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// FetchWebPageTool downloads a page and returns its readable text, capped
// to keep the model context small.
type FetchWebPageTool struct {
	client *http.Client
}

var _ Tool = (*FetchWebPageTool)(nil)

func NewFetchWebPageTool(client *http.Client) *FetchWebPageTool {
	if client == nil {
		client = &http.Client{Timeout: webTimeout}
	}
	return &FetchWebPageTool{client: client}
}

func (t *FetchWebPageTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "fetch_web_page",
		Description: "Fetch a web page by URL and return its plain-text content (truncated).",
		Parameters: contractx.ObjectSchema(map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The http(s) URL to fetch.",
			},
		}, "url"),
	}
}

func (t *FetchWebPageTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, _ := args["url"].(string)
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	text := pageText(string(body))
	if text == "" {
		return "The page contains no readable text.", nil
	}
	if len(text) > maxPageText {
		text = text[:maxPageText] + "\n[truncated]"
	}
	return text, nil
}

func pageText(page string) string {
	cleaned := scriptStylePattern.ReplaceAllString(page, "\n")
	cleaned = tagPattern.ReplaceAllString(cleaned, "\n")
	cleaned = html.UnescapeString(cleaned)
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")

	lines := strings.Split(cleaned, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	out := strings.Join(kept, "\n")
	return strings.TrimSpace(blankLinesPattern.ReplaceAllString(out, "\n\n"))
}
