package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const searchResultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="/l/?uddg=https%3A%2F%2Fexample.com%2Fone">First <b>Result</b></a>
  <a class="result__snippet">Snippet about the first result.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/two">Second Result</a>
  <a class="result__snippet">Another snippet here.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.net/three">Third Result</a>
</div>
</body></html>`

func TestWebSearchParsesResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostFormValue("q"); got != "garden party" {
			t.Errorf("query = %q, want garden party", got)
		}
		_, _ = w.Write([]byte(searchResultsPage))
	}))
	defer srv.Close()

	search := NewWebSearchTool(WithSearchURL(srv.URL), WithWebClient(srv.Client()))
	out, err := search.Execute(context.Background(), map[string]any{"query": "garden party"})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}

	if !strings.Contains(out, "First Result") {
		t.Fatalf("output missing first title: %q", out)
	}
	if !strings.Contains(out, "https://example.com/one") {
		t.Fatalf("redirect link not unwrapped: %q", out)
	}
	if !strings.Contains(out, "Snippet about the first result.") {
		t.Fatalf("output missing snippet: %q", out)
	}
	if !strings.Contains(out, "https://example.net/three") {
		t.Fatalf("output missing snippetless result: %q", out)
	}
}

func TestWebSearchHonoursResultLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchResultsPage))
	}))
	defer srv.Close()

	search := NewWebSearchTool(WithSearchURL(srv.URL), WithWebClient(srv.Client()))
	out, err := search.Execute(context.Background(), map[string]any{
		"query":       "anything",
		"num_results": float64(1),
	})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}
	if strings.Contains(out, "Second Result") {
		t.Fatalf("limit 1 should drop later results: %q", out)
	}
}

func TestWebSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	search := NewWebSearchTool()
	if _, err := search.Execute(context.Background(), map[string]any{"query": "  "}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestWebSearchReportsHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	search := NewWebSearchTool(WithSearchURL(srv.URL), WithWebClient(srv.Client()))
	if _, err := search.Execute(context.Background(), map[string]any{"query": "x"}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestFetchWebPageStripsMarkup(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Ignored</title>
<script>var junk = "should not appear";</script>
<style>body { color: red }</style></head>
<body><h1>Heading</h1><p>Body text with an &amp; entity.</p></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	fetch := NewFetchWebPageTool(srv.Client())
	out, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}

	if !strings.Contains(out, "Heading") || !strings.Contains(out, "Body text with an & entity.") {
		t.Fatalf("readable text missing: %q", out)
	}
	if strings.Contains(out, "junk") || strings.Contains(out, "color: red") {
		t.Fatalf("script/style content leaked: %q", out)
	}
}

func TestFetchWebPageTruncatesLongPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<body>" + strings.Repeat("word ", 5000) + "</body>"))
	}))
	defer srv.Close()

	fetch := NewFetchWebPageTool(srv.Client())
	out, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}
	if !strings.HasSuffix(out, "[truncated]") {
		t.Fatal("long page should be truncated")
	}
	if len(out) > maxPageText+len("\n[truncated]") {
		t.Fatalf("output too long: %d bytes", len(out))
	}
}

func TestFetchWebPageRejectsBadScheme(t *testing.T) {
	t.Parallel()

	fetch := NewFetchWebPageTool(nil)
	for _, raw := range []string{"ftp://example.com/file", "file:///etc/passwd", "not a url at all"} {
		if _, err := fetch.Execute(context.Background(), map[string]any{"url": raw}); err == nil {
			t.Fatalf("expected error for url %q", raw)
		}
	}
}
