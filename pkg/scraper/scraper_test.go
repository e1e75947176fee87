package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faqHTML = `
<html>
<head><title>Support</title></head>
<body>
	<div class="support-list-section">
		<h5>Payments</h5>
		<ul>
			<li>
				<a class="title">How do I make a payment?</a>
				<span><p>You can pay online through the app.</p><ul><li>Bank transfer</li></ul></span>
			</li>
			<li>
				<a class="title">When is my payment due?</a>
				<span><p>Payments are due on the first of each month.</p></span>
			</li>
		</ul>
	</div>
</body>
</html>`

const articleHTML = `
<html>
<head><title>Test Page</title></head>
<body>
	<nav>Home | About | Contact</nav>
	<main>
		<h1>Test Content</h1>
		<p>This is a test paragraph with enough substance to clear the minimum
		content threshold used by the extraction layer. It describes product
		features in some detail so readability treats it as the main body.</p>
		<p>A second paragraph keeps the extracted region comfortably long.</p>
	</main>
	<footer>Copyright</footer>
</body>
</html>`

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		Concurrency:    3,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.Concurrency, s.config.Concurrency)
	assert.Equal(t, config.RateLimit, s.config.RateLimit)
}

func TestShouldProcessURL(t *testing.T) {
	s, err := NewWithConfig(ScraperConfig{
		IgnorePatterns: []string{"/ignore/", "private"},
	})
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://example.com/private-area", false},
		{"relative/path", false},
		{"::not-a-url", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.shouldProcessURL(tt.url))
		})
	}
}

func TestScrapeAllWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if strings.Contains(r.URL.Path, "support") {
			w.Write([]byte(faqHTML))
			return
		}
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	var progressed int32
	s, err := NewWithConfig(ScraperConfig{
		Concurrency: 2,
		RateLimit:   50,
		OnProgress:  func(string) { atomic.AddInt32(&progressed, 1) },
	})
	require.NoError(t, err)

	docs, err := s.ScrapeAll(context.Background(), []string{
		server.URL + "/page",
		server.URL + "/support",
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&progressed))

	byURL := map[string]int{}
	for i, doc := range docs {
		byURL[doc.URL] = i
	}

	article := docs[byURL[server.URL+"/page"]]
	assert.Equal(t, "Test Page", article.Title)
	assert.Contains(t, article.Content, "Test Content")
	assert.Contains(t, article.Content, "test paragraph")
	assert.NotContains(t, article.Content, "Home | About")
	assert.Empty(t, article.Sections)

	support := docs[byURL[server.URL+"/support"]]
	require.Len(t, support.Sections, 2)
	assert.Contains(t, support.Sections[0], "Section: Payments")
	assert.Contains(t, support.Sections[0], "Question: How do I make a payment")
	assert.Contains(t, support.Sections[0], "You can pay online")
	assert.Equal(t, true, support.Metadata["structured"])
}

func TestScrapeAllSkipsFailingPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{Concurrency: 1, RateLimit: 50})
	require.NoError(t, err)

	docs, err := s.ScrapeAll(context.Background(), []string{
		server.URL + "/missing",
		server.URL + "/ok",
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, server.URL+"/ok", docs[0].URL)
}

func TestScrapeAllSkipsThinPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Thin</title></head><body><p>tiny</p></body></html>`))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{Concurrency: 1, RateLimit: 50})
	require.NoError(t, err)

	docs, err := s.ScrapeAll(context.Background(), []string{server.URL})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestParseFAQIgnoresUnstructuredPages(t *testing.T) {
	_, sections := parseFAQ([]byte(articleHTML))
	assert.Empty(t, sections)
}

func TestCleanText(t *testing.T) {
	in := "line   with\tspaces\n\n\n\n\nnext   line\n"
	out := cleanText(in)
	assert.Equal(t, "line with spaces\n\nnext line", out)
}
