package scraper

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// extractor strips boilerplate and produces plain text. Readability
// finds the main content region; the markdown conversion keeps tables
// and lists legible once tags are gone. Pages readability cannot
// handle fall back to a goquery selector walk.
type extractor struct {
	converter *md.Converter
	minLength int
}

func newExtractor(minLength int) *extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &extractor{
		converter: converter,
		minLength: minLength,
	}
}

func (e *extractor) extract(pageURL string, body []byte) (title, text string) {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil && article.Content != "" {
		if markdown, convErr := e.converter.ConvertString(article.Content); convErr == nil {
			cleaned := cleanText(markdown)
			if len(cleaned) >= e.minLength {
				return article.Title, cleaned
			}
		}
	}

	return e.fallback(body)
}

// fallback mirrors the selector probing used before readability was
// wired in: look for a recognizable main-content container, else take
// the whole body text.
func (e *extractor) fallback(body []byte) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").Text())

	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return title, cleanText(content)
}

func cleanText(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
