package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseFAQ extracts section/question/answer triples from a support
// page laid out as grouped FAQ lists. Each triple becomes one
// self-contained section so the question never gets separated from its
// answer by the chunker. Returns nothing when the page doesn't match
// the expected layout, letting the generic extractor take over.
func parseFAQ(body []byte) (title string, sections []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}

	title = strings.TrimSpace(doc.Find("title").Text())

	doc.Find("div.support-list-section").Each(func(_ int, section *goquery.Selection) {
		sectionName := strings.TrimSpace(section.Find("h5").First().Text())
		if sectionName == "" {
			sectionName = "Uncategorized"
		}

		section.Find("li").Each(func(_ int, item *goquery.Selection) {
			question := strings.TrimSpace(item.Find("a.title").First().Text())
			question = strings.TrimSpace(strings.TrimSuffix(question, "?"))
			if question == "" {
				return
			}

			var answerParts []string
			item.Find("span").First().Find("p, ul, ol").Each(func(_ int, el *goquery.Selection) {
				if text := strings.TrimSpace(el.Text()); text != "" {
					answerParts = append(answerParts, strings.Join(strings.Fields(text), " "))
				}
			})
			answer := strings.Join(answerParts, " ")
			if answer == "" {
				return
			}

			sections = append(sections,
				fmt.Sprintf("Section: %s\nQuestion: %s\nAnswer: %s", sectionName, question, answer))
		})
	})

	return title, sections
}
