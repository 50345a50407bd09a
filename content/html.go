// Package content turns structured source values into translatable content
// items.
package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ZaguanLabs/dyntrans"
	"golang.org/x/net/html"
)

// IgnoredTags contains HTML tags whose text should not be translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
}

// HTMLExtractor flattens rich-text HTML fields into content items, one per
// text node, so rich-text content flows through the same coordination and
// gap-filling path as plain fields. Applying translations back into markup
// is the rendering layer's job, not this package's.
type HTMLExtractor struct {
	ignoredTags map[string]bool
}

// NewHTMLExtractor creates an extractor with the default ignored tags.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{ignoredTags: IgnoredTags}
}

// NewHTMLExtractorWithIgnoredTags creates an extractor with custom ignored tags.
func NewHTMLExtractorWithIgnoredTags(tags []string) *HTMLExtractor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLExtractor{ignoredTags: ignored}
}

// Extract parses one HTML-valued field and returns a content item per
// translatable text node. Item IDs are the field's content ID suffixed with
// the node's document-order ordinal, so they stay stable while surrounding
// markup is untouched. Elements under an ignored tag or carrying a
// data-no-translate attribute are skipped.
func (e *HTMLExtractor) Extract(contentType, contentID, fragment string) ([]dyntrans.ContentItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parsing html field %s/%s: %w", contentType, contentID, err)
	}

	var items []dyntrans.ContentItem
	ordinal := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if e.ignoredTags[strings.ToLower(n.Data)] {
				return
			}
			for _, attr := range n.Attr {
				if attr.Key == "data-no-translate" {
					return
				}
			}
		}

		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				items = append(items, dyntrans.ContentItem{
					ContentType: contentType,
					ContentID:   fmt.Sprintf("%s#%d", contentID, ordinal),
					Text:        trimmed,
				})
				ordinal++
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	doc.Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			walk(n)
		}
	})

	return items, nil
}
