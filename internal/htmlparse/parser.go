// Package htmlparse is the thin HTML-parser glue the spec treats as an
// external collaborator (spec.md section 1: "The HTML parser (extracts
// links and text from bytes)"). Grounded on the teacher's
// internal/fetcher.ContentExtractor: goquery, preferring <article> text
// over a stripped <body> fallback, plus an <a href> link sweep the
// teacher's extractor doesn't need (its crawler delegates link discovery
// to colly) but this scheduler-centric repo does, since link discovery
// feeds directly back into writer.AddURLs.
package htmlparse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements stripped before extracting body text,
// identical to the teacher's extractor.
const nonContentSelectors = "script, style, nav, header, footer"

// Extracted holds the links and text pulled from one fetched page.
type Extracted struct {
	Links []string
	Text  string
	Title string
}

// Parser extracts links and text from HTML bytes.
type Parser struct{}

// New builds a Parser. It holds no state; goquery documents are parsed
// fresh per call.
func New() *Parser {
	return &Parser{}
}

// Extract parses body as HTML rooted at pageURL (used to resolve relative
// links) and returns every distinct absolute http(s) link plus the page's
// extracted text.
func (p *Parser) Extract(pageURL string, body []byte) (Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extracted{}, fmt.Errorf("htmlparse: parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Extracted{}, fmt.Errorf("htmlparse: parse page url: %w", err)
	}

	return Extracted{
		Links: extractLinks(doc, base),
		Text:  extractBodyText(doc),
		Title: extractTitle(doc),
	}, nil
}

// extractLinks resolves every <a href> against base and keeps only
// distinct, absolute http(s) URLs.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})

	return links
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}
	return ""
}

// extractBodyText prefers <article> content, falling back to <body> with
// non-content elements stripped, identical to the teacher's extractor.
func extractBodyText(doc *goquery.Document) string {
	article := doc.Find("article").First()
	if article.Length() > 0 {
		article.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(article.Text())
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(body.Text())
	}

	return ""
}
