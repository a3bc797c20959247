package store

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// normalizeSnippet rewrites HTML snippet content to markdown so
// captured pages are readable as context. Failures keep the raw
// content; normalization is best effort.
func normalizeSnippet(src *types.Source, log zerolog.Logger) {
	if src.Type != types.SourceTypeSnippet || src.Content == "" {
		return
	}
	if !strings.Contains(strings.ToLower(src.ContentType), "text/html") {
		return
	}

	if src.Description == "" {
		if title := htmlTitle(src.Content); title != "" {
			src.Description = title
		}
	}

	converted, err := convertHTMLToMarkdown(src.Content)
	if err != nil || strings.TrimSpace(converted) == "" {
		converted, err = extractTextFromHTML(src.Content)
		if err != nil || strings.TrimSpace(converted) == "" {
			log.Warn().Str("name", src.Name).Err(err).Msg("keeping raw HTML snippet content")
			return
		}
	}

	src.Content = converted
	src.ContentType = "text/markdown"
}

// convertHTMLToMarkdown converts HTML content to Markdown format.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})

	converter.Remove("script", "style", "meta", "link")

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	return markdown, nil
}

// extractTextFromHTML extracts plain text, dropping scripts, styles,
// and other non-content elements.
func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, object, embed").Remove()

	return strings.TrimSpace(doc.Text()), nil
}

func htmlTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
