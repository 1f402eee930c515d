// Package parser extracts links and nested metadata blocks from passage text.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/wintermute/internal/models"
)

var linkRe = regexp.MustCompile(`\[\[[^\r\n]+?\]\]`)

// Arrow forms separating display text from target inside a link. Passage
// text read from published HTML carries the escaped form.
var arrows = []string{"->", "-&gt;"}

// ExtractLinks returns every [[...]] link in text, in order of appearance.
// It returns nil when text holds no link span.
func ExtractLinks(text string) []models.Link {
	spans := linkRe.FindAllString(text, -1)
	if len(spans) == 0 {
		return nil
	}
	out := make([]models.Link, 0, len(spans))
	for _, span := range spans {
		out = append(out, parseLink(span[2:len(span)-2]))
	}
	return out
}

// parseLink splits the inside of a [[...]] span at its first arrow:
// [[display->target]] or [[target]].
func parseLink(inner string) models.Link {
	at, width := -1, 0
	for _, a := range arrows {
		if i := strings.Index(inner, a); i >= 0 && (at < 0 || i < at) {
			at, width = i, len(a)
		}
	}
	if at < 0 {
		return models.Link{Name: inner, Link: inner}
	}
	return models.Link{Name: inner[:at], Link: inner[at+width:]}
}
