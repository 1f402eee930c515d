// Package document reads published Twine HTML into a markup tree the story
// builder can walk.
package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/story"
)

// ErrNoStoryData is returned when the input holds no <tw-storydata> element.
var ErrNoStoryData = fmt.Errorf("document: no <%s> element: %w", story.StoryTag, apperr.ErrInvalidStory)

var (
	storyOpen  = []byte("<" + story.StoryTag)
	storyClose = []byte("</" + story.StoryTag + ">")
)

// textEscaper re-escapes character data the way a browser serializes
// innerHTML.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")

// writeSettings keep quotes in text and attribute values unescaped.
var writeSettings = etree.WriteSettings{
	CanonicalText:    true,
	CanonicalAttrVal: true,
}

// Element is an etree element exposed as a story.Node.
type Element struct {
	el *etree.Element
}

var _ story.Node = (*Element)(nil)

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	a := e.el.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// Children returns the direct child elements with the given tag.
func (e *Element) Children(tag string) []story.Node {
	els := e.el.SelectElements(tag)
	out := make([]story.Node, 0, len(els))
	for _, c := range els {
		out = append(out, &Element{el: c})
	}
	return out
}

// InnerText serializes the element content as markup.
func (e *Element) InnerText() string {
	var sb strings.Builder
	for _, tok := range e.el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(textEscaper.Replace(t.Data))
		case *etree.Comment:
			sb.WriteString("<!--")
			sb.WriteString(t.Data)
			sb.WriteString("-->")
		case *etree.Element:
			doc := etree.NewDocument()
			doc.WriteSettings = writeSettings
			doc.SetRoot(t.Copy())
			if s, err := doc.WriteToString(); err == nil {
				sb.WriteString(s)
			}
		}
	}
	return sb.String()
}

// Tag returns the element tag name.
func (e *Element) Tag() string {
	return e.el.Tag
}

// Parse reads a published story or a story library archive and returns its
// first <tw-storydata> element. Everything outside that element (page
// scripts, styles, the story format runtime) is never parsed.
func Parse(r io.Reader) (*Element, error) {
	utf8, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("document: detect charset: %w", err)
	}
	data, err := io.ReadAll(utf8)
	if err != nil {
		return nil, fmt.Errorf("document: read: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes is Parse over UTF-8 encoded data.
func ParseBytes(data []byte) (*Element, error) {
	region := storyRegion(data)
	if region == nil {
		return nil, ErrNoStoryData
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        xml.HTMLEntity,
		ValidateInput: false,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(blankRawText(region)); err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", story.StoryTag, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != story.StoryTag {
		return nil, ErrNoStoryData
	}
	return &Element{el: root}, nil
}

// storyRegion cuts the first <tw-storydata>...</tw-storydata> span out of
// data. An unterminated element runs to the end of the input.
func storyRegion(data []byte) []byte {
	lower := bytes.ToLower(data)
	start := indexTag(lower, storyOpen)
	if start < 0 {
		return nil
	}
	end := bytes.Index(lower[start:], storyClose)
	if end < 0 {
		return data[start:]
	}
	return data[start : start+end+len(storyClose)]
}

// rawTextTags hold script or style source, which a browser never reads as
// markup.
var rawTextTags = []string{"script", "style"}

// blankRawText drops the content of every raw text element in data so that
// source such as "a < b" cannot break the markup parse.
func blankRawText(data []byte) []byte {
	for _, name := range rawTextTags {
		data = blankElementContent(data, name)
	}
	return data
}

// blankElementContent removes everything between <name ...> and the next
// </name. An unterminated element is blanked to the end of data.
func blankElementContent(data []byte, name string) []byte {
	open := []byte("<" + name)
	closeTag := []byte("</" + name)
	lower := bytes.ToLower(data)

	var out []byte
	last, off := 0, 0
	for off < len(data) {
		i := indexTag(lower[off:], open)
		if i < 0 {
			break
		}
		gt := bytes.IndexByte(lower[off+i:], '>')
		if gt < 0 {
			break
		}
		contentStart := off + i + gt + 1
		if lower[contentStart-2] == '/' {
			off = contentStart
			continue
		}
		contentEnd := len(data)
		if end := bytes.Index(lower[contentStart:], closeTag); end >= 0 {
			contentEnd = contentStart + end
		}
		out = append(out, data[last:contentStart]...)
		last, off = contentEnd, contentEnd
	}
	if out == nil {
		return data
	}
	return append(out, data[last:]...)
}

// indexTag finds open followed by whitespace, '>' or '/'.
func indexTag(data, open []byte) int {
	off := 0
	for {
		i := bytes.Index(data[off:], open)
		if i < 0 {
			return -1
		}
		at := off + i
		next := at + len(open)
		if next < len(data) {
			switch data[next] {
			case ' ', '\t', '\n', '\r', '\f', '>', '/':
				return at
			}
		}
		off = next
	}
}

// Convert parses r and builds its story with b.
func Convert(r io.Reader, b story.Builder) (*models.Story, error) {
	root, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return b.BuildStory(root), nil
}

// ConvertBytes is Convert over UTF-8 encoded data.
func ConvertBytes(data []byte, b story.Builder) (*models.Story, error) {
	root, err := ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return b.BuildStory(root), nil
}
