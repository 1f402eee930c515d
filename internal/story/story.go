// Package story assembles passages from markup nodes and resolves the
// links between them into a story graph.
package story

import (
	"strings"

	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/parser"
)

// Tag names of the Twine story markup.
const (
	StoryTag   = "tw-storydata"
	PassageTag = "tw-passagedata"
)

// Node is a parsed markup node supplied by a document reader.
type Node interface {
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)
	// InnerText returns the raw inner markup of the node.
	InnerText() string
	// Children returns the direct children with the given tag, in document order.
	Children(tag string) []Node
}

// Builder converts node trees into stories. The zero value uses the
// default property depth limit.
type Builder struct {
	Props parser.PropExtractor
}

// BuildPassage converts one passage node with the default Builder.
func BuildPassage(n Node) models.Passage {
	return Builder{}.BuildPassage(n)
}

// BuildStory converts a story root node with the default Builder.
func BuildStory(root Node) *models.Story {
	return Builder{}.BuildStory(root)
}

// BuildPassage reads the text and attributes of n and extracts its links
// and metadata. Links are left unresolved.
func (b Builder) BuildPassage(n Node) models.Passage {
	text := n.InnerText()
	return models.NewPassage(
		text,
		attr(n, "name"),
		attr(n, "pid"),
		parser.ExtractLinks(text),
		b.Props.Extract(text),
		parsePosition(attr(n, "position")),
		parseTags(attr(n, "tags")),
	)
}

// BuildStory converts every passage child of root, reads the story
// attributes and resolves all links against the passage names.
func (b Builder) BuildStory(root Node) *models.Story {
	children := root.Children(PassageTag)
	passages := make([]models.Passage, 0, len(children))
	for _, c := range children {
		passages = append(passages, b.BuildPassage(c))
	}

	attrs := models.StoryAttrs{
		Name:           attr(root, "name"),
		StartNode:      attr(root, "startnode"),
		Creator:        attr(root, "creator"),
		CreatorVersion: attr(root, "creator-version"),
		IFID:           attr(root, "ifid"),
	}
	return models.NewStory(ResolvePassages(passages, NewIndex(passages)), attrs)
}

// attr returns the attribute value, or "" when it is absent or empty.
func attr(n Node, name string) string {
	v, ok := n.Attr(name)
	if !ok {
		return ""
	}
	return v
}

// parsePosition reads "X,Y". Fields past the second are ignored and a
// missing Y is "".
func parsePosition(v string) models.Position {
	if v == "" {
		return models.Position{}
	}
	fields := strings.Split(v, ",")
	pos := models.Position{X: fields[0]}
	if len(fields) > 1 {
		pos.Y = fields[1]
	}
	return pos
}

func parseTags(v string) []string {
	return strings.Fields(v)
}
