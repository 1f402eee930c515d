package parser

import (
	"sort"
	"strings"

	"github.com/starford/wintermute/internal/models"
)

// DefaultMaxPropDepth bounds the nesting of {{key}} blocks that is parsed
// into maps. Values at the limit are kept as literal text.
const DefaultMaxPropDepth = 256

const (
	tagOpen  = "{{"
	tagClose = "}}"
)

var newlineStripper = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// PropExtractor parses {{key}}value{{/key}} blocks.
type PropExtractor struct {
	// MaxDepth is the number of block levels parsed into maps.
	// Zero or negative means DefaultMaxPropDepth.
	MaxDepth int
}

// ExtractProps parses metadata blocks in text with the default depth limit.
// It returns nil when text holds no block.
func ExtractProps(text string) *models.PropertyMap {
	return PropExtractor{}.Extract(text)
}

// tag is one {{body}} occurrence in a text span.
type tag struct {
	pos  int // offset of "{{"
	end  int // offset just past "}}"
	body string
}

// block is a matched {{key}}value{{/key}} triple.
type block struct {
	key   string
	value string
}

// lexTags returns every {{body}} tag in text ordered by position. A tag
// starts at every "{{" (overlapping starts included) and ends at the first
// following "}}"; bodies that are empty or contain "{{" are not tags.
func lexTags(text string) []tag {
	var tags []tag
	// Absolute offsets of the next "}}" and "{{" at or after the current
	// body start. Both only move forward, so the scan stays linear.
	nextClose, nextOpen := -1, -1
	for i := 0; i+len(tagOpen) <= len(text); {
		j := strings.Index(text[i:], tagOpen)
		if j < 0 {
			break
		}
		start := i + j
		bodyStart := start + len(tagOpen)
		if nextClose < bodyStart {
			k := strings.Index(text[bodyStart:], tagClose)
			if k < 0 {
				break
			}
			nextClose = bodyStart + k
		}
		if nextOpen < bodyStart {
			nextOpen = len(text)
			if k := strings.Index(text[bodyStart:], tagOpen); k >= 0 {
				nextOpen = bodyStart + k
			}
		}
		if nextClose > bodyStart && nextOpen+len(tagOpen) > nextClose {
			tags = append(tags, tag{pos: start, end: nextClose + len(tagClose), body: text[bodyStart:nextClose]})
		}
		i = start + 1
	}
	return tags
}

// scanBlocks finds the top-level blocks of text, left to right. The value
// of a block is non-empty and ends at the first closing tag repeating the
// key; scanning resumes after that closing tag.
func scanBlocks(text string) []block {
	tags := lexTags(text)
	if len(tags) == 0 {
		return nil
	}

	// Positions of every tag body, for closing-tag lookup.
	byBody := make(map[string][]int, len(tags))
	for i, t := range tags {
		byBody[t.body] = append(byBody[t.body], i)
	}

	var out []block
	cursor := 0
	for _, open := range tags {
		if open.pos < cursor {
			continue
		}
		closers := byBody["/"+open.body]
		minPos := open.end + 1
		n := sort.Search(len(closers), func(i int) bool { return tags[closers[i]].pos >= minPos })
		if n == len(closers) {
			continue
		}
		closer := tags[closers[n]]
		out = append(out, block{key: open.body, value: text[open.end:closer.pos]})
		cursor = closer.end
	}
	return out
}

// frame is one nesting level being assembled on the explicit stack.
type frame struct {
	blocks []block
	next   int
	props  *models.PropertyMap
	depth  int
	key    string // key under which props lands in the parent frame
}

// Extract parses metadata blocks in text. It returns nil when text holds
// no block. Nested levels are assembled on an explicit stack, so input
// nesting never grows the call stack.
func (e PropExtractor) Extract(text string) *models.PropertyMap {
	maxDepth := e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPropDepth
	}

	blocks := scanBlocks(text)
	if len(blocks) == 0 {
		return nil
	}

	root := &frame{blocks: blocks, props: models.NewPropertyMap(), depth: 1}
	stack := []*frame{root}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next == len(f.blocks) {
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				stack[len(stack)-1].props.Set(f.key, models.Nested(f.props))
			}
			continue
		}

		b := f.blocks[f.next]
		f.next++
		value := newlineStripper.Replace(b.value)

		if f.depth < maxDepth {
			if nested := scanBlocks(value); len(nested) > 0 {
				stack = append(stack, &frame{
					blocks: nested,
					props:  models.NewPropertyMap(),
					depth:  f.depth + 1,
					key:    b.key,
				})
				continue
			}
		}
		f.props.Set(b.key, models.Text(value))
	}
	return root.props
}
