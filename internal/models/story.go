// Package models defines the domain types for Wintermute.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Story is the normalized JSON graph of one Twine story.
type Story struct {
	Passages       []Passage `json:"passages"`
	Name           string    `json:"name"`
	StartNode      string    `json:"startnode"`
	Creator        string    `json:"creator"`
	CreatorVersion string    `json:"creatorVersion"`
	IFID           string    `json:"ifid"`
}

// StoryAttrs holds the story-level attributes read from the root node.
type StoryAttrs struct {
	Name           string
	StartNode      string
	Creator        string
	CreatorVersion string
	IFID           string
}

// NewStory assembles a complete story from already resolved passages.
func NewStory(passages []Passage, attrs StoryAttrs) *Story {
	if passages == nil {
		passages = []Passage{}
	}
	return &Story{
		Passages:       passages,
		Name:           attrs.Name,
		StartNode:      attrs.StartNode,
		Creator:        attrs.Creator,
		CreatorVersion: attrs.CreatorVersion,
		IFID:           attrs.IFID,
	}
}

// Passage is one node of the story graph.
type Passage struct {
	Text     string       `json:"text"`
	Links    []Link       `json:"links"`
	Props    *PropertyMap `json:"props"`
	Name     string       `json:"name"`
	PID      string       `json:"pid"`
	Position Position     `json:"position"`
	Tags     []string     `json:"tags"`
}

// NewPassage builds a passage from extracted pieces. Absent links, props
// and tags are replaced by their empty defaults so the public shape is
// always concrete.
func NewPassage(text, name, pid string, links []Link, props *PropertyMap, pos Position, tags []string) Passage {
	if links == nil {
		links = []Link{}
	}
	if props == nil {
		props = NewPropertyMap()
	}
	if tags == nil {
		tags = []string{}
	}
	return Passage{
		Text:     text,
		Links:    links,
		Props:    props,
		Name:     name,
		PID:      pid,
		Position: pos,
		Tags:     tags,
	}
}

// WithLinks returns a copy of p carrying links instead of its own.
func (p Passage) WithLinks(links []Link) Passage {
	p.Links = links
	return p
}

// Position is the editor position of a passage. Twine stores both
// coordinates as strings and they are kept that way.
type Position struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Link is a directed reference from a passage to another passage by name.
type Link struct {
	Name   string `json:"name"`
	Link   string `json:"link"`
	PID    string `json:"pid,omitempty"`
	Broken bool   `json:"broken,omitempty"`
}

// Resolved returns a copy of l pointing at pid.
func (l Link) Resolved(pid string) Link {
	return Link{Name: l.Name, Link: l.Link, PID: pid}
}

// MarkBroken returns a copy of l flagged as broken.
func (l Link) MarkBroken() Link {
	return Link{Name: l.Name, Link: l.Link, Broken: true}
}

// StoryMetadata is a lightweight representation returned by list operations.
type StoryMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalStory renders s as JSON without HTML escaping, so passage text is
// emitted as authored. indent selects two-space pretty printing.
func MarshalStory(s *Story, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalStory decodes a story previously produced by MarshalStory.
func UnmarshalStory(data []byte) (*Story, error) {
	var s Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
