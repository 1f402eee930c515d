package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/models"
)

// StoryRow represents a row in the stories table.
type StoryRow struct {
	Path           string
	Name           string
	IFID           string
	StartNode      string
	Creator        string
	CreatorVersion string
	Checksum       string
	Passages       int
	Broken         int
	UpdatedAt      time.Time
}

// SearchResult represents one passage hit.
type SearchResult struct {
	Path      string
	StoryName string
	PID       string
	Passage   string
	Snippet   string
}

// GraphNode is one passage in a story graph.
type GraphNode struct {
	Path string
	PID  string
	Name string
	Tags []string
}

// LinkRow is one indexed link between passages.
type LinkRow struct {
	Path       string
	SourcePID  string
	SourceName string
	Name       string
	Target     string
	TargetPID  string
	Broken     bool
}

// NewStoryRow fills a StoryRow from a converted story.
func NewStoryRow(path, sum string, s *models.Story, updatedAt time.Time) StoryRow {
	broken := 0
	for _, p := range s.Passages {
		for _, l := range p.Links {
			if l.Broken {
				broken++
			}
		}
	}
	return StoryRow{
		Path:           path,
		Name:           s.Name,
		IFID:           s.IFID,
		StartNode:      s.StartNode,
		Creator:        s.Creator,
		CreatorVersion: s.CreatorVersion,
		Checksum:       sum,
		Passages:       len(s.Passages),
		Broken:         broken,
		UpdatedAt:      updatedAt,
	}
}

// UpsertStory inserts or replaces a story with its passages, links and FTS
// entries within a transaction.
func (db *DB) UpsertStory(row StoryRow, s *models.Story) error {
	compiled, err := models.MarshalStory(s, false)
	if err != nil {
		return fmt.Errorf("index: marshal story: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO stories (path, name, ifid, startnode, creator, creator_version,
		                     checksum, passages, broken, compiled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name            = excluded.name,
			ifid            = excluded.ifid,
			startnode       = excluded.startnode,
			creator         = excluded.creator,
			creator_version = excluded.creator_version,
			checksum        = excluded.checksum,
			passages        = excluded.passages,
			broken          = excluded.broken,
			compiled        = excluded.compiled,
			updated_at      = excluded.updated_at
	`, row.Path, row.Name, row.IFID, row.StartNode, row.Creator, row.CreatorVersion,
		row.Checksum, row.Passages, row.Broken, string(compiled), row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert story: %w", err)
	}

	// Replace passages and links: delete old then bulk insert.
	if err := clearStory(tx, row.Path, "links", "passages"); err != nil {
		return err
	}

	pstmt, err := tx.Prepare(`INSERT INTO passages (story_path, ord, pid, name, tags, text) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare passage insert: %w", err)
	}
	defer pstmt.Close()
	lstmt, err := tx.Prepare(`INSERT INTO links (story_path, source_pid, source_name, name, target, target_pid, broken) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer lstmt.Close()

	for i, p := range s.Passages {
		tagsJSON, _ := json.Marshal(p.Tags)
		if _, err := pstmt.Exec(row.Path, i, p.PID, p.Name, string(tagsJSON), p.Text); err != nil {
			return fmt.Errorf("index: insert passage: %w", err)
		}
		for _, l := range p.Links {
			if _, err := lstmt.Exec(row.Path, p.PID, p.Name, l.Name, l.Link, l.PID, l.Broken); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, row.Path, s.Passages); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteStory removes a story, its passages, links and FTS entries.
func (db *DB) DeleteStory(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if err := clearStory(tx, path, "links", "passages"); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM stories WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete story: %w", err)
	}

	return tx.Commit()
}

// clearStory deletes the rows of path from each named child table.
func clearStory(tx *sql.Tx, path string, tables ...string) error {
	for _, table := range tables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE story_path = ?`, path); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	return nil
}

// GetChecksum returns the stored checksum for a story, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM stories WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed story by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM stories`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const storyColumns = `path, name, ifid, startnode, creator, creator_version, checksum, passages, broken, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStoryRow(s scanner, extra ...any) (StoryRow, error) {
	var r StoryRow
	dest := append([]any{
		&r.Path, &r.Name, &r.IFID, &r.StartNode, &r.Creator, &r.CreatorVersion,
		&r.Checksum, &r.Passages, &r.Broken, &r.UpdatedAt,
	}, extra...)
	err := s.Scan(dest...)
	return r, err
}

// GetStory returns the indexed row and the compiled story graph for path.
func (db *DB) GetStory(path string) (*StoryRow, *models.Story, error) {
	var compiled string
	row, err := scanStoryRow(db.conn.QueryRow(`SELECT `+storyColumns+`, compiled FROM stories WHERE path = ?`, path), &compiled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("index: get story: %w", err)
	}
	s, err := models.UnmarshalStory([]byte(compiled))
	if err != nil {
		return nil, nil, fmt.Errorf("index: decode story %s: %w", path, err)
	}
	return &row, s, nil
}

// ListStories returns a page of stories and the total count. sort is one of
// "path", "name" or "updated_at" (newest first).
func (db *DB) ListStories(limit, offset int, sort string) ([]StoryRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "path ASC"
	switch sort {
	case "name":
		order = "name COLLATE NOCASE ASC, path ASC"
	case "updated_at":
		order = "updated_at DESC, path ASC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM stories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count stories: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+storyColumns+` FROM stories ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list stories: %w", err)
	}
	defer rows.Close()

	var out []StoryRow
	for rows.Next() {
		r, err := scanStoryRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Graph returns the passages and links of the story at path, or of the
// whole library when path is empty.
func (db *DB) Graph(path string) ([]GraphNode, []LinkRow, error) {
	nrows, err := db.conn.Query(`
		SELECT story_path, pid, name, tags FROM passages
		WHERE ? = '' OR story_path = ?
		ORDER BY story_path, ord
	`, path, path)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer nrows.Close()

	var nodes []GraphNode
	for nrows.Next() {
		var n GraphNode
		var tags string
		if err := nrows.Scan(&n.Path, &n.PID, &n.Name, &tags); err != nil {
			return nil, nil, err
		}
		_ = json.Unmarshal([]byte(tags), &n.Tags)
		nodes = append(nodes, n)
	}
	if err := nrows.Err(); err != nil {
		return nil, nil, err
	}

	links, err := db.queryLinks(`WHERE ? = '' OR story_path = ?`, path, path)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	return nodes, links, nil
}

// BrokenLinks returns every link without a target passage, in the story at
// path or the whole library when path is empty.
func (db *DB) BrokenLinks(path string) ([]LinkRow, error) {
	links, err := db.queryLinks(`WHERE broken = 1 AND (? = '' OR story_path = ?)`, path, path)
	if err != nil {
		return nil, fmt.Errorf("index: broken links: %w", err)
	}
	return links, nil
}

// Backlinks returns the links in the story at path that target the passage
// named name.
func (db *DB) Backlinks(path, name string) ([]LinkRow, error) {
	links, err := db.queryLinks(`WHERE story_path = ? AND target = ?`, path, name)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	return links, nil
}

func (db *DB) queryLinks(where string, args ...any) ([]LinkRow, error) {
	rows, err := db.conn.Query(`
		SELECT story_path, source_pid, source_name, name, target, target_pid, broken
		FROM links `+where+`
		ORDER BY story_path, rowid
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.Path, &l.SourcePID, &l.SourceName, &l.Name, &l.Target, &l.TargetPID, &l.Broken); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
