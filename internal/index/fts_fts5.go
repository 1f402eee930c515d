//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/wintermute/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
			story_path UNINDEXED,
			pid UNINDEXED,
			name,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path string, passages []models.Passage) error {
	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	for _, p := range passages {
		_, err := tx.Exec(`INSERT INTO passages_fts (story_path, pid, name, text, tags) VALUES (?, ?, ?, ?, ?)`,
			path, p.PID, p.Name, p.Text, strings.Join(p.Tags, " "))
		if err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM passages_fts WHERE story_path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text passage search and returns matching
// results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.story_path,
		       s.name,
		       f.pid,
		       f.name,
		       snippet(passages_fts, 3, '<b>', '</b>', '...', 64)
		FROM passages_fts f
		JOIN stories s ON s.path = f.story_path
		WHERE passages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.StoryName, &r.PID, &r.Passage, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
