//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/wintermute/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the passages table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ []models.Passage) error {
	// Passage text is already stored in the passages table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based passage search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT p.story_path, s.name, p.pid, p.name, substr(p.text, 1, 200)
		FROM passages p
		JOIN stories s ON s.path = p.story_path
		WHERE p.name LIKE ? OR p.text LIKE ? OR p.tags LIKE ?
		ORDER BY p.story_path, p.ord
		LIMIT ?
	`, like, like, like, limit)
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
