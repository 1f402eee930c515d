// Package testutil provides shared test helpers for setting up story
// libraries and index databases.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/starford/wintermute/internal/index"
	"github.com/starford/wintermute/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wintermute-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a storage provider.
func TestLibrary(t *testing.T) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// Passage describes one <tw-passagedata> element for StoryHTML.
type Passage struct {
	PID  string
	Name string
	Tags string
	Text string
}

// StoryHTML renders a minimal published story page. Passage text is
// inserted as given, so callers escape markup themselves.
func StoryHTML(name, startnode string, passages ...Passage) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(name)
	sb.WriteString("</title></head><body>\n")
	fmt.Fprintf(&sb, `<tw-storydata name=%q startnode=%q creator="Twine" creator-version="2.6.2" ifid="D674C58C-DEFA-4F70-B7A2-27742230C0FC" format="Harlowe" format-version="3.3.8" options="" hidden>`, name, startnode)
	sb.WriteString("\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, `<tw-passagedata pid=%q name=%q tags=%q position="%d,100" size="100,100">%s</tw-passagedata>`, p.PID, p.Name, p.Tags, (i+1)*100, p.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("</tw-storydata>\n</body></html>\n")
	return sb.String()
}
