package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/checksum"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

const storyHTML = `<tw-storydata name="S"><tw-passagedata pid="1" name="A">a</tw-passagedata></tw-storydata>`

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("story.html", []byte(storyHTML)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("story.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != storyHTML {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("a/b/c.html", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("del.html", []byte("bye"))
	if err := s.Delete("del.html"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.html")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read after delete: err = %v, want ErrNotExist", err)
	}
}

func TestMove(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("old.html", []byte("data"))
	if err := s.Move("old.html", "sub/new.html"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.html")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.html"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.html", []byte("a"))
	_ = s.Write("sub/b.HTM", []byte("b"))
	_ = s.Write("readme.txt", []byte("not a story"))
	_ = s.Write(".hidden.html", []byte("skip"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	byPath := map[string]string{}
	for _, it := range items {
		byPath[it.Path] = it.Checksum
	}
	if byPath["a.html"] != checksum.Sum([]byte("a")) {
		t.Errorf("checksum for a.html = %q", byPath["a.html"])
	}
	if _, ok := byPath["sub/b.HTM"]; !ok {
		t.Errorf("sub/b.HTM missing from %v", byPath)
	}
}

func TestIsStoryFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.html":   true,
		"a.HTM":    true,
		"a.htm":    true,
		"a.md":     false,
		"html":     false,
		"a.html.x": false,
	} {
		if got := IsStoryFile(name); got != want {
			t.Errorf("IsStoryFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.html",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Read(%q): err = %v, want ErrInvalidPath", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("atomic.html", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.html", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.html")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".wintermute-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "wintermute-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
