package story

import "github.com/starford/wintermute/internal/models"

// Index maps passage names to pids. It is immutable once built.
type Index struct {
	pids map[string]string
}

// NewIndex indexes passages by name. When several passages share a name
// the last one in order wins.
func NewIndex(passages []models.Passage) Index {
	pids := make(map[string]string, len(passages))
	for _, p := range passages {
		pids[p.Name] = p.PID
	}
	return Index{pids: pids}
}

// Lookup returns the pid of the passage named name.
func (idx Index) Lookup(name string) (string, bool) {
	pid, ok := idx.pids[name]
	return pid, ok
}

// Len returns the number of distinct names.
func (idx Index) Len() int {
	return len(idx.pids)
}

// ResolveLink points l at the passage named by its target, or marks it
// broken when no such passage exists or that passage has no pid.
func ResolveLink(l models.Link, idx Index) models.Link {
	if pid, ok := idx.Lookup(l.Link); ok && pid != "" {
		return l.Resolved(pid)
	}
	return l.MarkBroken()
}

// ResolvePassages returns copies of passages with every link resolved.
// The input slice and its links are left untouched.
func ResolvePassages(passages []models.Passage, idx Index) []models.Passage {
	out := make([]models.Passage, len(passages))
	for i, p := range passages {
		links := make([]models.Link, len(p.Links))
		for j, l := range p.Links {
			links[j] = ResolveLink(l, idx)
		}
		out[i] = p.WithLinks(links)
	}
	return out
}
