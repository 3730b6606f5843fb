package pagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// Store reads and writes the inner HTML of an element identified by id.
type Store interface {
	ReadFragment(ctx context.Context, pageID, anchorID string) (string, error)
	WriteFragment(ctx context.Context, pageID, anchorID, html string) error
}

// FSStore serves pages from a directory tree. A page id is a slash path
// relative to Root. Writes to one page are serialized and replace the file
// atomically.
type FSStore struct {
	Root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFSStore creates an FSStore rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *FSStore) path(pageID string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(pageID))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", eris.Errorf("pagestore: page %q escapes the site root", pageID)
	}
	return filepath.Join(s.Root, clean), nil
}

func (s *FSStore) lock(pageID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[pageID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[pageID] = l
	}
	return l
}

// ReadFragment implements Store.
func (s *FSStore) ReadFragment(ctx context.Context, pageID, anchorID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(pageID)
	if err != nil {
		return "", err
	}
	doc, err := os.ReadFile(p)
	if err != nil {
		return "", eris.Wrapf(err, "pagestore: read %s", pageID)
	}
	start, end, err := locate(doc, anchorID)
	if err != nil {
		return "", err
	}
	return string(doc[start:end]), nil
}

// WriteFragment implements Store.
func (s *FSStore) WriteFragment(ctx context.Context, pageID, anchorID, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(pageID)
	if err != nil {
		return err
	}

	l := s.lock(pageID)
	l.Lock()
	defer l.Unlock()

	info, err := os.Stat(p)
	if err != nil {
		return eris.Wrapf(err, "pagestore: stat %s", pageID)
	}
	doc, err := os.ReadFile(p)
	if err != nil {
		return eris.Wrapf(err, "pagestore: read %s", pageID)
	}
	out, err := splice(doc, anchorID, html)
	if err != nil {
		return err
	}
	return writeAtomic(p, out, info.Mode().Perm())
}

// writeAtomic writes data to a temp file beside path and renames it over
// path.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "pagestore: create temp file")
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "pagestore: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "pagestore: close temp file")
	}
	if err := os.Chmod(name, perm); err != nil {
		return eris.Wrap(err, "pagestore: chmod temp file")
	}
	if err := os.Rename(name, path); err != nil {
		return eris.Wrapf(err, "pagestore: replace %s", path)
	}
	return nil
}
