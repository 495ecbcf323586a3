package httpd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// FileStore hands out the full contents of a resource by its request path.
type FileStore interface {
	ReadFile(name string) ([]byte, error)
}

// DirStore serves files from a directory. Lookups go through os.Root, so
// symlinks or paths that resolve outside the directory fail to open.
type DirStore struct {
	dir  string
	root *os.Root
}

// OpenDirStore opens dir as a document root.
func OpenDirStore(dir string) (*DirStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open document root %s: %w", dir, err)
	}
	return &DirStore{dir: dir, root: root}, nil
}

// Dir returns the directory the store was opened on.
func (s *DirStore) Dir() string { return s.dir }

// ReadFile returns the bytes of name, a request path such as "/a/b.html".
// Directories are reported as fs.ErrNotExist.
//
// The length of the returned slice is what gets advertised as
// Content-Length, so a file truncated mid-read still yields a
// self-consistent response.
func (s *DirStore) ReadFile(name string) ([]byte, error) {
	rel := strings.TrimLeft(name, "/")
	if rel == "" {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	f, err := s.root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.ReadAll(f)
}

// Close releases the directory handle.
func (s *DirStore) Close() error {
	return s.root.Close()
}
