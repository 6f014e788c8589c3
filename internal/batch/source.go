package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one file inside a Source.
type Entry struct {
	// Name is the path relative to the archive or folder root, using "/".
	Name string

	open func() (io.ReadCloser, error)
}

// ReadAll returns the full content of the entry.
func (e Entry) ReadAll() ([]byte, error) {
	rc, err := e.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Source is an ordered collection of files: a zip archive or a folder tree.
type Source interface {
	Entries() []Entry
	Close() error
}

// Open returns a folder Source for directories and a zip Source otherwise.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return OpenDir(path)
	}
	return OpenZip(path)
}

// =============================================================================
// ZIP ARCHIVES
// =============================================================================

type zipSource struct {
	entries []Entry
	closer  io.Closer
}

// OpenZip opens a zip archive on disk.
func OpenZip(path string) (Source, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	return &zipSource{entries: zipEntries(&rc.Reader), closer: rc}, nil
}

// NewZipSource reads an archive already held in memory, such as an upload.
func NewZipSource(data []byte) (Source, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return &zipSource{entries: zipEntries(r)}, nil
}

// zipEntries keeps the archive's central-directory order.
func zipEntries(r *zip.Reader) []Entry {
	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: f.Name, open: f.Open})
	}
	return entries
}

func (s *zipSource) Entries() []Entry { return s.entries }

func (s *zipSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// =============================================================================
// FOLDERS
// =============================================================================

type dirSource struct {
	entries []Entry
}

// OpenDir lists every regular file under root in lexical order.
func OpenDir(root string) (Source, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name: filepath.ToSlash(rel),
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder %s: %w", root, err)
	}

	return &dirSource{entries: entries}, nil
}

func (s *dirSource) Entries() []Entry { return s.entries }

func (s *dirSource) Close() error { return nil }

// isDocument reports whether an entry name has the .xml extension.
func isDocument(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".xml")
}
