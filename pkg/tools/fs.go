// Package tools provides the built-in workspace tools the agent loop can
// expose to the model: file read/write, directory listing, and content
// search, all confined to a sandboxed filesystem root.
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrReadOnly is returned for writes through a read-only filesystem.
var ErrReadOnly = errors.New("filesystem is read-only")

// FS is the capability surface the filesystem tools operate on. Paths are
// relative to the filesystem's root; implementations must refuse paths that
// escape it.
type FS interface {
	// Read returns the full content of a file.
	Read(path string) (string, error)
	// Write replaces a file's content, creating parent directories as
	// needed.
	Write(path, content string) error
	// List returns a directory's entries in name order, directories
	// marked with a trailing slash.
	List(path string) ([]string, error)
	// Search matches a regular expression against every text file under
	// the root and returns "path:line:text" lines.
	Search(pattern string) (string, error)
}

// Local is an FS rooted at a directory on the host filesystem.
type Local struct {
	root string
}

// NewLocal creates a filesystem rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: filepath.Clean(dir)}
}

// resolve sanitizes a relative path and joins it onto the root. Absolute
// paths and any path that cleans to outside the root are rejected; interior
// ".." segments that stay inside are allowed.
func (l *Local) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", path)
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", path)
	}
	return filepath.Join(l.root, cleaned), nil
}

// Read returns the content of a file under the root.
func (l *Local) Read(path string) (string, error) {
	full, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err //nolint:wrapcheck // Callers match on fs.ErrNotExist
	}
	return string(data), nil
}

// Write replaces the content of a file under the root, creating parent
// directories as needed.
func (l *Local) Write(path, content string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// List returns a directory's entries in name order. Directories are marked
// with a trailing slash. An empty path lists the root.
func (l *Local) List(path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, err //nolint:wrapcheck // Callers match on fs.ErrNotExist
	}
	entries := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return entries, nil
}

// Search applies a regular expression to every text file under the root.
// Each match produces one "path:line:text" line; binary files and files
// that are not valid UTF-8 are skipped.
func (l *Local) Search(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid search pattern: %w", err)
	}

	var out strings.Builder
	walkErr := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err //nolint:wrapcheck // Surfaced as the search error
		}
		if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
			return nil // Not a text file
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err //nolint:wrapcheck // Surfaced as the search error
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&out, "%s:%d:%s\n", rel, i+1, line)
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("searching workspace: %w", walkErr)
	}
	return out.String(), nil
}

// readOnly wraps an FS and refuses writes.
type readOnly struct {
	FS
}

// ReadOnly returns a view of fsys that fails every write with ErrReadOnly.
func ReadOnly(fsys FS) FS {
	return readOnly{FS: fsys}
}

func (r readOnly) Write(_, _ string) error {
	return ErrReadOnly
}
