package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

// FilesystemLoader resolves template names against one or more root
// directories, first match wins. Names are validated against path
// traversal before touching the filesystem.
type FilesystemLoader struct {
	roots []string

	mu    sync.RWMutex
	paths map[string]string // name -> resolved absolute path
}

var _ Loader = (*FilesystemLoader)(nil)

// NewFilesystemLoader creates a loader rooted at the given directories.
func NewFilesystemLoader(roots ...string) *FilesystemLoader {
	return &FilesystemLoader{
		roots: roots,
		paths: make(map[string]string),
	}
}

// AddRoot appends a directory to the search path.
func (l *FilesystemLoader) AddRoot(root string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roots = append(l.roots, root)
	// Resolved paths may change once a new root participates.
	l.paths = make(map[string]string)
}

// Source returns the content of the named template file.
func (l *FilesystemLoader) Source(name string) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", stencilerrors.NewLoaderError(name, err)
	}
	return string(content), nil
}

// CacheKey returns the resolved path for the name. The path is the
// per-name identity component: two roots serving different files for
// the same name produce different cache identities.
func (l *FilesystemLoader) CacheKey(name string) (string, error) {
	return l.resolve(name)
}

// IsFresh reports whether the file backing the name was not modified
// after the given Unix timestamp.
func (l *FilesystemLoader) IsFresh(name string, ts int64) bool {
	path, err := l.resolve(name)
	if err != nil {
		return false
	}
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.ModTime().Unix() <= ts
}

// Exists reports whether the name resolves to a readable file.
func (l *FilesystemLoader) Exists(name string) bool {
	_, err := l.resolve(name)
	return err == nil
}

// resolve maps a template name to an absolute file path, checking the
// memoized resolution first.
func (l *FilesystemLoader) resolve(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", stencilerrors.NewLoaderError(name, err)
	}

	l.mu.RLock()
	path, ok := l.paths[name]
	l.mu.RUnlock()
	if ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		// Backing file vanished, drop the memoized path and re-resolve.
		l.mu.Lock()
		delete(l.paths, name)
		l.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, root := range l.roots {
		candidate := filepath.Join(root, filepath.FromSlash(name))
		if stat, err := os.Stat(candidate); err == nil && !stat.IsDir() {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", stencilerrors.NewLoaderError(name, err)
			}
			l.paths[name] = abs
			return abs, nil
		}
	}
	return "", stencilerrors.NewLoaderError(name, nil)
}

// validateName rejects template names that would escape the loader roots.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty template name")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("absolute template name not allowed: %s", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("template name contains path traversal: %s", name)
	}
	return nil
}
