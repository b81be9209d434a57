package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stencilhq/stencil/internal/compile"
)

// FilesystemStore persists artifacts as files under a root directory,
// sharded by the first two characters of the identity the way large
// artifact caches avoid oversized directories.
type FilesystemStore struct {
	dir string

	mu          sync.Mutex
	activations map[string]*compile.Program
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates a store rooted at dir. The directory is
// created lazily on first write.
func NewFilesystemStore(dir string) *FilesystemStore {
	return &FilesystemStore{
		dir:         dir,
		activations: make(map[string]*compile.Program),
	}
}

// Key implements Store. The template name participates only through
// the identity; the key is a stable path derived from it.
func (s *FilesystemStore) Key(name, identity string) string {
	shard := "00"
	if len(identity) >= 2 {
		shard = identity[:2]
	}
	return filepath.Join(s.dir, shard, identity+".stencil.bin")
}

// Timestamp implements Store.
func (s *FilesystemStore) Timestamp(key string) int64 {
	stat, err := os.Stat(key)
	if err != nil {
		return 0
	}
	return stat.ModTime().Unix()
}

// Activate implements Store. The first successful activation for a key
// is memoized for the life of the process; later calls return the same
// program without touching the filesystem.
func (s *FilesystemStore) Activate(key string) (*compile.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if program, ok := s.activations[key]; ok {
		return program, nil
	}

	artifact, err := os.ReadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading artifact %s: %w", key, err)
	}

	program, err := compile.Decode(artifact)
	if err != nil {
		return nil, fmt.Errorf("activating artifact %s: %w", key, err)
	}
	s.activations[key] = program
	return program, nil
}

// Write implements Store. Writes go through a temporary file followed
// by a rename so concurrent identical writers and readers never observe
// a partially written artifact.
func (s *FilesystemStore) Write(key string, artifact []byte) error {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(key)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temporary artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(artifact); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmpName, key); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing artifact %s: %w", key, err)
	}
	return nil
}
