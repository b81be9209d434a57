package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilhq/stencil/internal/compile"
	stencilerrors "github.com/stencilhq/stencil/internal/errors"
)

func testArtifact(t *testing.T, name string) ([]byte, *compile.Program) {
	t.Helper()
	program, err := compile.NewCompiler().Compile("hello {{ name }}", name)
	require.NoError(t, err)
	artifact, err := compile.Encode(program)
	require.NoError(t, err)
	return artifact, program
}

const testIdentity = "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func TestFilesystemStoreKeySharding(t *testing.T) {
	s := NewFilesystemStore("/cache")

	key := s.Key("page.html", testIdentity)
	assert.Equal(t, filepath.Join("/cache", "ab", testIdentity+".stencil.bin"), key)
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	s := NewFilesystemStore(t.TempDir())
	artifact, _ := testArtifact(t, "page.html")
	key := s.Key("page.html", testIdentity)

	assert.EqualValues(t, 0, s.Timestamp(key), "absent artifacts have no timestamp")
	program, err := s.Activate(key)
	require.NoError(t, err)
	assert.Nil(t, program, "absent artifacts activate to nil, not an error")

	require.NoError(t, s.Write(key, artifact))
	assert.Greater(t, s.Timestamp(key), int64(0))

	program, err = s.Activate(key)
	require.NoError(t, err)
	require.NotNil(t, program)
	assert.Equal(t, "page.html", program.Name)
}

func TestFilesystemStoreActivationIsMemoized(t *testing.T) {
	s := NewFilesystemStore(t.TempDir())
	artifact, _ := testArtifact(t, "page.html")
	key := s.Key("page.html", testIdentity)
	require.NoError(t, s.Write(key, artifact))

	first, err := s.Activate(key)
	require.NoError(t, err)

	// Even deleting the backing file cannot unseat an activation.
	require.NoError(t, os.Remove(key))
	second, err := s.Activate(key)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFilesystemStoreWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFilesystemStore(dir)
	artifact, _ := testArtifact(t, "page.html")
	key := s.Key("page.html", testIdentity)
	require.NoError(t, s.Write(key, artifact))
	require.NoError(t, s.Write(key, artifact)) // overwrite is fine

	entries, err := os.ReadDir(filepath.Dir(key))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestFilesystemStoreRejectsCorruptArtifact(t *testing.T) {
	s := NewFilesystemStore(t.TempDir())
	key := s.Key("page.html", testIdentity)
	require.NoError(t, s.Write(key, []byte("garbage")))

	_, err := s.Activate(key)
	assert.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(1<<20, time.Hour)
	artifact, _ := testArtifact(t, "page.html")
	key := s.Key("page.html", testIdentity)

	assert.EqualValues(t, 0, s.Timestamp(key))
	require.NoError(t, s.Write(key, artifact))
	assert.Greater(t, s.Timestamp(key), int64(0))

	program, err := s.Activate(key)
	require.NoError(t, err)
	require.NotNil(t, program)

	again, err := s.Activate(key)
	require.NoError(t, err)
	assert.Same(t, program, again)

	hits, misses, _ := s.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore(1<<20, time.Nanosecond)
	artifact, _ := testArtifact(t, "page.html")
	key := s.Key("page.html", testIdentity)
	require.NoError(t, s.Write(key, artifact))

	time.Sleep(time.Millisecond)
	assert.EqualValues(t, 0, s.Timestamp(key), "expired entries read as absent")
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	artifact, _ := testArtifact(t, "page.html")
	// Budget fits two artifacts but not three.
	s := NewMemoryStore(int64(len(artifact))*2+1, time.Hour)

	require.NoError(t, s.Write("a", artifact))
	require.NoError(t, s.Write("b", artifact))
	s.Timestamp("a") // touch so "b" is the LRU entry
	require.NoError(t, s.Write("c", artifact))

	assert.Greater(t, s.Timestamp("a"), int64(0))
	assert.EqualValues(t, 0, s.Timestamp("b"))
	assert.Greater(t, s.Timestamp("c"), int64(0))

	_, _, evictions := s.Stats()
	assert.EqualValues(t, 1, evictions)
}

func TestMemoryStoreActivationSurvivesEviction(t *testing.T) {
	artifact, _ := testArtifact(t, "page.html")
	s := NewMemoryStore(int64(len(artifact)), time.Hour)
	require.NoError(t, s.Write("a", artifact))

	program, err := s.Activate("a")
	require.NoError(t, err)
	require.NotNil(t, program)

	// Writing another entry evicts the bytes for "a", but the
	// activation remains pinned.
	require.NoError(t, s.Write("b", artifact))
	again, err := s.Activate("a")
	require.NoError(t, err)
	assert.Same(t, program, again)
}

func TestDisabledStore(t *testing.T) {
	s := DisabledStore{}
	key := s.Key("page.html", testIdentity)

	require.NoError(t, s.Write(key, []byte("anything")))
	assert.EqualValues(t, 0, s.Timestamp(key))

	program, err := s.Activate(key)
	require.NoError(t, err)
	assert.Nil(t, program)
}

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		target  interface{}
		want    interface{}
		wantErr bool
	}{
		{name: "nil disables", target: nil, want: DisabledStore{}},
		{name: "false disables", target: false, want: DisabledStore{}},
		{name: "empty path disables", target: "", want: DisabledStore{}},
		{name: "true is ambiguous", target: true, wantErr: true},
		{name: "unsupported type", target: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := ResolveTarget(tt.target)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, stencilerrors.IsLogicError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, store)
		})
	}

	store, err := ResolveTarget(dir)
	require.NoError(t, err)
	assert.IsType(t, &FilesystemStore{}, store)

	memory := NewMemoryStore(1<<20, time.Hour)
	store, err = ResolveTarget(memory)
	require.NoError(t, err)
	assert.Same(t, memory, store)
}
