package environment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilhq/stencil/internal/compile"
	"github.com/stencilhq/stencil/internal/errors"
	"github.com/stencilhq/stencil/internal/extension"
	"github.com/stencilhq/stencil/internal/loader"
)

// stubExtension is a minimal extension for composition tests.
type stubExtension struct {
	name      string
	globals   map[string]interface{}
	filters   map[string]compile.FilterFunc
	initCount int
	host      extension.Host
}

func (s *stubExtension) Name() string { return s.name }
func (s *stubExtension) Filters() map[string]compile.FilterFunc { return s.filters }
func (s *stubExtension) Functions() map[string]compile.FunctionFunc { return nil }
func (s *stubExtension) Tests() map[string]compile.TestFunc { return nil }
func (s *stubExtension) Globals() map[string]interface{} { return s.globals }
func (s *stubExtension) InitRuntime(host extension.Host) {
	s.initCount++
	s.host = host
}

func newTestEnv(t *testing.T, templates map[string]string, opts Options) *Environment {
	t.Helper()
	env, err := New(loader.NewMapLoader(templates), opts)
	require.NoError(t, err)
	return env
}

func TestTemplateCacheKeyDeterministic(t *testing.T) {
	env := newTestEnv(t, map[string]string{"page.html": "hello"}, Options{})

	first, err := env.TemplateCacheKey("page.html")
	require.NoError(t, err)
	second, err := env.TemplateCacheKey("page.html")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "identity should be a hex sha-256 digest")
}

func TestTemplateCacheKeyVariesPerName(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"a.html": "a",
		"b.html": "b",
	}, Options{})

	a, err := env.TemplateCacheKey("a.html")
	require.NoError(t, err)
	b, err := env.TemplateCacheKey("b.html")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTemplateCacheKeyChangesWithExtensionComposition(t *testing.T) {
	env := newTestEnv(t, map[string]string{"page.html": "hello"}, Options{})

	before, err := env.TemplateCacheKey("page.html")
	require.NoError(t, err)

	require.NoError(t, env.RegisterExtension(&stubExtension{
		name:    "custom",
		filters: map[string]compile.FilterFunc{"shout": nil},
	}))

	after, err := env.TemplateCacheKey("page.html")
	require.NoError(t, err)

	assert.NotEqual(t, before, after,
		"registering an extension must invalidate every identity")
}

func TestTemplateCacheKeyEmbeddedIndex(t *testing.T) {
	env := newTestEnv(t, map[string]string{"page.html": "hello"}, Options{})

	base, err := env.TemplateCacheKey("page.html")
	require.NoError(t, err)
	indexed, err := env.TemplateCacheKey("page.html", 2)
	require.NoError(t, err)

	assert.Equal(t, base+"_2", indexed)
}

func TestTemplateCacheKeyValidation(t *testing.T) {
	env := newTestEnv(t, map[string]string{"page.html": "hello"}, Options{})

	tests := []struct {
		name  string
		call  func() (string, error)
		wantL bool
	}{
		{
			name:  "empty name",
			call:  func() (string, error) { return env.TemplateCacheKey("") },
			wantL: true,
		},
		{
			name:  "negative index",
			call:  func() (string, error) { return env.TemplateCacheKey("page.html", -1) },
			wantL: true,
		},
		{
			name:  "multiple indexes",
			call:  func() (string, error) { return env.TemplateCacheKey("page.html", 0, 1) },
			wantL: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.IsLogicError(err))
		})
	}
}

func TestTemplateCacheKeyMissingTemplate(t *testing.T) {
	env := newTestEnv(t, map[string]string{}, Options{})

	_, err := env.TemplateCacheKey("nope.html")
	require.Error(t, err)
	assert.True(t, errors.IsLoaderError(err))
}

func TestIsTemplateFreshExtensionBoundary(t *testing.T) {
	env := newTestEnv(t, map[string]string{"page.html": "hello"}, Options{})
	lastModified := env.Extensions().LastModified()

	// An artifact written at exactly the composition's last change is
	// still trusted; one written just before is not.
	assert.True(t, env.IsTemplateFresh("page.html", lastModified))
	assert.False(t, env.IsTemplateFresh("page.html", lastModified-1))
	assert.True(t, env.IsTemplateFresh("page.html", time.Now().Unix()+3600))
}

func TestIsTemplateFreshMissingTemplate(t *testing.T) {
	env := newTestEnv(t, map[string]string{}, Options{})

	assert.False(t, env.IsTemplateFresh("nope.html", time.Now().Unix()))
}
