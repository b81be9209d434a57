package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectTemplatesResolutionOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(first, "page.html"), []byte("a"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(second, "partials"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(second, "page.html"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "partials", "nav.html"), []byte("n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(second, ".hidden"), []byte("h"), 0644))

	templates, err := collectTemplates([]string{first, second, filepath.Join(first, "does-not-exist")})
	require.NoError(t, err)

	byName := map[string]templateInfo{}
	for _, tmpl := range templates {
		byName[tmpl.Name] = tmpl
	}

	require.Len(t, templates, 2)
	assert.Equal(t, first, byName["page.html"].Root, "first root shadows later ones")
	assert.Equal(t, second, byName["partials/nav.html"].Root)
	assert.NotContains(t, byName, ".hidden")
}

func TestLoadContextFile(t *testing.T) {
	vars, err := loadContextFile("")
	require.NoError(t, err)
	assert.Empty(t, vars)

	path := filepath.Join(t.TempDir(), "context.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: world\ncount: 3\n"), 0644))

	vars, err = loadContextFile(path)
	require.NoError(t, err)
	assert.Equal(t, "world", vars["name"])
	assert.Equal(t, 3, vars["count"])

	_, err = loadContextFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("{not yaml"), 0644))
	_, err = loadContextFile(bad)
	assert.Error(t, err)
}
