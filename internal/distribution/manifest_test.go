package distribution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "libtbx_config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
  "modules_required_for_build": ["scitbx", "cctbx"],
  "optional_modules": ["gltbx"],
  "modules_required_for_use": ["libtbx"],
}`)

	m := NewModule("mymod", "mymod")
	require.NoError(t, m.LoadManifest(path))

	assert.ElementsMatch(t, []string{"cctbx", "gltbx", "scitbx"}, m.Required.Sorted())
	assert.ElementsMatch(t, []string{"libtbx"}, m.RequiredForUse.Sorted())
}

func TestLoadManifestAliases(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
  "modules_required_for_build": ["boost", "annlib"],
}`)

	m := NewModule("mymod", "mymod")
	require.NoError(t, m.LoadManifest(path))

	assert.True(t, m.Required.Has("boost_adaptbx"))
	assert.True(t, m.Required.Has("annlib_adaptbx"))
	assert.False(t, m.Required.Has("boost"))
	assert.False(t, m.Required.Has("annlib"))
}

func TestLoadManifestCollapsesDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
  "modules_required_for_build": ["scitbx", "scitbx"],
  "optional_modules": ["scitbx"],
}`)

	m := NewModule("mymod", "mymod")
	require.NoError(t, m.LoadManifest(path))

	assert.Equal(t, []string{"scitbx"}, m.Required.Sorted())
}

func TestLoadManifestRejectsNonDict(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `["not", "a", "dict"]`)

	m := NewModule("mymod", "mymod")
	err := m.LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want a dict literal")
}
