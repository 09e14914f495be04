package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureStateDirIgnored_AppendsEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("node_modules/"), 0644))

	changed, err := EnsureStateDirIgnored(dir)
	require.NoError(t, err)
	assert.True(t, changed)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node_modules/\n.proven/\n", string(content))

	changed, err = EnsureStateDirIgnored(dir)
	require.NoError(t, err)
	assert.False(t, changed, "second call must be a no-op")
}

func TestEnsureStateDirIgnored_ExistingWildcardRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte(".*\n"), 0644))

	changed, err := EnsureStateDirIgnored(dir)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEnsureStateDirIgnored_NoGitignore(t *testing.T) {
	changed, err := EnsureStateDirIgnored(t.TempDir())
	require.NoError(t, err)
	assert.False(t, changed)
}
