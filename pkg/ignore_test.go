package filededup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreManager_NoFilePresent(t *testing.T) {
	dir := t.TempDir()
	im := NewIgnoreManager(dir)
	assert.False(t, im.ShouldIgnore(filepath.Join(dir, "anything.txt")))
	assert.False(t, im.HasPatterns())
}

func TestIgnoreManager_LoadsPatternsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "# comment line\n\\.log$\nbackup/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dedupignore"), []byte(content), 0o644))

	im := NewIgnoreManager(dir)
	require.NoError(t, im.LoadIgnorePatterns())
	assert.Len(t, im.GetPatterns(), 2)

	assert.True(t, im.ShouldIgnore(filepath.Join(dir, "output.log")))
	assert.True(t, im.ShouldIgnore(filepath.Join(dir, "backup", "old.bin")))
	assert.False(t, im.ShouldIgnore(filepath.Join(dir, "keep.bin")))
}

func TestIgnoreManager_InvalidPatternErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dedupignore"), []byte("[unclosed"), 0o644))

	im := NewIgnoreManager(dir)
	assert.Error(t, im.LoadIgnorePatterns())
}

func TestIgnoreManager_AddPattern(t *testing.T) {
	dir := t.TempDir()
	im := NewIgnoreManager(dir)
	require.NoError(t, im.AddPattern(`\.tmp$`))
	assert.True(t, im.ShouldIgnore("/some/path/file.tmp"))
	assert.False(t, im.ShouldIgnore("/some/path/file.bin"))
}
