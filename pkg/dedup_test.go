package filededup

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func groupContaining(t *testing.T, groups [][]string, path string) []string {
	t.Helper()
	for _, g := range groups {
		for _, p := range g {
			if p == path {
				return g
			}
		}
	}
	t.Fatalf("no group contains %s", path)
	return nil
}

func TestFileDeduplicator_ScenarioD_DuplicatesAcrossDirectories(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	dir3 := t.TempDir()

	a := writeFile(t, dir1, "a.bin", "the quick brown fox jumps over the lazy dog, repeated for bulk")
	b := writeFile(t, dir2, "b.bin", "the quick brown fox jumps over the lazy dog, repeated for bulk")
	c := writeFile(t, dir3, "c.bin", "the quick brown fox jumps over the lazy dog, repeated for bulk")
	unique := writeFile(t, dir1, "unique.bin", "this content does not match any other file in the tree")

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir1, dir2, dir3}}))

	groups := fd.Duplicates(nil)

	dupGroup := groupContaining(t, groups, a)
	sorted := append([]string{}, dupGroup...)
	sort.Strings(sorted)
	want := []string{a, b, c}
	sort.Strings(want)
	assert.Equal(t, want, sorted)

	uniqueGroup := groupContaining(t, groups, unique)
	assert.Len(t, uniqueGroup, 1)
}

func TestFileDeduplicator_ScenarioE_HardlinksResolved(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "target.txt", "shared inode content")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Link(target, link))

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	hardlinks := fd.Hardlinks()
	require.Len(t, hardlinks, 1)
	bucket := append([]string{}, hardlinks[0]...)
	sort.Strings(bucket)
	want := []string{link, target}
	sort.Strings(want)
	assert.Equal(t, want, bucket)

	groups := fd.Duplicates(nil)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 1, "a hardlink pair feeds the engine only once")

	resolved := fd.Duplicates(func(paths []string) string {
		sorted := append([]string{}, paths...)
		sort.Strings(sorted)
		return sorted[0]
	})
	require.Len(t, resolved, 1)
	assert.Equal(t, bucket[0], resolved[0][0])

	again := fd.Duplicates(nil)
	assert.Equal(t, bucket[0], again[0][0], "resolved path must persist into the block")
}

func TestFileDeduplicator_ScenarioF_UnreadableFileWarns(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	if runtime.GOOS == "windows" {
		t.Skip("chmod semantics differ on windows")
	}

	dir := t.TempDir()
	path := writeFile(t, dir, "secret.bin", "cannot touch this")
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { os.Chmod(path, 0o644) })

	var seen []ProgressInfo
	fd, err := NewFileDeduplicator(Config{
		Progress: func(info ProgressInfo) { seen = append(seen, info) },
	})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	require.Len(t, seen, 1)
	assert.True(t, seen[0].IgnoredUnreadable)
	assert.Equal(t, int64(len("cannot touch this")), seen[0].FileSize)
	assert.Empty(t, fd.Duplicates(nil), "an unreadable file must never reach the engine")
}

func TestFileDeduplicator_IgnoreEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.bin", "")
	writeFile(t, dir, "full.bin", "not empty")

	fd, err := NewFileDeduplicator(Config{IgnoreEmpty: true})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 1, total)
}

func TestFileDeduplicator_KeepsEmptyFilesByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.bin", "")

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 1, total)
}

func TestFileDeduplicator_DedupignorePattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".dedupignore", `\.tmp$`)
	writeFile(t, dir, "keep.bin", "keep me")
	writeFile(t, dir, "skip.tmp", "skip me")

	fd, err := NewFileDeduplicator(Config{Ignore: NewIgnoreManager(dir)})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	for _, p := range all {
		assert.NotContains(t, p, ".tmp")
	}
}

func TestFileDeduplicator_SymlinkedFilesAlwaysSkipped(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "real.bin", "content")
	link := filepath.Join(dir, "alias.bin")
	require.NoError(t, os.Symlink(target, link))

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	require.Len(t, groups, 1)
	assert.Equal(t, target, groups[0][0])
}

func TestFileDeduplicator_MinSizeDropsSmallFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tiny.bin", "x")
	writeFile(t, dir, "big1.bin", "well over the threshold")
	writeFile(t, dir, "big2.bin", "well over the threshold")

	fd, err := NewFileDeduplicator(Config{MinSize: 10})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, 2, total, "the file under MinSize must never reach the engine")
}

func TestFileDeduplicator_AutoDetectedIgnorePerDirectory(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, dirA, ".dedupignore", `\.log$`)
	writeFile(t, dirA, "keep.bin", "same content here")
	writeFile(t, dirA, "skip.log", "same content here")
	writeFile(t, dirB, "other.log", "same content here")

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dirA, dirB}}))

	groups := fd.Duplicates(nil)
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	assert.NotContains(t, all, filepath.Join(dirA, "skip.log"))
	assert.Contains(t, all, filepath.Join(dirB, "other.log"), "dedupignore is scoped to the directory it was found in")
	assert.True(t, fd.HasIgnorePatterns())
	assert.Equal(t, 1, fd.IgnorePatternCount())
}

func TestFileDeduplicator_ExtraIgnorePatternsSupplementFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.bin", "keep me")
	writeFile(t, dir, "skip.bak", "skip me")

	fd, err := NewFileDeduplicator(Config{ExtraIgnorePatterns: []string{`\.bak$`}})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	assert.NotContains(t, all, filepath.Join(dir, "skip.bak"))
}

func TestFileDeduplicator_NoIgnorePatternsByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "content")

	fd, err := NewFileDeduplicator(Config{})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	assert.False(t, fd.HasIgnorePatterns())
	assert.Equal(t, 0, fd.IgnorePatternCount())
}

func TestFileDeduplicator_CustomBlockingChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", "same size!")
	writeFile(t, dir, "b.bin", "same size?")

	fd, err := NewFileDeduplicator(Config{
		Blocking: []any{FileDigestFactory{IDs: []string{"filesize"}}},
	})
	require.NoError(t, err)
	require.NoError(t, fd.Scan(ScanArgs{Dirs: []string{dir}}))

	groups := fd.Duplicates(nil)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, []int{2}, fd.CountDigests())
}
