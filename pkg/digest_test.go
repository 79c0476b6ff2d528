package filededup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterSize(t *testing.T) {
	assert.Equal(t, int64(100), clusterSize(100, 4096), "file smaller than blksize clamps to file size")
	assert.Equal(t, int64(4096), clusterSize(10000, 4096))
	assert.Equal(t, int64(4096), clusterSize(10000, 0), "missing blksize falls back to 4096")
}

func TestFirstClusterWindow(t *testing.T) {
	off, length := firstClusterWindow(10000, 4096)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(4096), length)

	off, length = firstClusterWindow(100, 4096)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(100), length, "a file shorter than one cluster yields the whole file")
}

func TestFinalSegmentWindow(t *testing.T) {
	// Exactly two clusters: the natural last cluster is full length, no backoff.
	off, length := finalSegmentWindow(8192, 4096, 128)
	assert.Equal(t, int64(4096), off)
	assert.Equal(t, int64(4096), length)

	// size=4097 leaves a 1-byte remainder cluster, shorter than the threshold,
	// so the window backs off by one cluster to use a full one instead.
	off, length = finalSegmentWindow(4097, 4096, 128)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(4096), length)

	// Single-cluster file: off stays at 0 even though the remainder is short,
	// since there is no earlier cluster to back off into.
	off, length = finalSegmentWindow(50, 4096, 128)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(50), length)

	off, length = finalSegmentWindow(0, 4096, 128)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(0), length)
}

func TestMiddleClusterWindow(t *testing.T) {
	off, length := middleClusterWindow(10000, 4096)
	assert.GreaterOrEqual(t, off, int64(0))
	assert.LessOrEqual(t, off+length, int64(10000))
	assert.Equal(t, int64(4096), length)
}

func writeDigestFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDigestFilesize(t *testing.T) {
	path := writeDigestFile(t, "hello world")
	key, err := digestFilesize(path)
	require.NoError(t, err)
	assert.Equal(t, Key("11"), key)
}

func TestDigestSha_MatchesFullFileContent(t *testing.T) {
	pathA := writeDigestFile(t, "identical content for sha test")
	pathB := writeDigestFile(t, "identical content for sha test")
	pathC := writeDigestFile(t, "different content entirely here")

	keyA, err := digestSha(pathA)
	require.NoError(t, err)
	keyB, err := digestSha(pathB)
	require.NoError(t, err)
	keyC, err := digestSha(pathC)
	require.NoError(t, err)

	assert.Equal(t, keyA, keyB)
	assert.NotEqual(t, keyA, keyC)
}

func TestDigestSha_EmptyFile(t *testing.T) {
	path := writeDigestFile(t, "")
	key, err := digestSha(path)
	require.NoError(t, err)
	assert.NotEmpty(t, key, "sha1 of empty input is still a well-defined 20-byte digest")
}

func TestDigestInitialXxhash_StableAcrossCalls(t *testing.T) {
	path := writeDigestFile(t, strings.Repeat("x", 10000))
	k1, err := digestInitialXxhash(path)
	require.NoError(t, err)
	k2, err := digestInitialXxhash(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, []byte(k1), 8)
}

func TestDigestSample_EmptyFileIsEmptyKey(t *testing.T) {
	path := writeDigestFile(t, "")
	key, err := digestSample(path)
	require.NoError(t, err)
	assert.Equal(t, Key(""), key)
}

func TestFileDigestFactory_DefaultChain(t *testing.T) {
	fns, err := DefaultFileBlocking().AllFunctions()
	require.NoError(t, err)
	ids := make([]string, len(fns))
	for i, fn := range fns {
		ids[i] = fn.ID
	}
	assert.Equal(t, []string{"filesize", "initial_xxhash", "final_xxhash", "sha"}, ids)
}

func TestFileDigestFactory_SelectsSubsetInOrder(t *testing.T) {
	fns, err := (FileDigestFactory{IDs: []string{"sha", "filesize"}}).AllFunctions()
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "sha", fns[0].ID)
	assert.Equal(t, "filesize", fns[1].ID)
}

func TestFileDigestFactory_UnknownIDFails(t *testing.T) {
	_, err := (FileDigestFactory{IDs: []string{"nonexistent"}}).AllFunctions()
	assert.Error(t, err)
}

func TestFileDigestFactory_AllThirteenDigestsPresent(t *testing.T) {
	fns, err := (FileDigestFactory{}).AllFunctions()
	require.NoError(t, err)
	assert.Len(t, fns, 13)
}
