package filededup

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

const (
	sampleReadSize = 128
	headTailSize   = 1024
)

// FileDigestFactory is the canonical BlockingFactory for files. With IDs
// left empty, AllFunctions returns the complete set of digests this
// factory knows how to compute, in their canonical order; with IDs set, it
// returns exactly those digests, in the given order — this is how a
// caller selects a custom chain by id.
type FileDigestFactory struct {
	IDs []string
}

// DefaultFileBlocking returns the factory selecting the standard chain:
// filesize, initial_xxhash, final_xxhash, sha.
func DefaultFileBlocking() FileDigestFactory {
	return FileDigestFactory{IDs: []string{"filesize", "initial_xxhash", "final_xxhash", "sha"}}
}

// AllFunctions implements BlockingFactory.
func (f FileDigestFactory) AllFunctions() ([]BlockingFn, error) {
	all := canonicalFileDigests()
	if len(f.IDs) == 0 {
		return all, nil
	}

	byID := make(map[string]BlockingFn, len(all))
	for _, fn := range all {
		byID[fn.ID] = fn
	}

	out := make([]BlockingFn, 0, len(f.IDs))
	for _, id := range f.IDs {
		fn, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown digest id %q", id)
		}
		out = append(out, fn)
	}
	return out, nil
}

func canonicalFileDigests() []BlockingFn {
	return []BlockingFn{
		{ID: "filesize", Name: "file size", Class: "size", Digest: digestFilesize},
		{ID: "sample", Name: "initial sample", Class: "sample", Digest: digestSample},
		{ID: "mid_sample", Name: "middle sample", Class: "sample", Digest: digestMidSample},
		{ID: "end_sample", Name: "final sample", Class: "sample", Digest: digestEndSample},
		{ID: "file_head", Name: "file head", Class: "sample", Digest: digestFileHead},
		{ID: "file_tail", Name: "file tail", Class: "sample", Digest: digestFileTail},
		{ID: "fast_initial_xxhash", Name: "fast initial xxhash", Class: "xxhash", Digest: digestFastInitialXxhash},
		{ID: "initial_xxhash", Name: "initial xxhash", Class: "xxhash", Digest: digestInitialXxhash},
		{ID: "final_xxhash", Name: "final xxhash", Class: "xxhash", Digest: digestFinalXxhash},
		{ID: "fast_initial_sha", Name: "fast initial sha1", Class: "sha1", Digest: digestFastInitialSha},
		{ID: "initial_sha", Name: "initial sha1", Class: "sha1", Digest: digestInitialSha},
		{ID: "final_sha", Name: "final sha1", Class: "sha1", Digest: digestFinalSha},
		{ID: "sha", Name: "full file sha1", Class: "sha1", Digest: digestSha},
	}
}

// --- cluster / segment arithmetic -----------------------------------------

// clusterSize is min(file_size, blksize reported by stat, or 4096 if none).
func clusterSize(fileSize, blksize int64) int64 {
	c := blksize
	if c <= 0 {
		c = 4096
	}
	if fileSize < c {
		return fileSize
	}
	return c
}

// firstClusterWindow returns the byte range of the file's first cluster.
func firstClusterWindow(size, cluster int64) (off, length int64) {
	length = cluster
	if length > size {
		length = size
	}
	return 0, length
}

// middleClusterWindow returns the byte range of the cluster straddling the
// file's midpoint.
func middleClusterWindow(size, cluster int64) (off, length int64) {
	if cluster <= 0 {
		return 0, 0
	}
	off = (size / 2 / cluster) * cluster
	if off+cluster > size {
		off = size - cluster
		if off < 0 {
			off = 0
		}
	}
	length = size - off
	if length > cluster {
		length = cluster
	}
	return off, length
}

// finalSegmentWindow returns the byte range of the file's last cluster,
// backing off one cluster (and using the full cluster) if the natural last
// cluster is shorter than threshold.
func finalSegmentWindow(size, cluster, threshold int64) (off, length int64) {
	if cluster <= 0 || size == 0 {
		return 0, 0
	}
	off = ((size - 1) / cluster) * cluster
	length = size - off
	if length < threshold && off > 0 {
		off -= cluster
		length = cluster
	}
	return off, length
}

// --- I/O helpers ------------------------------------------------------------

func readRange(f *os.File, off, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	buf := make([]byte, length)
	_, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// readCentered reads up to readSize bytes centred within [off, off+length).
func readCentered(f *os.File, off, length int64, readSize int) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}

	want := int64(readSize)
	if want > length {
		want = length
	}

	center := off + length/2
	start := center - want/2
	if start < off {
		start = off
	}
	maxStart := off + length - want
	if start > maxStart {
		start = maxStart
	}

	return readRange(f, start, want)
}

func statFile(path string) (size, blksize int64, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Size, int64(st.Blksize), nil
}

// --- hash primitives --------------------------------------------------------

func xxhashOf(b []byte) []byte {
	h := xxhash.New()
	h.Write(b)
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, h.Sum64())
	return out
}

func sha1Of(b []byte) []byte {
	sum := sha1.Sum(b)
	return sum[:]
}

// --- sample digests (128 raw bytes, no hashing) -----------------------------

func sampleDigest(path string, window func(size, cluster int64) (int64, int64)) (Key, error) {
	size, blksize, err := statFile(path)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return Key(""), nil
	}

	cluster := clusterSize(size, blksize)
	off, length := window(size, cluster)

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := readCentered(f, off, length, sampleReadSize)
	if err != nil {
		return "", err
	}
	return Key(buf), nil
}

func digestFilesize(object any) (Key, error) {
	path := object.(string)
	size, _, err := statFile(path)
	if err != nil {
		return "", err
	}
	return Key(strconv.FormatInt(size, 10)), nil
}

func digestSample(object any) (Key, error) {
	return sampleDigest(object.(string), firstClusterWindow)
}

func digestMidSample(object any) (Key, error) {
	return sampleDigest(object.(string), middleClusterWindow)
}

func digestEndSample(object any) (Key, error) {
	return sampleDigest(object.(string), func(size, cluster int64) (int64, int64) {
		return finalSegmentWindow(size, cluster, sampleReadSize)
	})
}

func digestFileHead(object any) (Key, error) {
	path := object.(string)
	size, _, err := statFile(path)
	if err != nil {
		return "", err
	}
	n := int64(headTailSize)
	if n > size {
		n = size
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := readRange(f, 0, n)
	if err != nil {
		return "", err
	}
	return Key(buf), nil
}

func digestFileTail(object any) (Key, error) {
	path := object.(string)
	size, _, err := statFile(path)
	if err != nil {
		return "", err
	}
	n := int64(headTailSize)
	if n > size {
		n = size
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := readRange(f, size-n, n)
	if err != nil {
		return "", err
	}
	return Key(buf), nil
}

// --- hash digests over a cluster-aligned segment ---------------------------

func hashSegmentDigest(path string, window func(size, cluster int64) (int64, int64), hash func([]byte) []byte) (Key, error) {
	size, blksize, err := statFile(path)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return Key(hash(nil)), nil
	}

	cluster := clusterSize(size, blksize)
	off, length := window(size, cluster)

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := readRange(f, off, length)
	if err != nil {
		return "", err
	}
	return Key(hash(buf)), nil
}

func digestFastInitialXxhash(object any) (Key, error) {
	return hashSegmentDigest(object.(string), func(size, cluster int64) (int64, int64) {
		return 0, cluster / 2
	}, xxhashOf)
}

func digestInitialXxhash(object any) (Key, error) {
	return hashSegmentDigest(object.(string), firstClusterWindow, xxhashOf)
}

func digestFinalXxhash(object any) (Key, error) {
	return hashSegmentDigest(object.(string), func(size, cluster int64) (int64, int64) {
		return finalSegmentWindow(size, cluster, cluster/2)
	}, xxhashOf)
}

func digestFastInitialSha(object any) (Key, error) {
	return hashSegmentDigest(object.(string), func(size, cluster int64) (int64, int64) {
		return 0, cluster / 2
	}, sha1Of)
}

func digestInitialSha(object any) (Key, error) {
	return hashSegmentDigest(object.(string), firstClusterWindow, sha1Of)
}

func digestFinalSha(object any) (Key, error) {
	return hashSegmentDigest(object.(string), func(size, cluster int64) (int64, int64) {
		return finalSegmentWindow(size, cluster, cluster/2)
	}, sha1Of)
}

func digestSha(object any) (Key, error) {
	path := object.(string)

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return Key(h.Sum(nil)), nil
}
