package filededup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// ProgressInfo is reported to a scan's progress callback once per regular
// file that is fed to the engine or found unreadable. Files dropped by the
// empty, minimum-size or ignore-pattern filters, and further hardlinks to an
// inode already seen, are not reported.
type ProgressInfo struct {
	FileSize          int64
	IgnoredUnreadable bool
}

// ProgressFunc receives the ProgressInfo values reported during Scan.
type ProgressFunc func(ProgressInfo)

// Config configures a FileDeduplicator at construction time. Blocking
// defaults to DefaultFileBlocking() when nil.
type Config struct {
	IgnoreEmpty bool
	Blocking    []any
	Progress    ProgressFunc
	SymlinkMode string // "all", "contained", "none" (supplement, default "none")
	Ignore      *IgnoreManager

	// MinSize drops any regular file smaller than this many bytes, 0
	// disables the check. Populated from a human-readable CLI flag via
	// ParseHumanSize.
	MinSize int64

	// ExtraIgnorePatterns are regexes applied on top of whatever
	// .dedupignore file governs a scanned directory, added via
	// IgnoreManager.AddPattern. Typically sourced from a repeatable CLI
	// flag rather than a file.
	ExtraIgnorePatterns []string
}

// ScanArgs overrides Config's defaults for a single Scan call.
type ScanArgs struct {
	Dirs        []string
	IgnoreEmpty *bool
	Progress    ProgressFunc
}

type inodeKey struct {
	dev uint64
	ino uint64
}

// FileDeduplicator scans one or more directory trees, feeds regular,
// non-symlinked, non-hardlink-duplicate files into an Engine, and reports
// duplicate groups and hardlink buckets.
type FileDeduplicator struct {
	engine      *Engine
	ignoreEmpty bool
	progress    ProgressFunc
	ignore      *IgnoreManager
	symlinkMode string
	minSize     int64
	extraIgnore []string

	// autoIgnore caches the per-top-level-directory IgnoreManager resolved
	// by resolveIgnore when no explicit Ignore manager was configured.
	autoIgnore map[string]*IgnoreManager

	buckets     map[inodeKey][]string
	bucketOrder []inodeKey
}

// NewFileDeduplicator constructs a FileDeduplicator with the given
// configuration. It fails with a *ConfigError if the blocking
// configuration is malformed.
func NewFileDeduplicator(cfg Config) (*FileDeduplicator, error) {
	blocking := cfg.Blocking
	if blocking == nil {
		blocking = []any{DefaultFileBlocking()}
	}

	engine, err := NewEngine(EngineConfig{Blocking: blocking})
	if err != nil {
		return nil, err
	}

	symlinkMode := cfg.SymlinkMode
	if symlinkMode == "" {
		symlinkMode = "none"
	}

	if cfg.Ignore != nil {
		for _, pattern := range cfg.ExtraIgnorePatterns {
			if err := cfg.Ignore.AddPattern(pattern); err != nil {
				return nil, &ConfigError{Msg: fmt.Sprintf("ignore pattern %q: %v", pattern, err)}
			}
		}
	}

	return &FileDeduplicator{
		engine:      engine,
		ignoreEmpty: cfg.IgnoreEmpty,
		progress:    cfg.Progress,
		ignore:      cfg.Ignore,
		symlinkMode: symlinkMode,
		minSize:     cfg.MinSize,
		extraIgnore: cfg.ExtraIgnorePatterns,
		autoIgnore:  make(map[string]*IgnoreManager),
		buckets:     make(map[inodeKey][]string),
	}, nil
}

// Scan recursively traverses args.Dirs (or, per field, falls back to the
// deduplicator's defaults) without changing the working directory, feeding
// each eligible regular file into the engine.
func (fd *FileDeduplicator) Scan(args ScanArgs) error {
	ignoreEmpty := fd.ignoreEmpty
	if args.IgnoreEmpty != nil {
		ignoreEmpty = *args.IgnoreEmpty
	}
	progress := fd.progress
	if args.Progress != nil {
		progress = args.Progress
	}

	for _, dir := range args.Dirs {
		ignore, err := fd.resolveIgnore(dir)
		if err != nil {
			return err
		}
		if err := fd.scanDir(dir, ignoreEmpty, progress, ignore); err != nil {
			return err
		}
	}
	return nil
}

// resolveIgnore returns the IgnoreManager governing a top-level scanned
// directory. An explicitly configured Ignore manager always wins; otherwise
// one rooted at dir is created and loaded from dir's own .dedupignore,
// memoised per dir so a directory listed twice in Dirs isn't reloaded.
func (fd *FileDeduplicator) resolveIgnore(dir string) (*IgnoreManager, error) {
	if fd.ignore != nil {
		return fd.ignore, nil
	}

	if cached, ok := fd.autoIgnore[dir]; ok {
		return cached, nil
	}

	im := NewIgnoreManager(dir)
	if err := im.LoadIgnorePatterns(); err != nil {
		return nil, &IoError{Path: dir, Err: err}
	}
	for _, pattern := range fd.extraIgnore {
		if err := im.AddPattern(pattern); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("ignore pattern %q: %v", pattern, err)}
		}
	}
	fd.autoIgnore[dir] = im
	return im, nil
}

func (fd *FileDeduplicator) scanDir(dir string, ignoreEmpty bool, progress ProgressFunc, ignore *IgnoreManager) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &IoError{Path: dir, Err: err}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return &IoError{Path: path, Err: err}
		}

		isSymlink := info.Mode()&os.ModeSymlink != 0

		if entry.IsDir() || (isSymlink && fd.symlinkIsDir(path)) {
			if !fd.shouldDescend(path, dir, isSymlink) {
				continue
			}
			if err := fd.scanDir(path, ignoreEmpty, progress, ignore); err != nil {
				return err
			}
			continue
		}

		if isSymlink {
			continue // file symlinks are always skipped
		}

		if err := fd.visitFile(path, info, ignoreEmpty, progress, ignore); err != nil {
			return err
		}
	}
	return nil
}

func (fd *FileDeduplicator) symlinkIsDir(path string) bool {
	target, err := os.Stat(path)
	return err == nil && target.IsDir()
}

func (fd *FileDeduplicator) shouldDescend(path, parent string, isSymlink bool) bool {
	if !isSymlink {
		return true
	}
	switch fd.symlinkMode {
	case "none":
		return false
	case "contained":
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return false
		}
		rel, err := filepath.Rel(parent, target)
		return err == nil && rel != ".." && !hasParentEscape(rel)
	default: // "all"
		return true
	}
}

func hasParentEscape(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".." && (len(rel) == 2 || rel[2] == os.PathSeparator)
}

func (fd *FileDeduplicator) visitFile(path string, info os.FileInfo, ignoreEmpty bool, progress ProgressFunc, ignore *IgnoreManager) error {
	if !info.Mode().IsRegular() {
		return nil
	}

	size := info.Size()
	if size == 0 && ignoreEmpty {
		return nil
	}
	if fd.minSize > 0 && size < fd.minSize {
		return nil
	}

	if ignore != nil && ignore.ShouldIgnore(path) {
		return nil
	}

	key, err := inodeIdentity(path)
	if err != nil {
		return &IoError{Path: path, Err: err}
	}

	prior := fd.buckets[key]
	fd.buckets[key] = append(prior, path)
	if len(prior) > 0 {
		return nil // hardlink to an already-seen inode; don't feed the engine again
	}
	fd.bucketOrder = append(fd.bucketOrder, key)

	f, err := os.Open(path)
	if err != nil {
		Warn("unreadable file %s: %v", path, err)
		if progress != nil {
			progress(ProgressInfo{FileSize: size, IgnoredUnreadable: true})
		}
		return nil
	}
	f.Close()

	if err := fd.engine.Add(path); err != nil {
		return err
	}

	if progress != nil {
		progress(ProgressInfo{FileSize: size})
	}
	return nil
}

func inodeIdentity(path string) (inodeKey, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return inodeKey{}, err
	}
	return inodeKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}, nil
}

// Hardlinks returns every inode-path bucket discovered during scanning,
// each holding one or more paths.
func (fd *FileDeduplicator) Hardlinks() [][]string {
	out := make([][]string, 0, len(fd.bucketOrder))
	for _, key := range fd.bucketOrder {
		bucket := fd.buckets[key]
		out = append(out, append([]string{}, bucket...))
	}
	return out
}

// Duplicates returns one path list per engine Block. When resolveHardlinks
// is non-nil, any path belonging to a hardlink bucket of size ≥ 2 is
// replaced by resolveHardlinks(bucket); the replacement is persisted into
// the engine's Block, so a later Duplicates(nil) call observes it.
func (fd *FileDeduplicator) Duplicates(resolveHardlinks func([]string) string) [][]string {
	groups := make([][]string, 0, len(fd.engine.blocks))

	for _, b := range fd.engine.blocks {
		if resolveHardlinks != nil {
			for i, obj := range b.objects {
				path, ok := obj.(string)
				if !ok {
					continue
				}
				key, err := inodeIdentity(path)
				if err != nil {
					continue
				}
				if bucket := fd.buckets[key]; len(bucket) >= 2 {
					b.objects[i] = resolveHardlinks(append([]string{}, bucket...))
				}
			}
		}

		paths := make([]string, len(b.objects))
		for i, o := range b.objects {
			paths[i] = o.(string)
		}
		groups = append(groups, paths)
	}
	return groups
}

// Blocking returns the resolved digest chain.
func (fd *FileDeduplicator) Blocking() []BlockingFn {
	return fd.engine.Blocking()
}

// CountDigests delegates to the engine's CountKeysComputed.
func (fd *FileDeduplicator) CountDigests() []int {
	return fd.engine.CountKeysComputed()
}

// CountCollisions delegates to the engine's CountCollisions.
func (fd *FileDeduplicator) CountCollisions() []int {
	return fd.engine.CountCollisions()
}

// HasIgnorePatterns reports whether any ignore manager resolved during
// scanning (explicit or auto-detected) has at least one loaded pattern.
func (fd *FileDeduplicator) HasIgnorePatterns() bool {
	if fd.ignore != nil {
		return fd.ignore.HasPatterns()
	}
	for _, im := range fd.autoIgnore {
		if im.HasPatterns() {
			return true
		}
	}
	return false
}

// IgnorePatternCount returns the total number of loaded ignore patterns
// across every ignore manager resolved during scanning.
func (fd *FileDeduplicator) IgnorePatternCount() int {
	if fd.ignore != nil {
		return len(fd.ignore.GetPatterns())
	}
	n := 0
	for _, im := range fd.autoIgnore {
		n += len(im.GetPatterns())
	}
	return n
}
