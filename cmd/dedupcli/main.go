package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	filededup "github.com/mattkeenan/filededup/pkg"
)

func main() {
	var verboseCount int

	app := &cli.App{
		Name:  "dedupcli",
		Usage: "find duplicate files across one or more directory trees",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "dir", Aliases: []string{"d"}, Usage: "directory to scan (repeatable)"},
			&cli.StringSliceFlag{Name: "alg", Aliases: []string{"a"}, Usage: "digest id to include in the blocking chain (repeatable)"},
			&cli.StringFlag{Name: "outfile", Aliases: []string{"o"}, Usage: "write the report to this file instead of stdout"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "human", Usage: "output format: human or robot"},
			&cli.BoolFlag{Name: "progress", Aliases: []string{"P"}, Usage: "render scan progress to stderr"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress warnings"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Count: &verboseCount, Usage: "increase verbosity (stacking)"},
			&cli.BoolFlag{Name: "debug", Usage: "annotate warnings with their source location"},
			&cli.StringFlag{Name: "config-dir", Usage: "directory holding the persisted config file (default: $XDG_CONFIG_HOME/dedupcli)"},
			&cli.BoolFlag{Name: "ignore-empty", Usage: "skip zero-length files"},
			&cli.StringFlag{Name: "symlinks", Usage: "directory symlink handling: none, contained, or all"},
			&cli.StringSliceFlag{Name: "ignore", Aliases: []string{"i"}, Usage: "extra ignore-pattern regex, on top of any .dedupignore (repeatable)"},
			&cli.StringFlag{Name: "min-size", Usage: "skip files smaller than this size, e.g. 4K, 1M"},
		},
		Action: func(c *cli.Context) error {
			return run(c, verboseCount)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".dedupcli"
	}
	return filepath.Join(dir, "dedupcli")
}

func run(c *cli.Context, verboseCount int) error {
	dirs := c.StringSlice("dir")
	if len(dirs) == 0 {
		return cli.Exit((&filededup.UsageError{Msg: "at least one --dir is required"}).Error(), 2)
	}
	if c.NArg() > 0 {
		return cli.Exit((&filededup.UsageError{Msg: fmt.Sprintf("unexpected arguments: %v", c.Args().Slice())}).Error(), 2)
	}

	configDir := c.String("config-dir")
	if configDir == "" {
		configDir = defaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return cli.Exit((&filededup.ConfigError{Msg: err.Error()}).Error(), 1)
	}

	cfg, err := filededup.LoadConfig(configDir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := cfg.ApplyOverrides(flagOverrides(c, verboseCount)); err != nil {
		return cli.Exit((&filededup.ConfigError{Msg: err.Error()}).Error(), 2)
	}
	all := cfg.GetAllConfig()

	format := all.Output.Format
	if err := filededup.ValidateOutputFormat(format); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	symlinkMode := all.Scan.SymlinkMode
	if err := filededup.ValidateSymlinkMode(symlinkMode); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	debug, _ := strconv.ParseBool(all.Verbose.Debug)
	filededup.SetVerboseLevel(all.Verbose.Level)
	filededup.SetQuiet(all.Verbose.Quiet)
	filededup.SetDebugMode(debug)

	var blocking []any
	if algs := all.Blocking.Algorithms; len(algs) > 0 {
		blocking = []any{filededup.FileDigestFactory{IDs: algs}}
	}

	var minSize int64
	if raw := c.String("min-size"); raw != "" {
		n, err := filededup.ParseHumanSize(raw)
		if err != nil {
			return cli.Exit((&filededup.UsageError{Msg: fmt.Sprintf("--min-size: %v", err)}).Error(), 2)
		}
		minSize = int64(n)
	}

	progressFlag := c.Bool("progress")
	var filesScanned int
	var bytesScanned int64
	var unreadableCount int
	var unreadableBytes int64

	progressFn := func(info filededup.ProgressInfo) {
		filesScanned++
		if info.IgnoredUnreadable {
			unreadableCount++
			unreadableBytes += info.FileSize
		} else {
			bytesScanned += info.FileSize
		}
		if progressFlag && filesScanned%1000 == 0 {
			line := fmt.Sprintf("scanned %d files, %s", filesScanned, filededup.FormatBytes(bytesScanned))
			fmt.Fprintf(os.Stderr, "\r%-80s", line)
		}
	}

	fd, err := filededup.NewFileDeduplicator(filededup.Config{
		Blocking:            blocking,
		Progress:            progressFn,
		IgnoreEmpty:         all.Scan.IgnoreEmpty,
		SymlinkMode:         symlinkMode,
		MinSize:             minSize,
		ExtraIgnorePatterns: c.StringSlice("ignore"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := fd.Scan(filededup.ScanArgs{Dirs: dirs}); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if progressFlag {
		fmt.Fprintln(os.Stderr)
	}

	out := io.Writer(os.Stdout)
	outfile := c.String("outfile")
	if outfile != "" {
		f, err := os.Create(outfile)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer f.Close()
		out = f
	}

	groups := fd.Duplicates(nil)

	if format == "robot" {
		writeRobotReport(out, groups)
	} else {
		writeHumanReport(out, groups)
	}

	if all.Verbose.Level > 0 && outfile == "" {
		writeStatsBlock(os.Stdout, fd, groups, filesScanned, bytesScanned, unreadableCount, unreadableBytes)
	}

	return nil
}

// flagOverrides builds the "key:value" override strings FileConfig.ApplyOverrides
// expects, one per CLI flag the caller actually set. Flags left at their
// default are not overridden, so a persisted config value survives an
// invocation that doesn't mention that setting.
func flagOverrides(c *cli.Context, verboseCount int) []string {
	var overrides []string

	if c.IsSet("alg") {
		overrides = append(overrides, "algorithms:"+strings.Join(c.StringSlice("alg"), ","))
	}
	if c.IsSet("ignore-empty") {
		overrides = append(overrides, "ignore_empty:"+strconv.FormatBool(c.Bool("ignore-empty")))
	}
	if c.IsSet("symlinks") {
		overrides = append(overrides, "symlinks:"+c.String("symlinks"))
	}
	if c.IsSet("format") {
		overrides = append(overrides, "format:"+c.String("format"))
	}
	if verboseCount > 0 {
		overrides = append(overrides, "level:"+strconv.Itoa(verboseCount))
	}
	if c.IsSet("debug") {
		overrides = append(overrides, "debug:"+strconv.FormatBool(c.Bool("debug")))
	}
	if c.IsSet("quiet") {
		overrides = append(overrides, "quiet:"+strconv.FormatBool(c.Bool("quiet")))
	}

	return overrides
}

func writeRobotReport(w io.Writer, groups [][]string) {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		sorted := append([]string{}, g...)
		sort.Strings(sorted)
		lines = append(lines, strings.Join(sorted, "\t"))
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func writeHumanReport(w io.Writer, groups [][]string) {
	n := 0
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		n++
		sorted := append([]string{}, g...)
		sort.Strings(sorted)
		fmt.Fprintf(w, "duplicate set %d:\n", n)
		for _, p := range sorted {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func writeStatsBlock(w io.Writer, fd *filededup.FileDeduplicator, groups [][]string, filesScanned int, bytesScanned int64, unreadableCount int, unreadableBytes int64) {
	sep := strings.Repeat("---", 30)
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "total files: %d (%s)\n", filesScanned, filededup.FormatBytes(bytesScanned))
	if unreadableCount > 0 {
		fmt.Fprintf(w, "unreadable: %d (%s)\n", unreadableCount, filededup.FormatBytes(unreadableBytes))
	}

	unique, withDups, dupFiles := 0, 0, 0
	for _, g := range groups {
		if len(g) < 2 {
			unique++
		} else {
			withDups++
			dupFiles += len(g)
		}
	}
	fmt.Fprintf(w, "unique: %d, distinct-with-duplicates: %d, duplicates: %d\n", unique, withDups, dupFiles)

	if fd.HasIgnorePatterns() {
		fmt.Fprintf(w, "ignore patterns: %d\n", fd.IgnorePatternCount())
	}

	digests := fd.CountDigests()
	collisions := fd.CountCollisions()
	for i, fn := range fd.Blocking() {
		inv := 0
		if i < len(digests) {
			inv = digests[i]
		}
		col := 0
		if i < len(collisions) {
			col = collisions[i]
		}
		fmt.Fprintf(w, "%s : %d %d\n", fn.Name, inv, col)
	}
	fmt.Fprintln(w, sep)
}
