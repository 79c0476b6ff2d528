package filededup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreManager holds compiled path-exclusion patterns used during a scan.
// Patterns are loaded from a ".dedupignore" file at the root of the
// scanned tree; this is a supplemental feature alongside ignore_empty, not
// named by the core contract.
type IgnoreManager struct {
	ignorePath string
	patterns   []*regexp.Regexp
	loaded     bool
}

// NewIgnoreManager creates an ignore manager rooted at dir.
func NewIgnoreManager(dir string) *IgnoreManager {
	return &IgnoreManager{
		ignorePath: filepath.Join(dir, ".dedupignore"),
		patterns:   make([]*regexp.Regexp, 0),
	}
}

// LoadIgnorePatterns loads patterns from the ignore file if present. A
// missing file is not an error; it simply leaves the pattern list empty.
func (im *IgnoreManager) LoadIgnorePatterns() error {
	if im.loaded {
		return nil
	}

	file, err := os.Open(im.ignorePath)
	if os.IsNotExist(err) {
		im.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pattern, err := regexp.Compile(line)
		if err != nil {
			return fmt.Errorf("invalid regex pattern at line %d: %s: %w", lineNum, line, err)
		}

		im.patterns = append(im.patterns, pattern)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ignore file: %w", err)
	}

	im.loaded = true
	return nil
}

// ShouldIgnore reports whether path matches any loaded pattern.
func (im *IgnoreManager) ShouldIgnore(path string) bool {
	if !im.loaded {
		if err := im.LoadIgnorePatterns(); err != nil {
			return false
		}
	}

	normalised := filepath.ToSlash(path)
	for _, pattern := range im.patterns {
		if pattern.MatchString(normalised) {
			return true
		}
	}
	return false
}

// AddPattern compiles and appends a new ignore pattern.
func (im *IgnoreManager) AddPattern(patternStr string) error {
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %s: %w", patternStr, err)
	}
	im.patterns = append(im.patterns, pattern)
	return nil
}

// GetPatterns returns the loaded patterns, loading them first if needed.
func (im *IgnoreManager) GetPatterns() []*regexp.Regexp {
	if !im.loaded {
		im.LoadIgnorePatterns()
	}
	return im.patterns
}

// HasPatterns reports whether any patterns are loaded.
func (im *IgnoreManager) HasPatterns() bool {
	if !im.loaded {
		im.LoadIgnorePatterns()
	}
	return len(im.patterns) > 0
}
