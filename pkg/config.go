package filededup

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// FileConfig is the ini-backed, on-disk configuration for a dedup run,
// grounded on the same go-ini/ini usage as the rest of this codebase's
// settings. It is distinct from Config (pkg/dedup.go), which configures a
// single in-memory FileDeduplicator.
type FileConfig struct {
	configPath string
	ini        *ini.File
}

// BlockingConfig selects the ordered chain of digest ids to apply.
type BlockingConfig struct {
	Algorithms []string // digest ids, in preference order; empty means the default chain
}

// ScanConfig controls directory-traversal behaviour.
type ScanConfig struct {
	IgnoreEmpty bool   // drop zero-length files
	SymlinkMode string // "all", "contained", or "none" for directory symlinks
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format string // "human" or "robot"
}

// VerboseConfig controls logging verbosity.
type VerboseConfig struct {
	Level int    // 0-3
	Debug string // boolean string; the CLI parses it to annotate warnings with their source location
	Quiet bool
}

// AllConfig bundles every configuration section.
type AllConfig struct {
	Blocking *BlockingConfig
	Scan     *ScanConfig
	Output   *OutputConfig
	Verbose  *VerboseConfig
}

// LoadConfig loads configuration from configDir/config, creating a default
// file if none exists yet.
func LoadConfig(configDir string) (*FileConfig, error) {
	configPath := configDir + string(os.PathSeparator) + "config"

	cfg := &FileConfig{configPath: configPath}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile
	return cfg, nil
}

func (c *FileConfig) setDefaults() error {
	blockingSection, err := c.ini.NewSection("blocking")
	if err != nil {
		return fmt.Errorf("failed to create blocking section: %w", err)
	}
	if _, err := blockingSection.NewKey("algorithms", "filesize,initial_xxhash,final_xxhash,sha"); err != nil {
		return fmt.Errorf("failed to set default blocking chain: %w", err)
	}

	scanSection, err := c.ini.NewSection("scan")
	if err != nil {
		return fmt.Errorf("failed to create scan section: %w", err)
	}
	if _, err := scanSection.NewKey("ignore_empty", "false"); err != nil {
		return fmt.Errorf("failed to set default ignore_empty: %w", err)
	}
	if _, err := scanSection.NewKey("symlinks", "none"); err != nil {
		return fmt.Errorf("failed to set default symlink mode: %w", err)
	}

	outputSection, err := c.ini.NewSection("output")
	if err != nil {
		return fmt.Errorf("failed to create output section: %w", err)
	}
	if _, err := outputSection.NewKey("format", "human"); err != nil {
		return fmt.Errorf("failed to set default output format: %w", err)
	}

	verboseSection, err := c.ini.NewSection("verbose")
	if err != nil {
		return fmt.Errorf("failed to create verbose section: %w", err)
	}
	if _, err := verboseSection.NewKey("level", "0"); err != nil {
		return fmt.Errorf("failed to set default verbose level: %w", err)
	}
	if _, err := verboseSection.NewKey("debug", ""); err != nil {
		return fmt.Errorf("failed to set default debug flags: %w", err)
	}
	if _, err := verboseSection.NewKey("quiet", "false"); err != nil {
		return fmt.Errorf("failed to set default quiet flag: %w", err)
	}

	return nil
}

// GetBlockingConfig returns the configured digest chain.
func (c *FileConfig) GetBlockingConfig() *BlockingConfig {
	bc := &BlockingConfig{}
	if c.ini.HasSection("blocking") {
		section := c.ini.Section("blocking")
		if section.HasKey("algorithms") {
			raw := section.Key("algorithms").String()
			for _, id := range strings.Split(raw, ",") {
				id = strings.TrimSpace(id)
				if id != "" {
					bc.Algorithms = append(bc.Algorithms, id)
				}
			}
		}
	}
	return bc
}

// GetScanConfig returns the scan-time configuration.
func (c *FileConfig) GetScanConfig() *ScanConfig {
	sc := &ScanConfig{IgnoreEmpty: false, SymlinkMode: "none"}
	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if section.HasKey("ignore_empty") {
			if v, err := section.Key("ignore_empty").Bool(); err == nil {
				sc.IgnoreEmpty = v
			}
		}
		if section.HasKey("symlinks") {
			sc.SymlinkMode = section.Key("symlinks").String()
		}
	}
	return sc
}

// GetOutputConfig returns the report-format configuration.
func (c *FileConfig) GetOutputConfig() *OutputConfig {
	oc := &OutputConfig{Format: "human"}
	if c.ini.HasSection("output") {
		section := c.ini.Section("output")
		if section.HasKey("format") {
			oc.Format = section.Key("format").String()
		}
	}
	return oc
}

// GetVerboseConfig returns the logging configuration.
func (c *FileConfig) GetVerboseConfig() *VerboseConfig {
	vc := &VerboseConfig{Level: 0}
	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				vc.Level = level
			}
		}
		if section.HasKey("debug") {
			vc.Debug = section.Key("debug").String()
		}
		if section.HasKey("quiet") {
			if q, err := section.Key("quiet").Bool(); err == nil {
				vc.Quiet = q
			}
		}
	}
	return vc
}

// GetAllConfig returns every configuration section.
func (c *FileConfig) GetAllConfig() *AllConfig {
	return &AllConfig{
		Blocking: c.GetBlockingConfig(),
		Scan:     c.GetScanConfig(),
		Output:   c.GetOutputConfig(),
		Verbose:  c.GetVerboseConfig(),
	}
}

// Save persists the configuration to disk.
func (c *FileConfig) Save() error {
	return c.ini.SaveTo(c.configPath)
}

// ApplyOverrides applies "key:value" command-line overrides to the
// configuration in memory, without persisting them.
func (c *FileConfig) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "algorithms":
			c.ini.Section("blocking").Key("algorithms").SetValue(value)
		case "ignore_empty":
			c.ini.Section("scan").Key("ignore_empty").SetValue(value)
		case "symlinks":
			c.ini.Section("scan").Key("symlinks").SetValue(value)
		case "format":
			c.ini.Section("output").Key("format").SetValue(value)
		case "level":
			c.ini.Section("verbose").Key("level").SetValue(value)
		case "debug":
			c.ini.Section("verbose").Key("debug").SetValue(value)
		case "quiet":
			c.ini.Section("verbose").Key("quiet").SetValue(value)
		default:
			return fmt.Errorf("unsupported override key '%s'", key)
		}
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported.
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "human", "robot":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, robot)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is in range.
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateSymlinkMode validates that a symlink mode is supported.
func ValidateSymlinkMode(mode string) error {
	switch strings.ToLower(mode) {
	case "all", "contained", "none":
		return nil
	default:
		return fmt.Errorf("unsupported symlink mode: %s (supported: all, contained, none)", mode)
	}
}

// ValidateVerboseLevelString parses and validates a verbose level given as a string.
func ValidateVerboseLevelString(level string) (int, error) {
	n, err := strconv.Atoi(level)
	if err != nil {
		return 0, fmt.Errorf("invalid verbose level: %s", level)
	}
	return n, ValidateVerboseLevel(n)
}
