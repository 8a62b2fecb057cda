// Package config holds runtime configuration: defaults, optional YAML
// file loading, and validation. CLI flags are bound in cmd/verimux and
// override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config holds all runtime settings. It is populated by [Default], then
// optionally overlaid by [Load] and CLI flags, and passed by pointer to
// the packages that need it.
type Config struct {
	// Paths (set from positional args / flags).
	Input     string `yaml:"-"`          // source .ts file or directory
	OutputDir string `yaml:"output_dir"` // destination directory

	// Conversion.
	Workers      int    `yaml:"workers"`       // parallel conversions, >= 1
	AudioEncoder string `yaml:"audio_encoder"` // "auto", "aac", or "libfdk_aac"
	Start        string `yaml:"-"`             // -ss trim start (CLI only)
	To           string `yaml:"-"`             // -to trim end (CLI only)

	// Behavior.
	SkipExisting bool `yaml:"skip_existing"` // default: true; cleared by --force
	Watch        bool `yaml:"watch"`         // keep watching input dir for new recordings

	// Fingerprint cache. Empty disables the persistent cache.
	CacheDir string `yaml:"cache_dir"`

	// Logging.
	Verbose bool   `yaml:"verbose"`
	NoColor bool   `yaml:"no_color"`
	LogFile string `yaml:"log_file"` // optional rotating log file
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Workers:      1,
		AudioEncoder: "auto",
		SkipExisting: true,
	}
}

// Load overlays the YAML file at path onto cfg. A missing file is not an
// error; defaults (and later flag overrides) then apply unchanged.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// Validate checks field values before the pipeline starts.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input path is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1 (got %d)", c.Workers)
	}
	switch c.AudioEncoder {
	case "auto", "aac", "libfdk_aac":
		// valid
	default:
		return fmt.Errorf("invalid audio encoder %q (use 'auto', 'aac' or 'libfdk_aac')", c.AudioEncoder)
	}
	if c.Watch {
		fi, err := os.Stat(c.Input)
		if err != nil || !fi.IsDir() {
			return errors.New("--watch requires the input to be a directory")
		}
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not inside (or
// equal to) the resolved input directory, which would make the pipeline
// discover its own output files. Both arguments must be absolute,
// symlink-resolved paths; inputAbs may be a file, in which case its
// directory is checked.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	if fi, err := os.Stat(inputAbs); err == nil && !fi.IsDir() {
		return nil
	}
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
