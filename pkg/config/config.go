// Package config loads the importer's YAML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/amlegal/pkg/sanitize"
)

// Default file names skipped by the importer. They hold the vendor's
// front matter rather than code chapters.
var DefaultIgnoreFiles = []string{"0-0-0-1.xml", "0-0-0-2.xml"}

// Config is the configuration consumed by an import session.
type Config struct {
	// Database is the path of the SQLite database.
	Database string `yaml:"database"`

	// Directory holds the vendor XML files.
	Directory string `yaml:"directory"`

	Edition Edition `yaml:"edition"`

	IgnoreFiles []string `yaml:"ignore_files"`

	// SkipTOC skips the first child of each document root, which is a
	// table of contents in vendor exports.
	SkipTOC bool `yaml:"skip_toc"`

	// StructureLabels is the label vocabulary ordered from broadest to
	// narrowest. When empty it is read from the database.
	StructureLabels []string `yaml:"structure_labels"`

	ImageBlacklist []string `yaml:"image_blacklist"`
	ImagePath      string   `yaml:"image_path"`

	// LawLongURLs nests law permalinks under their structure's token.
	LawLongURLs bool `yaml:"law_long_urls"`

	// GlobalDefinitions lists comma-joined ancestry paths, optionally
	// followed by a section number, whose definitions apply globally.
	GlobalDefinitions []string `yaml:"global_definitions"`

	// IncludeRepealed keeps repealed laws in the permalink pass.
	IncludeRepealed bool `yaml:"include_repealed"`

	// CitationPattern overrides the citation regular expression.
	CitationPattern string `yaml:"citation_pattern"`
}

// Edition identifies the snapshot being imported.
type Edition struct {
	Slug    string `yaml:"slug"`
	Name    string `yaml:"name"`
	Current bool   `yaml:"current"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:    "amlegal.db",
		Directory:   ".",
		Edition:     Edition{Slug: "current", Name: "Current Edition", Current: true},
		IgnoreFiles: append([]string(nil), DefaultIgnoreFiles...),
		SkipTOC:     true,
		ImagePath:   sanitize.DefaultImagePath,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields an import session depends on.
func (c *Config) Validate() error {
	if c.Edition.Slug == "" {
		return fmt.Errorf("edition slug is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.CitationPattern != "" {
		if _, err := regexp.Compile(c.CitationPattern); err != nil {
			return fmt.Errorf("citation_pattern: %w", err)
		}
	}
	for i, label := range c.StructureLabels {
		if label == "" {
			return fmt.Errorf("structure_labels[%d] is empty", i)
		}
	}
	return nil
}

// ImageFilter returns the image acceptance predicate for the blacklist.
func (c *Config) ImageFilter() sanitize.ImageFilter {
	if len(c.ImageBlacklist) == 0 {
		return sanitize.AcceptAll
	}
	return sanitize.BlacklistFilter(c.ImageBlacklist)
}

// Ignored reports whether a file name is on the ignore list.
func (c *Config) Ignored(name string) bool {
	for _, ignored := range c.IgnoreFiles {
		if ignored == name {
			return true
		}
	}
	return false
}
