package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for esmaudit.
type Config struct {
	// Traversal settings
	Walk WalkConfig `koanf:"walk"`

	// Module resolution settings
	Resolve ResolveConfig `koanf:"resolve"`

	// Which manifest dependency groups become roots
	Manifest ManifestConfig `koanf:"manifest"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// WalkConfig controls the dependency graph traversal.
type WalkConfig struct {
	Workers        int      `koanf:"workers"` // 0 = 2x NumCPU
	Entry          string   `koanf:"entry"`   // relative to the project directory
	SkipPackages   []string `koanf:"skip_packages"`
	SkipExtensions []string `koanf:"skip_extensions"`
	ModuleStore    string   `koanf:"module_store"`
	ScopePrefix    string   `koanf:"scope_prefix"`
}

// ResolveConfig controls specifier resolution.
type ResolveConfig struct {
	Conditions       []string `koanf:"conditions"`
	MainFields       []string `koanf:"main_fields"`
	Extensions       []string `koanf:"extensions"`
	ManifestCache    int      `koanf:"manifest_cache"`
	PreserveSymlinks bool     `koanf:"preserve_symlinks"`
}

// ManifestConfig selects dependency groups beyond "dependencies".
type ManifestConfig struct {
	IncludeDev      bool `koanf:"include_dev"`
	IncludeOptional bool `koanf:"include_optional"`
	IncludePeer     bool `koanf:"include_peer"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format   string `koanf:"format"` // text, json, markdown, toon
	Color    bool   `koanf:"color"`
	Progress bool   `koanf:"progress"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "toon"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Walk: WalkConfig{
			Workers: 0,
			Entry:   "index.js",
			SkipPackages: []string{
				"@types/*",
				"@octokit/openapi-types",
				"@graphql-typed-document-node/core",
				"csstype",
				"@tokenizer/token",
			},
			SkipExtensions: []string{
				".json",
				".node",
				".css",
				".svg",
			},
			ModuleStore: "node_modules",
			ScopePrefix: "@",
		},
		Resolve: ResolveConfig{
			Conditions: []string{"import", "module", "node", "default"},
			MainFields: []string{"module", "main"},
			Extensions: []string{
				".js", ".mjs", ".cjs", ".jsx",
				".ts", ".mts", ".cts", ".tsx",
				".json", ".node",
			},
			ManifestCache: 4096,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			Progress: true,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched by Find, in priority order.
var configNames = []string{
	"esmaudit.toml",
	"esmaudit.yaml",
	"esmaudit.yml",
	"esmaudit.json",
	".esmaudit.toml",
	".esmaudit.yaml",
	".esmaudit.yml",
	".esmaudit.json",
}

// Find returns the first config file in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadOrDefault loads the first config file found in dir, or returns
// defaults when there is none. A file that exists but fails to load is an
// error.
func LoadOrDefault(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Walk.Workers < 0 {
		return fmt.Errorf("walk.workers must not be negative, got %d", c.Walk.Workers)
	}
	if c.Walk.Entry == "" {
		return fmt.Errorf("walk.entry must not be empty")
	}
	if c.Resolve.ManifestCache < 0 {
		return fmt.Errorf("resolve.manifest_cache must not be negative, got %d", c.Resolve.ManifestCache)
	}
	if !slices.Contains(Formats, c.Output.Format) {
		return fmt.Errorf("output.format must be one of %s, got %q", strings.Join(Formats, ", "), c.Output.Format)
	}
	return nil
}
