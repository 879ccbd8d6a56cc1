// Package manifest reads the direct dependency names of a project from its
// package.json and builds audit manifests from package lists.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/tidwall/jsonc"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "package.json"

// ErrNoManifest is returned when a project directory has no package.json.
var ErrNoManifest = errors.New("no package.json found")

// Options selects which dependency groups are read. Production
// dependencies are always included.
type Options struct {
	IncludeDev      bool
	IncludeOptional bool
	IncludePeer     bool
}

// Manifest is the subset of package.json the audit consumes. Version ranges
// are kept only so generated manifests round-trip; they never affect
// traversal.
type Manifest struct {
	Name                 string            `json:"name,omitempty"`
	Version              string            `json:"version,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
}

// Names returns the sorted, distinct dependency names selected by opts.
func (m *Manifest) Names(opts Options) []string {
	groups := []map[string]string{m.Dependencies}
	if opts.IncludeDev {
		groups = append(groups, m.DevDependencies)
	}
	if opts.IncludeOptional {
		groups = append(groups, m.OptionalDependencies)
	}
	if opts.IncludePeer {
		groups = append(groups, m.PeerDependencies)
	}

	seen := make(map[string]struct{})
	for _, g := range groups {
		for name := range g {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes a package.json, tolerating comments and trailing commas.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return &m, nil
}

// Read loads and parses the package.json in dir.
func Read(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNoManifest)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Load returns the dependency names of the project in dir.
func Load(dir string, opts Options) ([]string, error) {
	m, err := Read(dir)
	if err != nil {
		return nil, err
	}
	return m.Names(opts), nil
}

// Package is one entry of a package list.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Range is a half-open index range [Start, End) of a package list.
type Range struct {
	Start int
	End   int
}

// DefaultName is the manifest name used by Generate.
const DefaultName = "analyze-npm"

// DefaultExclude lists packages left out of generated manifests because they
// fail to install without native toolchains.
var DefaultExclude = []string{"canvas"}

// GenerateOptions configures Generate.
type GenerateOptions struct {
	Name    string
	Exclude []string
	// Skip drops list entries by position, for ranges known to break installs.
	Skip []Range
}

// ParseList decodes a JSON array of {name, version} records.
func ParseList(data []byte) ([]Package, error) {
	var list []Package
	if err := json.Unmarshal(jsonc.ToJSON(data), &list); err != nil {
		return nil, fmt.Errorf("parsing package list: %w", err)
	}
	return list, nil
}

// Generate builds a manifest depending on every listed package except the
// excluded and skipped ones. Later duplicates overwrite earlier versions.
func Generate(list []Package, opts GenerateOptions) *Manifest {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	m := &Manifest{Name: name, Dependencies: make(map[string]string, len(list))}
	for i, pkg := range list {
		if pkg.Name == "" || slices.Contains(opts.Exclude, pkg.Name) || skipped(i, opts.Skip) {
			continue
		}
		m.Dependencies[pkg.Name] = pkg.Version
	}
	return m
}

func skipped(i int, ranges []Range) bool {
	for _, r := range ranges {
		if i >= r.Start && i < r.End {
			return true
		}
	}
	return false
}

// Write writes m as indented JSON to path.
func Write(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
