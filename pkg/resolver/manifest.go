package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// packageJSON holds the parts of a package manifest that affect resolution.
type packageJSON struct {
	dir     string
	name    string
	fields  map[string]json.RawMessage
	exports any
	imports any
}

// stringField returns a top-level string field, or "" if it is absent or
// not a string.
func (p *packageJSON) stringField(name string) string {
	raw, ok := p.fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func parsePackageJSON(dir string, data []byte) (*packageJSON, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &fields); err != nil {
		return nil, err
	}

	pkg := &packageJSON{dir: dir, fields: fields}
	pkg.name = pkg.stringField("name")

	if raw, ok := fields["exports"]; ok {
		if err := json.Unmarshal(raw, &pkg.exports); err != nil {
			return nil, err
		}
	}
	if raw, ok := fields["imports"]; ok {
		if err := json.Unmarshal(raw, &pkg.imports); err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

// manifest returns the parsed package.json in dir, or nil when there is none
// or it cannot be parsed. Both outcomes are cached.
func (r *Resolver) manifest(dir string) *packageJSON {
	if pkg, ok := r.manifests.Get(dir); ok {
		return pkg
	}

	var pkg *packageJSON
	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		pkg, _ = parsePackageJSON(dir, data)
	}
	r.manifests.Add(dir, pkg)
	return pkg
}

// packageScope returns the nearest package.json at or above dir.
func (r *Resolver) packageScope(dir string) *packageJSON {
	for cur := dir; ; {
		if pkg := r.manifest(cur); pkg != nil {
			return pkg
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil
		}
		cur = parent
	}
}
