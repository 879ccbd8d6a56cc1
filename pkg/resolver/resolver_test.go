package resolver

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/esmaudit/internal/testutil"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(Options{})
	require.NoError(t, err)
	return r
}

// project builds a fixture tree and returns its root.
func project(t *testing.T, files map[string]string) string {
	t.Helper()
	root := testutil.TempDir(t)
	testutil.CreateFileTree(t, root, files)
	return root
}

func TestResolve_Builtins(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		spec string
		name string
	}{
		{"fs", "fs"},
		{"fs/promises", "fs/promises"},
		{"node:path", "path"},
		{"node:test", "test"},
		{"worker_threads", "worker_threads"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := r.Resolve(tt.spec, "/x/index.js", KindESM)
			assert.Equal(t, Builtin, got.Status)
			assert.Equal(t, tt.name, got.Name)
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	root := project(t, map[string]string{"index.js": ""})
	r := newResolver(t)
	from := filepath.Join(root, "index.js")

	for _, spec := range []string{"", "missing-pkg", "./missing", "https://cdn.example.com/x.js", "data:text/javascript,1", "@scope", "@/x"} {
		t.Run(spec, func(t *testing.T) {
			assert.Equal(t, Unresolved, r.Resolve(spec, from, KindESM).Status)
		})
	}
}

func TestResolve_Relative(t *testing.T) {
	root := project(t, map[string]string{
		"index.js":          "",
		"lib/a.js":          "",
		"lib/b.mjs":         "",
		"lib/dir/index.cjs": "",
		"lib/main/package.json": `{"main": "./entry"}`,
		"lib/main/entry.js":     "",
		"lib/exact":             "",
	})
	r := newResolver(t)
	from := filepath.Join(root, "lib", "x.js")

	tests := []struct {
		spec string
		want string
	}{
		{"./a.js", "lib/a.js"},
		{"./a", "lib/a.js"},
		{"./b", "lib/b.mjs"},
		{"./dir", "lib/dir/index.cjs"},
		{"./main", "lib/main/entry.js"},
		{"./exact", "lib/exact"},
		{"../index", "index.js"},
		{"..", "index.js"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := r.Resolve(tt.spec, from, KindESM)
			require.Equal(t, ResolvedFile, got.Status, got.String())
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got.Path)
		})
	}
}

func TestResolve_Packages(t *testing.T) {
	root := project(t, map[string]string{
		"index.js": "",
		"node_modules/plain/index.js":                "",
		"node_modules/main-field/package.json":       `{"main": "lib/cjs.js", "module": "lib/esm.js"}`,
		"node_modules/main-field/lib/cjs.js":         "",
		"node_modules/main-field/lib/esm.js":         "",
		"node_modules/main-only/package.json":        `{"main": "dist"}`,
		"node_modules/main-only/dist/index.js":       "",
		"node_modules/@scope/pkg/package.json":       `{"name": "@scope/pkg"}`,
		"node_modules/@scope/pkg/index.js":           "",
		"node_modules/@scope/pkg/util/helpers.js":    "",
		"node_modules/comments/package.json":         "{\n  // tolerated\n  \"main\": \"m.js\",\n}\n",
		"node_modules/comments/m.js":                 "",
		"node_modules/outer/index.js":                "",
		"node_modules/host/index.js":                 "",
		"node_modules/host/node_modules/outer/in.js": "",
		"node_modules/host/node_modules/outer/package.json": `{"main": "in.js"}`,
	})
	r := newResolver(t)
	from := filepath.Join(root, "index.js")

	tests := []struct {
		name string
		spec string
		from string
		want string
	}{
		{"index fallback", "plain", from, "node_modules/plain/index.js"},
		{"module field first", "main-field", from, "node_modules/main-field/lib/esm.js"},
		{"main pointing at a directory", "main-only", from, "node_modules/main-only/dist/index.js"},
		{"scoped", "@scope/pkg", from, "node_modules/@scope/pkg/index.js"},
		{"scoped subpath", "@scope/pkg/util/helpers", from, "node_modules/@scope/pkg/util/helpers.js"},
		{"jsonc manifest", "comments", from, "node_modules/comments/m.js"},
		{"nearest store wins", "outer", filepath.Join(root, "node_modules", "host", "index.js"), "node_modules/host/node_modules/outer/in.js"},
		{"outer store from root", "outer", from, "node_modules/outer/index.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.spec, tt.from, KindESM)
			require.Equal(t, ResolvedFile, got.Status, got.String())
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got.Path)
		})
	}
}

func TestResolve_Exports(t *testing.T) {
	root := project(t, map[string]string{
		"index.js": "",
		"node_modules/cond/package.json": `{
			"main": "./legacy.js",
			"exports": {
				".": {"require": "./main.cjs", "import": "./main.mjs"},
				"./feature": {"node": {"import": "./feature-node.mjs"}, "default": "./feature.js"},
				"./utils/*": "./src/utils/*.js",
				"./utils/internal/*": null,
				"./package.json": "./package.json"
			}
		}`,
		"node_modules/cond/main.cjs":              "",
		"node_modules/cond/main.mjs":              "",
		"node_modules/cond/legacy.js":             "",
		"node_modules/cond/feature-node.mjs":      "",
		"node_modules/cond/feature.js":            "",
		"node_modules/cond/src/utils/str.js":      "",
		"node_modules/cond/src/utils/internal/x.js": "",
		"node_modules/cond/hidden.js":             "",
		"node_modules/sugar/package.json":         `{"exports": {"import": "./esm.js", "default": "./cjs.js"}}`,
		"node_modules/sugar/esm.js":               "",
		"node_modules/sugar/cjs.js":               "",
		"node_modules/str/package.json":           `{"exports": "./only.js"}`,
		"node_modules/str/only.js":                "",
		"node_modules/arr/package.json":           `{"exports": [{"worker": "./w.js"}, "./fallback.js"]}`,
		"node_modules/arr/fallback.js":            "",
	})
	r := newResolver(t)
	from := filepath.Join(root, "index.js")

	tests := []struct {
		name string
		spec string
		kind Kind
		want string
	}{
		{"import condition", "cond", KindESM, "node_modules/cond/main.mjs"},
		{"require condition", "cond", KindCommonJS, "node_modules/cond/main.cjs"},
		{"nested conditions", "cond/feature", KindESM, "node_modules/cond/feature-node.mjs"},
		{"pattern", "cond/utils/str", KindESM, "node_modules/cond/src/utils/str.js"},
		{"package.json subpath", "cond/package.json", KindESM, "node_modules/cond/package.json"},
		{"condition sugar", "sugar", KindESM, "node_modules/sugar/esm.js"},
		{"condition sugar for require", "sugar", KindCommonJS, "node_modules/sugar/cjs.js"},
		{"string exports", "str", KindESM, "node_modules/str/only.js"},
		{"array fallback", "arr", KindESM, "node_modules/arr/fallback.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.spec, from, tt.kind)
			require.Equal(t, ResolvedFile, got.Status, got.String())
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got.Path)
		})
	}

	t.Run("unexported subpath", func(t *testing.T) {
		assert.Equal(t, Unresolved, r.Resolve("cond/hidden", from, KindESM).Status)
	})
	t.Run("null target blocks pattern", func(t *testing.T) {
		assert.Equal(t, Unresolved, r.Resolve("cond/utils/internal/x", from, KindESM).Status)
	})
	t.Run("sugar has no subpaths", func(t *testing.T) {
		assert.Equal(t, Unresolved, r.Resolve("sugar/esm.js", from, KindESM).Status)
	})
}

func TestResolve_Imports(t *testing.T) {
	root := project(t, map[string]string{
		"package.json": `{
			"name": "app",
			"imports": {
				"#config": {"node": "./src/config.node.js", "default": "./src/config.js"},
				"#lib/*": "./src/lib/*.js",
				"#dep": "dep"
			},
			"exports": {"./self": "./src/self.js"}
		}`,
		"index.js":                "",
		"src/config.node.js":      "",
		"src/config.js":           "",
		"src/lib/a.js":            "",
		"src/self.js":             "",
		"src/nested/deep.js":      "",
		"node_modules/dep/index.js": "",
	})
	r := newResolver(t)
	from := filepath.Join(root, "src", "nested", "deep.js")

	tests := []struct {
		spec string
		want string
	}{
		{"#config", "src/config.node.js"},
		{"#lib/a", "src/lib/a.js"},
		{"#dep", "node_modules/dep/index.js"},
		{"app/self", "src/self.js"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := r.Resolve(tt.spec, from, KindESM)
			require.Equal(t, ResolvedFile, got.Status, got.String())
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got.Path)
		})
	}

	assert.Equal(t, Unresolved, r.Resolve("#missing", from, KindESM).Status)
}

func TestResolve_Symlinks(t *testing.T) {
	root := project(t, map[string]string{
		"index.js": "",
		"node_modules/.store/real@1.0.0/node_modules/real/index.js": "",
	})
	testutil.Symlink(t,
		filepath.Join(root, "node_modules", ".store", "real@1.0.0", "node_modules", "real"),
		filepath.Join(root, "node_modules", "real"))
	from := filepath.Join(root, "index.js")

	r := newResolver(t)
	got := r.Resolve("real", from, KindESM)
	require.Equal(t, ResolvedFile, got.Status)
	assert.Equal(t, filepath.Join(root, "node_modules", ".store", "real@1.0.0", "node_modules", "real", "index.js"), got.Path)

	preserving, err := New(Options{PreserveSymlinks: true})
	require.NoError(t, err)
	got = preserving.Resolve("real", from, KindESM)
	require.Equal(t, ResolvedFile, got.Status)
	assert.Equal(t, filepath.Join(root, "node_modules", "real", "index.js"), got.Path)
}

func TestResolve_Concurrent(t *testing.T) {
	root := project(t, map[string]string{
		"index.js":                          "",
		"node_modules/a/package.json":       `{"main": "main.js"}`,
		"node_modules/a/main.js":            "",
	})
	r, err := New(Options{CacheSize: 1})
	require.NoError(t, err)
	from := filepath.Join(root, "index.js")
	want := filepath.Join(root, "node_modules", "a", "main.js")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := r.Resolve("a", from, KindESM)
			assert.Equal(t, want, got.Path)
		}()
	}
	wg.Wait()
}

func TestSplitPackageSpecifier(t *testing.T) {
	tests := []struct {
		spec    string
		name    string
		subpath string
		ok      bool
	}{
		{"lodash", "lodash", ".", true},
		{"lodash/fp/map", "lodash", "./fp/map", true},
		{"@babel/core", "@babel/core", ".", true},
		{"@babel/core/lib/x", "@babel/core", "./lib/x", true},
		{"@babel", "", "", false},
		{".hidden", "", "", false},
		{"a%2Fb", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			name, subpath, ok := splitPackageSpecifier(tt.spec)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.subpath, subpath)
		})
	}
}

func TestPatternKeyLess(t *testing.T) {
	assert.True(t, patternKeyLess("./utils/internal/*", "./utils/*"))
	assert.True(t, patternKeyLess("./a/*.js", "./a/*"))
	assert.True(t, patternKeyLess("./x/*", "./x/"))
	assert.False(t, patternKeyLess("./utils/*", "./utils/internal/*"))
}

func TestResolution_String(t *testing.T) {
	assert.Equal(t, "unresolved", Resolution{}.String())
	assert.Equal(t, "builtin:fs", Resolution{Status: Builtin, Name: "fs"}.String())
	assert.Equal(t, "/a.js", Resolution{Status: ResolvedFile, Path: "/a.js"}.String())
	assert.Equal(t, "esm", KindESM.String())
	assert.Equal(t, "commonjs", KindCommonJS.String())
}
