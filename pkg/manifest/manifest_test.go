package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/esmaudit/internal/testutil"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, FileName), `{
		// comments and trailing commas are tolerated
		"name": "app",
		"dependencies": {"react": "^18", "@babel/core": "7.x", "lodash": "*"},
		"devDependencies": {"vitest": "1", "react": "18"},
		"optionalDependencies": {"fsevents": "2"},
		"peerDependencies": {"typescript": "5"},
	}`)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"production only", Options{}, []string{"@babel/core", "lodash", "react"}},
		{"with dev", Options{IncludeDev: true}, []string{"@babel/core", "lodash", "react", "vitest"}},
		{"with optional", Options{IncludeOptional: true}, []string{"@babel/core", "fsevents", "lodash", "react"}},
		{"everything", Options{IncludeDev: true, IncludeOptional: true, IncludePeer: true},
			[]string{"@babel/core", "fsevents", "lodash", "react", "typescript", "vitest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(dir, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(t.TempDir(), Options{})
		assert.ErrorIs(t, err, ErrNoManifest)
	})

	t.Run("invalid", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, filepath.Join(dir, FileName), `{"dependencies": [}`)
		_, err := Load(dir, Options{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoManifest)
	})
}

func TestLoad_NoDependencies(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, FileName), `{"name": "empty"}`)

	got, err := Load(dir, Options{IncludeDev: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate(t *testing.T) {
	list := []Package{
		{Name: "a", Version: "1.0.0"},
		{Name: "canvas", Version: "2.0.0"},
		{Name: "b", Version: "1.0.0"},
		{Name: "c", Version: "1.0.0"},
		{Name: "d", Version: "1.0.0"},
		{Name: "a", Version: "1.1.0"},
		{Name: "", Version: "0"},
	}

	m := Generate(list, GenerateOptions{Exclude: DefaultExclude, Skip: []Range{{Start: 2, End: 4}}})
	assert.Equal(t, DefaultName, m.Name)
	assert.Equal(t, map[string]string{"a": "1.1.0", "d": "1.0.0"}, m.Dependencies)
}

func TestGenerate_CustomName(t *testing.T) {
	m := Generate([]Package{{Name: "x", Version: "1"}}, GenerateOptions{Name: "audit"})
	assert.Equal(t, "audit", m.Name)
	assert.Equal(t, []string{"x"}, m.Names(Options{}))
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	list, err := ParseList([]byte(`[{"name": "left-pad", "version": "1.3.0"}, {"name": "canvas", "version": "2"}]`))
	require.NoError(t, err)

	m := Generate(list, GenerateOptions{Exclude: DefaultExclude})
	require.NoError(t, Write(filepath.Join(dir, FileName), m))

	back, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, m, back)
	assert.Contains(t, testutil.ReadFile(t, filepath.Join(dir, FileName)), `"left-pad": "1.3.0"`)
}

func TestParseList_Invalid(t *testing.T) {
	_, err := ParseList([]byte(`{"name": "not-a-list"}`))
	assert.Error(t, err)
}
