package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_SimplePatterns(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		isDir    bool
		expected bool
	}{
		{"exact filename match", "foo.txt", "foo.txt", false, true},
		{"exact filename no match", "foo.txt", "bar.txt", false, false},
		{"filename in subdir", "foo.txt", "src/foo.txt", false, true},
		{"wildcard extension", "*.log", "debug.log", false, true},
		{"wildcard extension no match", "*.log", "debug.txt", false, false},
		{"dir-only pattern matches dir", "node_modules/", "node_modules", true, true},
		{"dir-only pattern matches file inside", "node_modules/", "node_modules/pkg/index.js", false, true},
		{"anchored pattern matches only at root", "/build", "build", true, true},
		{"anchored pattern does not match nested", "/build", "src/build", true, false},
		{"double-star matches any depth", "**/test", "a/b/test", true, true},
		{"negation re-includes", "!keep.log", "keep.log", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.expected, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_NegationOverridesEarlierRule(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("!important.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n*.tmp\n\nbuild/\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("scratch.tmp", false))
	assert.True(t, m.Match("build/out.bin", false))
	assert.False(t, m.Match("main.go", false))
}

func TestMatcher_LoadLayer_MissingFileIsNotError(t *testing.T) {
	m := New()
	err := m.LoadLayer(filepath.Join(t.TempDir(), "does-not-exist"), "")
	require.NoError(t, err)
	assert.False(t, m.Match("anything", false))
}

func TestMatcher_BaseScopesNestedGitignore(t *testing.T) {
	m := New()
	m.AddPatternWithBase("*.local", "sub")

	assert.True(t, m.Match("sub/config.local", false))
	assert.False(t, m.Match("config.local", false), "pattern scoped to sub/ should not match root")
}
