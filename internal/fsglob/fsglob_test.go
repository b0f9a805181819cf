package fsglob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatch(t *testing.T) {
	testCases := []struct {
		pattern  string
		path     string
		expected bool
	}{
		{"*.html", "index.html", true},
		{"*.html", "partials/header.html", false},
		{"**/*.html", "index.html", true},
		{"**/*.html", "partials/header.html", true},
		{"**/*.html", "layouts/deep/default.html", true},
		{"assets/js/**/*.js", "assets/js/app.js", true},
		{"assets/js/**/*.js", "assets/js/vendor/slick.js", true},
		{"assets/js/**/*.js", "assets/css/app.js", false},
		{"assets/images/**/*.{jpg,png,svg}", "assets/images/logo.svg", true},
		{"assets/images/**/*.{jpg,png,svg}", "assets/images/a/b.png", true},
		{"assets/images/**/*.{jpg,png,svg}", "assets/images/a/b.bmp", false},
		{"./assets/sass/**/*.sass", "assets/sass/style.sass", true},
		{"assets/fonts/**/*.{eot,woff,woff2,ttf,svg}", "assets/fonts/x.woff2", true},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern+"|"+tc.path, func(t *testing.T) {
			p, err := Compile(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p.Match(tc.path))
		})
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("") })
}

func TestExpandDoubleStar(t *testing.T) {
	variants := expandDoubleStar("**/a/**/b")
	assert.ElementsMatch(t, []string{"**/a/**/b", "a/**/b", "**/a/b", "a/b"}, variants)

	assert.Equal(t, []string{"a/*.js"}, expandDoubleStar("a/*.js"))
	// "x**/" is not a segment-level double star.
	assert.Equal(t, []string{"x**/y"}, expandDoubleStar("x**/y"))
}

func TestSetExclusions(t *testing.T) {
	set, err := CompileSet([]string{"**/*.html", "!partials/**"})
	require.NoError(t, err)

	assert.True(t, set.Match("index.html"))
	assert.True(t, set.Match("blog/post.html"))
	assert.False(t, set.Match("partials/header.html"))
	assert.False(t, set.Match("style.css"))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "")
	writeFile(t, root, "about.html", "")
	writeFile(t, root, "partials/header.html", "")
	writeFile(t, root, "assets/js/app.js", "")
	writeFile(t, root, "assets/js/vendor/a.js", "")
	writeFile(t, root, ".git/config.html", "")

	got, err := Expand(root, []string{"*.html"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "about.html"),
		filepath.Join(root, "index.html"),
	}, got)

	got, err = Expand(root, []string{"assets/js/**/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "assets", "js", "app.js"),
		filepath.Join(root, "assets", "js", "vendor", "a.js"),
	}, got)

	got, err = Expand(root, []string{"**/*.html", "!partials/**"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Expand(filepath.Join(root, "missing"), []string{"*.html"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Expand(root, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRel(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "assets/js/app.js", Rel(root, filepath.Join(root, "assets", "js", "app.js")))
	assert.Equal(t, "", Rel(root, filepath.Dir(root)))
	assert.Equal(t, "", Rel(root, root))
}

func TestToSlash(t *testing.T) {
	assert.Equal(t, "a/b", ToSlash("./a/b"))
	assert.Equal(t, "a/b", ToSlash("a//b/"))
	assert.Equal(t, "", ToSlash("."))
}
