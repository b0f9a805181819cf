package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/fsglob"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	root := t.TempDir()
	p := DefaultPaths()
	p.Source = filepath.Join(root, "src")
	p.Output = filepath.Join(root, "dist")
	p.StyleInclude = []string{filepath.Join(root, "node_modules")}
	return p
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	return string(data)
}

// transform expands the group's inputs the way the scheduler does and runs tr.
func transform(t *testing.T, p Paths, g Group, tr taskgraph.Transform) ([]string, error) {
	t.Helper()
	sources, err := fsglob.Expand(p.Source, g.Inputs())
	require.NoError(t, err)
	return tr.Transform(context.Background(), sources)
}

func TestGroupInputs(t *testing.T) {
	g := Group{Dir: "assets/sass", Patterns: []string{"*.css", "!_*.css"}}
	assert.Equal(t, []string{"assets/sass/*.css", "!assets/sass/_*.css"}, g.Inputs())

	g = Group{Patterns: []string{"*.html"}}
	assert.Equal(t, []string{"*.html"}, g.Inputs())
}

func TestMinifyCSS(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "declarations",
			in:   "a {\n  color: red;\n  margin: 0 auto;\n}\n",
			want: "a{color:red;margin:0 auto}",
		},
		{
			name: "selectors and strings",
			in:   "a:hover , b > c {\n  content: \"  x  \";\n}\n",
			want: `a:hover,b>c{content:"  x  "}`,
		},
		{
			name: "descendant pseudo class keeps its space",
			in:   "nav :focus { color: blue }",
			want: "nav :focus{color:blue}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinifyCSS(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStripCSSComments(t *testing.T) {
	assert.Equal(t, "a{color:red}", StripCSSComments("a{/* x */color:red}/* y"))
	assert.Equal(t, `a{content:"/* no */"}`, StripCSSComments(`a{content:"/* no */"}`))
}

func TestStylesResolvesImports(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/sass/style.css": "@import \"base\";\n@import 'lib/reset';\n/* comment */\nbody {\n  color: red;\n}\n",
		"assets/sass/_base.css": "html { margin: 0; }",
	})
	writeTree(t, p.StyleInclude[0], map[string]string{
		"lib/reset.css": "* { box-sizing: border-box; }",
	})

	outputs, err := transform(t, p, p.Styles, Styles(p))
	require.NoError(t, err)

	target := p.OutputPath("assets", "css", "style.min.css")
	assert.Equal(t, []string{target}, outputs)
	assert.Equal(t, "html{margin:0}*{box-sizing:border-box}body{color:red}", readFile(t, target))

	_, err = os.Stat(p.OutputPath("assets", "css", "_base.min.css"))
	assert.True(t, os.IsNotExist(err), "partials are not entries")
}

func TestStylesImportErrors(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/sass/style.css": "@import \"missing\";",
	})
	_, err := transform(t, p, p.Styles, Styles(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	p = testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/sass/style.css": "@import \"a\";",
		"assets/sass/_a.css":    "@import \"b\";",
		"assets/sass/_b.css":    "@import \"a\";",
	})
	_, err = transform(t, p, p.Styles, Styles(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle")
}

func TestScriptsBundlesLibsFirst(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/js/libs.js":     "var lib = 1;\n",
		"assets/js/a.js":        "// comment\nvar a = lib;\n\n",
		"assets/js/app/main.js": "  console.log(a);  \n",
	})

	outputs, err := transform(t, p, p.Scripts, Scripts(p))
	require.NoError(t, err)

	target := p.OutputPath("assets", "js", "app.js")
	assert.Equal(t, []string{target}, outputs)
	assert.Equal(t, "var lib=1;\nvar a=lib;\nconsole.log(a);\n", readFile(t, target))
}

func TestScriptsSyntaxError(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/js/broken.js": "var = ;\n",
	})

	_, err := transform(t, p, p.Scripts, Scripts(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.js")
}

func TestMinifyJS(t *testing.T) {
	in := "function f() {\n    // note\n    return 1;\n}\n\n"
	got, err := MinifyJS([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, "function f(){return 1}", string(got))

	got, err = MinifyJS([]byte("// only a comment\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMinifyJSKeepsMultilineStrings(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "template literal",
			in:   "const msg = `hi ${name}\n    // not a comment\n    indented`;\nconsole.log(msg);\n",
			want: "\n    // not a comment\n    indented`",
		},
		{
			name: "line continuation",
			in:   "var s = \"a\\\n// b\";\nconsole.log(s);\n",
			want: "// b",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinifyJS([]byte(tc.in))
			require.NoError(t, err)
			assert.Contains(t, string(got), tc.want)
		})
	}
}

func TestMinifyJSSyntaxError(t *testing.T) {
	_, err := MinifyJS([]byte("function ( {"))
	assert.Error(t, err)
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage([]byte("---\ntitle: Home\nlayout: post\n---\n<p>x</p>\n"))
	require.NoError(t, err)
	assert.Equal(t, "Home", page.Meta["title"])
	assert.Equal(t, "post", page.Meta["layout"])
	assert.Equal(t, "<p>x</p>\n", page.Body)

	page, err = ParsePage([]byte("<p>no front matter</p>"))
	require.NoError(t, err)
	assert.Empty(t, page.Meta)
	assert.Equal(t, "<p>no front matter</p>", page.Body)

	_, err = ParsePage([]byte("---\ntitle: [unclosed\n---\n"))
	assert.Error(t, err)
}

func TestPagesRenderLayoutPartialsAndData(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"layouts/default.html": "<!DOCTYPE html>\n<html>\n  <head><title>{{ .title }} | {{ .site.name }}</title></head>\n" +
			"  <body>\n    {{ template \"header\" . }}\n    {{ template \"body\" . }}\n  </body>\n</html>\n",
		"partials/header.html": "<header>{{ .site.name }}</header>",
		"data/site.yml":        "name: Demo\n",
		"index.html":           "---\ntitle: Home\n---\n<main>\n  <p>Hello   world</p>\n</main>\n",
	})

	outputs, err := transform(t, p, p.Pages, Pages(p))
	require.NoError(t, err)

	target := p.OutputPath("index.html")
	assert.Equal(t, []string{target}, outputs)
	got := readFile(t, target)
	assert.True(t, strings.HasPrefix(strings.ToLower(got), "<!doctype html>"), got)
	assert.True(t, strings.HasSuffix(got,
		"<html><head><title>Home | Demo</title></head><body>"+
			"<header>Demo</header><main><p>Hello world</p></main></body></html>"), got)
}

func TestPagesMissingLayout(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"about.html": "---\nlayout: post\n---\n<p>x</p>",
	})

	_, err := transform(t, p, p.Pages, Pages(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `layout "post" not found`)
}

func TestPagesWithoutLayout(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"plain.html": "<p>{{ .page }}</p>",
	})

	_, err := transform(t, p, p.Pages, Pages(p))
	require.NoError(t, err)
	assert.Equal(t, "<p>plain</p>", readFile(t, p.OutputPath("plain.html")))
}

func TestMinifyHTML(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "comments and preformatted text",
			in:   "<div>\n  <!-- drop -->\n  <pre>  a\n  b</pre>\n</div>\n",
			want: "<div><pre>  a\n  b</pre></div>",
		},
		{
			name: "space between inline elements on one line",
			in:   "<div><b>a</b> <i>b</i></div>",
			want: "<div><b>a</b> <i>b</i></div>",
		},
		{
			name: "space between inline elements across lines",
			in:   "<p>\n  <span>Hello</span>\n  <span>World</span>\n</p>",
			want: "<p><span>Hello</span> <span>World</span></p>",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinifyHTML([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMinifyHTMLMinifiesInlineScripts(t *testing.T) {
	got, err := MinifyHTML([]byte("<script>\n  // setup\n  var x = 1;\n</script>"))
	require.NoError(t, err)
	assert.NotContains(t, string(got), "setup")
	assert.Contains(t, string(got), "x=1")
}

func TestImagesOptimize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var raw bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&raw, img))

	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/images/icons/dot.png": raw.String(),
		"assets/images/logo.svg":      "<svg></svg>",
	})

	outputs, err := transform(t, p, p.Images, Images(p))
	require.NoError(t, err)
	assert.Len(t, outputs, 2)

	optimized := readFile(t, p.OutputPath("assets", "images", "icons", "dot.png"))
	assert.Less(t, len(optimized), raw.Len())
	decoded, err := png.Decode(bytes.NewReader([]byte(optimized)))
	require.NoError(t, err)
	assert.Equal(t, color.RGBAModel.Convert(img.At(5, 5)), color.RGBAModel.Convert(decoded.At(5, 5)))

	assert.Equal(t, "<svg></svg>", readFile(t, p.OutputPath("assets", "images", "logo.svg")))
}

func TestOptimizeImageRejectsCorruptInput(t *testing.T) {
	_, err := OptimizeImage(".png", []byte("not a png"))
	assert.Error(t, err)

	out, err := OptimizeImage(".gif", []byte("GIF89a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a"), out)
}

func TestCopyKeepsRelativePaths(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Source, map[string]string{
		"assets/fonts/inter/inter.woff2": "font",
		"assets/fonts/readme.txt":        "ignored",
	})

	outputs, err := transform(t, p, p.Fonts, Copy(p, p.Fonts))
	require.NoError(t, err)

	target := p.OutputPath("assets", "fonts", "inter", "inter.woff2")
	assert.Equal(t, []string{target}, outputs)
	assert.Equal(t, "font", readFile(t, target))
}

func TestLibsConcatenatesVendorScripts(t *testing.T) {
	p := testPaths(t)
	vendor := filepath.Join(filepath.Dir(p.Source), "node_modules")
	writeTree(t, vendor, map[string]string{
		"jquery/jquery.js": "a",
		"slick/slick.js":   "b\n",
	})
	p.VendorLibs = []string{
		filepath.Join(vendor, "jquery", "jquery.js"),
		filepath.Join(vendor, "slick", "slick.js"),
	}

	outputs, err := Libs(p).Transform(context.Background(), nil)
	require.NoError(t, err)

	target := p.SourcePath("assets", "js", "libs.js")
	assert.Equal(t, []string{target}, outputs)
	assert.Equal(t, "a\nb\n", readFile(t, target))

	p.VendorLibs = []string{filepath.Join(vendor, "missing.js")}
	_, err = Libs(p).Transform(context.Background(), nil)
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	p := testPaths(t)
	writeTree(t, p.Output, map[string]string{"index.html": "x"})

	_, err := Clean(p).Transform(context.Background(), nil)
	require.NoError(t, err)
	_, err = os.Stat(p.Output)
	assert.True(t, os.IsNotExist(err))

	// Cleaning a missing directory is fine.
	_, err = Clean(p).Transform(context.Background(), nil)
	assert.NoError(t, err)
}

func TestCleanRefusesDangerousTargets(t *testing.T) {
	root := t.TempDir()

	for _, p := range []Paths{
		{Source: filepath.Join(root, "src"), Output: ""},
		{Source: filepath.Join(root, "src"), Output: "."},
		{Source: filepath.Join(root, "src"), Output: string(filepath.Separator)},
		{Source: filepath.Join(root, "site", "src"), Output: filepath.Join(root, "site")},
		{Source: filepath.Join(root, "src"), Output: filepath.Join(root, "src")},
	} {
		_, err := Clean(p).Transform(context.Background(), nil)
		assert.Error(t, err, "output %q", p.Output)
	}
}
