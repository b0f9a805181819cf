package assets

import (
	"bytes"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const (
	mediaCSS  = "text/css"
	mediaJS   = "application/javascript"
	mediaHTML = "text/html"
)

// minifier is shared by every step; minify.M is safe for concurrent use.
var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	// Document and end tags stay so pages keep their outline and the
	// reload script can be injected before </body>.
	m.Add(mediaHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	return m
}

// MinifyCSS minifies a bundled stylesheet.
func MinifyCSS(src string) (string, error) {
	return minifier.String(mediaCSS, src)
}

// MinifyJS minifies one script. A file holding only comments minifies to
// nothing.
func MinifyJS(src []byte) ([]byte, error) {
	out, err := minifier.Bytes(mediaJS, src)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(out), nil
}

// MinifyHTML minifies a rendered page together with its inline styles and
// scripts. Whitespace between inline elements collapses to one space.
func MinifyHTML(src []byte) ([]byte, error) {
	return minifier.Bytes(mediaHTML, src)
}
