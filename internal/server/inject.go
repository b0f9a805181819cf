package server

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// InjectBeforeBodyEnd inserts snippet immediately before the last </body>
// tag of page, or appends it when the page has none. The rest of the page
// is left byte for byte as it was.
func InjectBeforeBodyEnd(page, snippet []byte) []byte {
	offset := -1

	z := html.NewTokenizer(bytes.NewReader(page))
	pos := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				offset = -1
			}
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				offset = pos
			}
		}
		pos += raw
	}

	out := make([]byte, 0, len(page)+len(snippet))
	if offset < 0 {
		out = append(out, page...)
		return append(out, snippet...)
	}
	out = append(out, page[:offset]...)
	out = append(out, snippet...)
	return append(out, page[offset:]...)
}
